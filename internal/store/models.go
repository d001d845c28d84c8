package store

import (
	"encoding/json"
	"time"
)

// Property is one property record on the dashboard. FieldValues holds the
// live reviewable field values; ReviewState is the review engine's opaque
// blob, persisted as-is and never interpreted by this layer.
type Property struct {
	ID          string
	Address     string
	PostalCode  string
	City        string
	Stage       string
	FieldValues map[string]any
	ReviewState json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Kanban stages a property moves through on the board.
const (
	StageLead      = "LEAD"
	StageReview    = "REVIEW"
	StagePublished = "PUBLISHED"
	StageArchived  = "ARCHIVED"
)

// CommitInfo describes one entry of the review blob archive.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
