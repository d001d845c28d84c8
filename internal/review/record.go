package review

import "time"

// Answer is the tri-state result of "¿Es correcta esta información?".
type Answer int

const (
	AnswerUnset Answer = iota
	AnswerYes
	AnswerNo
)

// Record is the review state of one section.
type Record struct {
	// Reviewed is true once an explicit yes/no answer has been given since
	// the last reset.
	Reviewed bool
	Answer   Answer
	// Comments is the live, editable correction text.
	Comments string
	// HasIssue is monotonic: set when the section is first rejected and
	// never cleared, even after later approval or reset.
	HasIssue bool
	// SubmittedComments is the frozen copy of Comments taken by Submit.
	SubmittedComments string
	// Snapshot holds the governed field values captured at rejection time.
	// nil means absent. It is cleared on approval but retained through a
	// drift reset so the same baseline serves a later re-rejection.
	Snapshot map[string]any
}

// HistoryEntry is one frozen submission of a rejected section.
type HistoryEntry struct {
	SectionID    string
	SectionTitle string
	Comments     string
	SubmittedAt  time.Time
	FieldValues  map[string]any
}

// Meta holds the submission metadata stored alongside the section records.
type Meta struct {
	CommentsSubmitted bool
	// CommentsSubmittedAt records the first submission and is never
	// overwritten by later ones.
	CommentsSubmittedAt *time.Time
	// History is append-only; entries are never reordered or mutated.
	History []HistoryEntry
}

// State is the full review state of one property: per-section records plus
// submission metadata. Records are created lazily the first time a section
// is touched.
type State struct {
	Records map[string]*Record
	Meta    Meta
}

// Values carries the live field values of a property, keyed by field name.
type Values map[string]any

// NewState returns an empty review state.
func NewState() *State {
	return &State{Records: make(map[string]*Record)}
}

// record returns the section's record, creating a default one if needed.
func (s *State) record(sectionID string) *Record {
	if s.Records == nil {
		s.Records = make(map[string]*Record)
	}
	rec, ok := s.Records[sectionID]
	if !ok {
		rec = &Record{}
		s.Records[sectionID] = rec
	}
	return rec
}

// Complete reports whether a section counts as complete: at least one
// non-empty governed field and an explicit approval.
func (s *State) Complete(sectionID string, values Values) bool {
	section, ok := SectionByID(sectionID)
	if !ok {
		return false
	}
	rec := s.Records[sectionID]
	if rec == nil || rec.Answer != AnswerYes {
		return false
	}
	for _, field := range section.Fields {
		if !isMissing(values[field.Name]) {
			return true
		}
	}
	return false
}
