package review

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire shape of the persisted blob: one key per section plus a "_meta"
// object. Nullable fields use pointers so a legacy blob with absent keys can
// be told apart from explicit nulls.
type wireRecord struct {
	Reviewed          bool           `json:"reviewed"`
	IsCorrect         *bool          `json:"isCorrect"`
	Comments          *string        `json:"comments"`
	HasIssue          *bool          `json:"hasIssue,omitempty"`
	SubmittedComments *string        `json:"submittedComments"`
	Snapshot          map[string]any `json:"snapshot"`
}

type wireMeta struct {
	CommentsSubmitted   bool               `json:"commentsSubmitted"`
	CommentsSubmittedAt *time.Time         `json:"commentsSubmittedAt,omitempty"`
	History             []wireHistoryEntry `json:"commentSubmissionHistory"`
}

type wireHistoryEntry struct {
	SectionID    string         `json:"sectionId"`
	SectionTitle string         `json:"sectionTitle"`
	Comments     string         `json:"comments"`
	SubmittedAt  time.Time      `json:"submittedAt"`
	FieldValues  map[string]any `json:"fieldValues"`
}

const metaKey = "_meta"

// Encode serializes the state to the persisted blob shape.
func (s *State) Encode() ([]byte, error) {
	blob := make(map[string]any, len(s.Records)+1)
	for sectionID, rec := range s.Records {
		blob[sectionID] = recordToWire(rec)
	}

	meta := wireMeta{
		CommentsSubmitted:   s.Meta.CommentsSubmitted,
		CommentsSubmittedAt: s.Meta.CommentsSubmittedAt,
		History:             make([]wireHistoryEntry, 0, len(s.Meta.History)),
	}
	for _, entry := range s.Meta.History {
		meta.History = append(meta.History, wireHistoryEntry{
			SectionID:    entry.SectionID,
			SectionTitle: entry.SectionTitle,
			Comments:     entry.Comments,
			SubmittedAt:  entry.SubmittedAt,
			FieldValues:  entry.FieldValues,
		})
	}
	blob[metaKey] = meta

	return json.Marshal(blob)
}

// Decode parses a persisted blob. A missing hasIssue (legacy shape) is
// derived from isCorrect == false. An unparseable blob degrades to an empty
// state; the error is returned so the caller can log the data loss, and the
// returned state is still usable.
func Decode(data []byte) (*State, error) {
	state := NewState()
	if len(data) == 0 {
		return state, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewState(), fmt.Errorf("parse review blob: %w", err)
	}

	for key, value := range raw {
		if key == metaKey {
			var meta wireMeta
			if err := json.Unmarshal(value, &meta); err != nil {
				return NewState(), fmt.Errorf("parse review meta: %w", err)
			}
			state.Meta.CommentsSubmitted = meta.CommentsSubmitted
			state.Meta.CommentsSubmittedAt = meta.CommentsSubmittedAt
			for _, entry := range meta.History {
				state.Meta.History = append(state.Meta.History, HistoryEntry{
					SectionID:    entry.SectionID,
					SectionTitle: entry.SectionTitle,
					Comments:     entry.Comments,
					SubmittedAt:  entry.SubmittedAt,
					FieldValues:  entry.FieldValues,
				})
			}
			continue
		}

		var rec wireRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return NewState(), fmt.Errorf("parse section %s: %w", key, err)
		}
		state.Records[key] = wireToRecord(rec)
	}

	return state, nil
}

func recordToWire(rec *Record) wireRecord {
	wire := wireRecord{
		Reviewed: rec.Reviewed,
		HasIssue: boolPtr(rec.HasIssue),
		Snapshot: rec.Snapshot,
	}
	switch rec.Answer {
	case AnswerYes:
		wire.IsCorrect = boolPtr(true)
	case AnswerNo:
		wire.IsCorrect = boolPtr(false)
	}
	if rec.Comments != "" {
		wire.Comments = &rec.Comments
	}
	if rec.SubmittedComments != "" {
		wire.SubmittedComments = &rec.SubmittedComments
	}
	return wire
}

func wireToRecord(wire wireRecord) *Record {
	rec := &Record{
		Reviewed: wire.Reviewed,
		Snapshot: wire.Snapshot,
	}
	switch {
	case wire.IsCorrect == nil:
		rec.Answer = AnswerUnset
	case *wire.IsCorrect:
		rec.Answer = AnswerYes
	default:
		rec.Answer = AnswerNo
	}
	if wire.Comments != nil {
		rec.Comments = *wire.Comments
	}
	if wire.SubmittedComments != nil {
		rec.SubmittedComments = *wire.SubmittedComments
	}
	if wire.HasIssue != nil {
		rec.HasIssue = *wire.HasIssue
	} else {
		// Legacy blobs predate the flag; a section rejected at save time
		// had, by definition, an issue.
		rec.HasIssue = rec.Answer == AnswerNo
	}
	return rec
}

func boolPtr(v bool) *bool {
	return &v
}
