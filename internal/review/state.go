package review

import "fmt"

// ErrUnknownSection is returned for section ids not in the registry.
type ErrUnknownSection struct {
	SectionID string
}

func (e *ErrUnknownSection) Error() string {
	return fmt.Sprintf("unknown section %q", e.SectionID)
}

// SetAnswer records an explicit yes/no/unset answer for a section.
//
// Rejecting keeps any existing comment, otherwise fills in the generated
// missing-field comment, recaptures the snapshot from current values and
// sets the permanent issue flag. Approving clears the snapshot but keeps the
// comment for a possible later re-rejection. Resetting clears the comment
// and marks the section unreviewed while retaining the snapshot for future
// drift comparison.
func (s *State) SetAnswer(sectionID string, answer Answer, values Values) error {
	if _, ok := SectionByID(sectionID); !ok {
		return &ErrUnknownSection{SectionID: sectionID}
	}
	rec := s.record(sectionID)

	switch answer {
	case AnswerNo:
		if rec.Comments == "" {
			rec.Comments = MissingFieldComments(sectionID, values)
		}
		rec.Snapshot = CaptureSnapshot(sectionID, values)
		rec.HasIssue = true
		rec.Reviewed = true
	case AnswerYes:
		rec.Snapshot = nil
		rec.Reviewed = true
	case AnswerUnset:
		rec.Comments = ""
		rec.Reviewed = false
	}
	rec.Answer = answer
	return nil
}

// SetComments updates a section's live comment text. A comment edit on a
// section without a record implies a rejection context, so one is created
// already answered No, but without the issue flag, which only an explicit
// rejection sets.
func (s *State) SetComments(sectionID, text string) error {
	if _, ok := SectionByID(sectionID); !ok {
		return &ErrUnknownSection{SectionID: sectionID}
	}
	rec, ok := s.Records[sectionID]
	if !ok {
		rec = &Record{Reviewed: true, Answer: AnswerNo}
		s.Records[sectionID] = rec
	}
	rec.Comments = text
	return nil
}

// MarkResolved handles the "guardar correcciones" action: a rejected
// section flips to approved; any other state just marks the section as
// reviewed.
func (s *State) MarkResolved(sectionID string, values Values) error {
	if _, ok := SectionByID(sectionID); !ok {
		return &ErrUnknownSection{SectionID: sectionID}
	}
	rec := s.record(sectionID)
	if rec.Answer == AnswerNo {
		return s.SetAnswer(sectionID, AnswerYes, values)
	}
	rec.Reviewed = true
	return nil
}
