package review

import "time"

// SubmitBlocker explains why a submission cannot proceed.
type SubmitBlocker struct {
	// MissingAnswers lists required sections still unanswered.
	MissingAnswers []string
	// MissingComments lists rejected sections without correction text.
	MissingComments []string
}

// Code returns a stable machine code for the failure combination.
func (b *SubmitBlocker) Code() string {
	switch {
	case len(b.MissingAnswers) > 0 && len(b.MissingComments) > 0:
		return "MISSING_SECTIONS_AND_COMMENTS"
	case len(b.MissingAnswers) > 0:
		return "MISSING_SECTIONS"
	default:
		return "MISSING_COMMENTS"
	}
}

// Message returns the user-facing reason, one per failure combination.
func (b *SubmitBlocker) Message() string {
	switch {
	case len(b.MissingAnswers) > 0 && len(b.MissingComments) > 0:
		return "Quedan secciones sin revisar y secciones incorrectas sin comentarios"
	case len(b.MissingAnswers) > 0:
		return "Quedan secciones sin revisar"
	default:
		return "Faltan comentarios en las secciones marcadas como incorrectas"
	}
}

// CanSubmit validates the whole review for submission: every required
// section answered, every rejection commented. Returns nil when the
// submission may proceed.
func (s *State) CanSubmit() *SubmitBlocker {
	blocker := &SubmitBlocker{}
	for _, sectionID := range RequiredSectionIDs() {
		rec := s.Records[sectionID]
		if rec == nil || rec.Answer == AnswerUnset {
			blocker.MissingAnswers = append(blocker.MissingAnswers, sectionID)
			continue
		}
		if rec.Answer == AnswerNo && rec.Comments == "" {
			blocker.MissingComments = append(blocker.MissingComments, sectionID)
		}
	}
	if len(blocker.MissingAnswers) > 0 || len(blocker.MissingComments) > 0 {
		return blocker
	}
	return nil
}

// SubmitVisible reports whether the submit control applies: at least one
// section is currently rejected, and either nothing was ever submitted or
// some rejected section carries comments not yet frozen. This is what lets
// a reviewer resubmit after drift reopened a section and it was rejected
// again with new text, while suppressing a second identical submission.
func (s *State) SubmitVisible() bool {
	anyNo := false
	anyUnfrozen := false
	for _, sectionID := range RequiredSectionIDs() {
		rec := s.Records[sectionID]
		if rec == nil || rec.Answer != AnswerNo {
			continue
		}
		anyNo = true
		if rec.SubmittedComments == "" || rec.Comments != rec.SubmittedComments {
			anyUnfrozen = true
		}
	}
	if !anyNo {
		return false
	}
	return !s.Meta.CommentsSubmitted || anyUnfrozen
}

// Submit freezes the current rejection comments and appends them to the
// submission history. It re-validates first and mutates nothing on a
// validation failure. A submission with nothing new to freeze (the submit
// control is not visible) is a no-op.
//
// This is the only path that writes SubmittedComments or grows History.
func (s *State) Submit(values Values, now time.Time) ([]HistoryEntry, *SubmitBlocker) {
	if blocker := s.CanSubmit(); blocker != nil {
		return nil, blocker
	}
	if !s.SubmitVisible() {
		return nil, nil
	}

	var entries []HistoryEntry
	for _, section := range Sections {
		rec := s.Records[section.ID]
		if rec == nil || rec.Answer != AnswerNo || rec.Comments == "" {
			continue
		}
		rec.SubmittedComments = rec.Comments
		if rec.Snapshot == nil {
			// Should already exist for a rejected section; capture one now
			// rather than submit without a baseline.
			rec.Snapshot = CaptureSnapshot(section.ID, values)
		}
		entries = append(entries, HistoryEntry{
			SectionID:    section.ID,
			SectionTitle: section.Title,
			Comments:     rec.Comments,
			SubmittedAt:  now,
			FieldValues:  copyValueMap(rec.Snapshot),
		})
	}

	s.Meta.History = append(s.Meta.History, entries...)
	s.Meta.CommentsSubmitted = true
	if s.Meta.CommentsSubmittedAt == nil {
		at := now
		s.Meta.CommentsSubmittedAt = &at
	}
	return entries, nil
}

func copyValueMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
