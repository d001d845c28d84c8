package review

// DetectDrift compares every rejected section's snapshot against the
// current live values and silently reopens the ones that diverged: the
// answer resets to unset, the section becomes unreviewed and its comment is
// cleared. The snapshot is deliberately kept so a re-rejection without
// intervening edits reuses the same baseline, and the issue flag is never
// touched.
//
// The check is idempotent: a reopened section no longer counts as rejected,
// so running the detector again without a field change is a no-op.
func (s *State) DetectDrift(values Values) []string {
	var reopened []string
	for _, section := range Sections {
		rec := s.Records[section.ID]
		if rec == nil || rec.Answer != AnswerNo || rec.Snapshot == nil {
			continue
		}
		if !sectionDrifted(section, rec.Snapshot, values) {
			continue
		}
		rec.Answer = AnswerUnset
		rec.Reviewed = false
		rec.Comments = ""
		reopened = append(reopened, section.ID)
	}
	return reopened
}

func sectionDrifted(section Section, snapshot map[string]any, values Values) bool {
	for _, field := range section.Fields {
		if !valuesEqual(snapshot[field.Name], values[field.Name]) {
			return true
		}
	}
	return false
}
