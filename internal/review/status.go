package review

// Status is the single document-level review status shown on the kanban
// badge.
type Status string

const (
	// StatusPendingReview means at least one required section is unanswered.
	StatusPendingReview Status = "PENDING_REVIEW"
	// StatusPendingInformation means every section is answered and at least one
	// is rejected.
	StatusPendingInformation Status = "PENDING_INFORMATION"
	// StatusNone means everything is approved; no banner is shown.
	StatusNone Status = "NONE"
)

// GlobalStatus aggregates the required sections' answers. An unanswered
// section dominates everything, even open rejections.
func (s *State) GlobalStatus() Status {
	anyNo := false
	for _, sectionID := range RequiredSectionIDs() {
		rec := s.Records[sectionID]
		if rec == nil || rec.Answer == AnswerUnset {
			return StatusPendingReview
		}
		if rec.Answer == AnswerNo {
			anyNo = true
		}
	}
	if anyNo {
		return StatusPendingInformation
	}
	return StatusNone
}
