package review

import "testing"

func stateWithAnswers(t *testing.T, answers map[string]Answer) *State {
	t.Helper()
	s := NewState()
	for id, answer := range answers {
		if err := s.SetAnswer(id, answer, Values{}); err != nil {
			t.Fatalf("SetAnswer %s: %v", id, err)
		}
	}
	return s
}

func TestGlobalStatusNullDominates(t *testing.T) {
	s := stateWithAnswers(t, map[string]Answer{
		"property-info":   AnswerNo,
		"legal-documents": AnswerYes,
		"home-insurance":  AnswerYes,
		"rental-status":   AnswerYes,
		// mortgage-info left unanswered
	})
	if got := s.GlobalStatus(); got != StatusPendingReview {
		t.Errorf("expected PENDING_REVIEW, got %s", got)
	}
}

func TestGlobalStatusMissingRecordCountsAsNull(t *testing.T) {
	s := NewState()
	if got := s.GlobalStatus(); got != StatusPendingReview {
		t.Errorf("expected PENDING_REVIEW for empty state, got %s", got)
	}
}

func TestGlobalStatusAnyNoIsPendingInformation(t *testing.T) {
	s := stateWithAnswers(t, map[string]Answer{
		"property-info":   AnswerNo,
		"legal-documents": AnswerYes,
		"home-insurance":  AnswerYes,
		"rental-status":   AnswerYes,
		"mortgage-info":   AnswerYes,
	})
	if got := s.GlobalStatus(); got != StatusPendingInformation {
		t.Errorf("expected PENDING_INFORMATION, got %s", got)
	}
}

func TestGlobalStatusAllYesIsNone(t *testing.T) {
	s := stateWithAnswers(t, map[string]Answer{
		"property-info":   AnswerYes,
		"legal-documents": AnswerYes,
		"home-insurance":  AnswerYes,
		"rental-status":   AnswerYes,
		"mortgage-info":   AnswerYes,
	})
	if got := s.GlobalStatus(); got != StatusNone {
		t.Errorf("expected NONE, got %s", got)
	}
}

func TestGlobalStatusResetSectionReturnsToPendingReview(t *testing.T) {
	s := stateWithAnswers(t, map[string]Answer{
		"property-info":   AnswerYes,
		"legal-documents": AnswerNo,
		"home-insurance":  AnswerYes,
		"rental-status":   AnswerYes,
		"mortgage-info":   AnswerYes,
	})
	if got := s.GlobalStatus(); got != StatusPendingInformation {
		t.Fatalf("expected PENDING_INFORMATION, got %s", got)
	}

	// Drift reopens the rejected section; null wins again.
	_ = s.DetectDrift(Values{"doc_a": "a.pdf"})
	if got := s.GlobalStatus(); got != StatusPendingReview {
		t.Errorf("expected PENDING_REVIEW after drift reset, got %s", got)
	}
}
