package review

import "testing"

func TestDetectDriftReopensChangedSection(t *testing.T) {
	s := NewState()
	_ = s.SetAnswer("legal-documents", AnswerNo, Values{})

	values := Values{"doc_a": "nota-simple.pdf"}
	reopened := s.DetectDrift(values)
	if len(reopened) != 1 || reopened[0] != "legal-documents" {
		t.Fatalf("expected legal-documents reopened, got %v", reopened)
	}

	rec := s.Records["legal-documents"]
	if rec.Answer != AnswerUnset {
		t.Errorf("expected unset answer, got %v", rec.Answer)
	}
	if rec.Reviewed {
		t.Error("expected reviewed=false after drift")
	}
	if rec.Comments != "" {
		t.Errorf("expected comments cleared, got %q", rec.Comments)
	}
	if rec.Snapshot == nil || rec.Snapshot["doc_a"] != nil || rec.Snapshot["doc_b"] != nil {
		t.Errorf("snapshot must stay untouched, got %v", rec.Snapshot)
	}
	if !rec.HasIssue {
		t.Error("hasIssue must not be touched by drift")
	}
}

func TestDetectDriftIdempotent(t *testing.T) {
	s := NewState()
	_ = s.SetAnswer("legal-documents", AnswerNo, Values{})

	values := Values{"doc_a": "nota-simple.pdf"}
	if reopened := s.DetectDrift(values); len(reopened) != 1 {
		t.Fatalf("expected one reopened section, got %v", reopened)
	}
	if reopened := s.DetectDrift(values); len(reopened) != 0 {
		t.Errorf("second run must be a no-op, got %v", reopened)
	}
}

func TestDetectDriftNoChangeNoReopen(t *testing.T) {
	s := NewState()
	values := Values{"doc_a": "a.pdf", "doc_b": "b.pdf"}
	_ = s.SetAnswer("legal-documents", AnswerNo, values)

	if reopened := s.DetectDrift(values); len(reopened) != 0 {
		t.Errorf("expected no drift, got %v", reopened)
	}
}

func TestDetectDriftIgnoresApprovedAndUnansweredSections(t *testing.T) {
	s := NewState()
	_ = s.SetAnswer("home-insurance", AnswerYes, Values{"policy_number": "P-1"})

	if reopened := s.DetectDrift(Values{"policy_number": "P-2"}); len(reopened) != 0 {
		t.Errorf("approved sections have no snapshot to drift from, got %v", reopened)
	}
}

func TestDetectDriftListOrderInsensitive(t *testing.T) {
	s := NewState()
	values := Values{"tenant_docs": []any{"dni.pdf", "nomina.pdf"}}
	_ = s.SetAnswer("rental-status", AnswerNo, values)

	shuffled := Values{"tenant_docs": []any{"nomina.pdf", "dni.pdf"}}
	if reopened := s.DetectDrift(shuffled); len(reopened) != 0 {
		t.Errorf("list reorder must not count as drift, got %v", reopened)
	}

	grown := Values{"tenant_docs": []any{"dni.pdf", "nomina.pdf", "aval.pdf"}}
	if reopened := s.DetectDrift(grown); len(reopened) != 1 {
		t.Errorf("added document must count as drift, got %v", reopened)
	}
}

func TestDetectDriftNullAndUndefinedEquivalent(t *testing.T) {
	s := NewState()
	_ = s.SetAnswer("mortgage-info", AnswerNo, Values{"mortgage_lender": nil})

	// Field entirely absent from the live values: equivalent to null.
	if reopened := s.DetectDrift(Values{}); len(reopened) != 0 {
		t.Errorf("null vs absent must not drift, got %v", reopened)
	}
}

func TestDetectDriftIncomparableShapeIsNoDrift(t *testing.T) {
	s := NewState()
	_ = s.SetAnswer("mortgage-info", AnswerNo, Values{"mortgage_lender": "Banco Uno"})

	// A scalar snapshot against a live list is a shape the engine cannot
	// evaluate; it must not spuriously reopen the section.
	weird := Values{"mortgage_lender": []any{"Banco Uno"}}
	if reopened := s.DetectDrift(weird); len(reopened) != 0 {
		t.Errorf("incomparable shapes must fail safe, got %v", reopened)
	}
}

func TestDetectDriftRetainedSnapshotAfterResetStaysTheBaseline(t *testing.T) {
	s := NewState()
	_ = s.SetAnswer("legal-documents", AnswerNo, Values{})
	_ = s.DetectDrift(Values{"doc_a": "a.pdf"})

	// Re-reject without intervening edits: the retained snapshot (all null)
	// is recaptured from current values per the rejection rules, but until
	// then the stale baseline is what a new rejection would compare against.
	rec := s.Records["legal-documents"]
	if rec.Snapshot["doc_a"] != nil {
		t.Errorf("baseline changed after drift reset: %v", rec.Snapshot)
	}
}
