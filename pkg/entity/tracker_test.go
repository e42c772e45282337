package entity

import "testing"

func TestTrackerSeedAndTransition(t *testing.T) {
	tr := NewTracker()
	tr.Seed("invoice-1", "doc-approval", "draft", 1)

	s, ok := tr.State("invoice-1")
	if !ok || s.CurrentState != "draft" {
		t.Fatalf("unexpected seeded state: %+v ok=%v", s, ok)
	}

	if err := tr.ApplyTransition("invoice-1", "review", 2); err != nil {
		t.Fatalf("apply transition: %v", err)
	}

	s, _ = tr.State("invoice-1")
	if s.CurrentState != "review" || s.LastRecordIndex != 2 {
		t.Fatalf("unexpected state after transition: %+v", s)
	}
}

func TestTrackerApplyTransitionUnknownEntity(t *testing.T) {
	tr := NewTracker()
	if err := tr.ApplyTransition("missing", "review", 1); err == nil {
		t.Fatal("expected error for unknown entity")
	}
}
