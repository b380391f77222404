package store

import "testing"

func TestParseStatusRejectsUnknownValues(t *testing.T) {
	for _, raw := range []string{"", "draft", "ARCHIVED", "SIGNED "} {
		if _, err := ParseStatus(raw); err == nil {
			t.Errorf("ParseStatus(%q) should fail", raw)
		}
	}
	for _, raw := range []string{"DRAFT", "PUBLISHED", "NEGOTIATING", "SIGNED"} {
		if _, err := ParseStatus(raw); err != nil {
			t.Errorf("ParseStatus(%q) failed: %v", raw, err)
		}
	}
}

func TestStatusTransitionsOnlyMoveForward(t *testing.T) {
	order := []Status{StatusDraft, StatusPublished, StatusNegotiating, StatusSigned}
	for i, from := range order {
		for j, to := range order {
			got := from.CanTransitionTo(to)
			want := j > i
			if got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
	if StatusDraft.CanTransitionTo(Status("ARCHIVED")) {
		t.Error("transition to unknown status must be rejected")
	}
}

func TestStatusPredecessor(t *testing.T) {
	cases := map[Status]Status{
		StatusPublished:   StatusDraft,
		StatusNegotiating: StatusPublished,
		StatusSigned:      StatusNegotiating,
	}
	for status, want := range cases {
		prev, ok := status.Predecessor()
		if !ok || prev != want {
			t.Errorf("Predecessor(%s) = %s, %v; want %s", status, prev, ok, want)
		}
	}
	if _, ok := StatusDraft.Predecessor(); ok {
		t.Error("DRAFT has no predecessor")
	}
	if _, ok := Status("ARCHIVED").Predecessor(); ok {
		t.Error("unknown status has no predecessor")
	}
}
