package store

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestResolveDefaultOnAddFirstAlternativeWins(t *testing.T) {
	got := resolveDefaultOnAdd(nil, "alt_new", nil)
	if got != "alt_new" {
		t.Fatalf("expected alt_new to become default, got %s", got)
	}
}

func TestResolveDefaultOnAddLaterAlternativeDoesNotSteal(t *testing.T) {
	siblings := []altState{{ID: "alt_a", IsDefault: true}, {ID: "alt_b"}}
	got := resolveDefaultOnAdd(siblings, "alt_new", nil)
	if got != "alt_a" {
		t.Fatalf("expected alt_a to keep default, got %s", got)
	}
	got = resolveDefaultOnAdd(siblings, "alt_new", boolPtr(false))
	if got != "alt_a" {
		t.Fatalf("expected alt_a to keep default with explicit false, got %s", got)
	}
}

func TestResolveDefaultOnAddExplicitRequestWins(t *testing.T) {
	siblings := []altState{{ID: "alt_a", IsDefault: true}}
	got := resolveDefaultOnAdd(siblings, "alt_new", boolPtr(true))
	if got != "alt_new" {
		t.Fatalf("expected explicit default request to win, got %s", got)
	}
}

func TestResolveDefaultOnAddRepairsMissingDefault(t *testing.T) {
	siblings := []altState{{ID: "alt_a"}, {ID: "alt_b"}}
	got := resolveDefaultOnAdd(siblings, "alt_new", nil)
	if got != "alt_new" {
		t.Fatalf("expected new alternative to take default when none held it, got %s", got)
	}
}

func TestResolveDefaultOnDeletePromotesSibling(t *testing.T) {
	siblings := []altState{{ID: "alt_a", IsDefault: true}, {ID: "alt_b"}}
	promote, remaining := resolveDefaultOnDelete(siblings, "alt_a")
	if !remaining {
		t.Fatal("expected a remaining alternative")
	}
	if promote != "alt_b" {
		t.Fatalf("expected alt_b promoted, got %q", promote)
	}
}

func TestResolveDefaultOnDeleteNonDefaultLeavesDefaultAlone(t *testing.T) {
	siblings := []altState{{ID: "alt_a", IsDefault: true}, {ID: "alt_b"}}
	promote, remaining := resolveDefaultOnDelete(siblings, "alt_b")
	if !remaining {
		t.Fatal("expected a remaining alternative")
	}
	if promote != "" {
		t.Fatalf("expected no promotion, got %q", promote)
	}
}

func TestResolveDefaultOnDeleteLastAlternative(t *testing.T) {
	siblings := []altState{{ID: "alt_a", IsDefault: true}}
	promote, remaining := resolveDefaultOnDelete(siblings, "alt_a")
	if remaining {
		t.Fatal("expected no remaining alternatives")
	}
	if promote != "" {
		t.Fatalf("expected no promotion, got %q", promote)
	}
}
