package store

import "testing"

func strPtr(s string) *string { return &s }

func TestBuildHierarchyNestsAndOrders(t *testing.T) {
	sections := []Section{
		{ID: "sec_b", OCGID: "ocg_1", SortOrder: 1, Title: "Staffing"},
		{ID: "sec_a", OCGID: "ocg_1", SortOrder: 0, Title: "Billing"},
		{ID: "sec_a1", OCGID: "ocg_1", ParentID: strPtr("sec_a"), SortOrder: 0, Title: "Rates"},
		{ID: "sec_a2", OCGID: "ocg_1", ParentID: strPtr("sec_a"), SortOrder: 1, Title: "Expenses"},
	}
	alts := map[string][]Alternative{
		"sec_a1": {{ID: "alt_1", SectionID: "sec_a1"}},
	}

	tree := buildHierarchy(sections, alts)
	if len(tree) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(tree))
	}
	if tree[0].Title != "Billing" || tree[1].Title != "Staffing" {
		t.Fatalf("unexpected top-level order: %s, %s", tree[0].Title, tree[1].Title)
	}
	if len(tree[0].Subsections) != 2 {
		t.Fatalf("expected 2 subsections under Billing, got %d", len(tree[0].Subsections))
	}
	if tree[0].Subsections[0].Title != "Rates" {
		t.Fatalf("expected Rates first, got %s", tree[0].Subsections[0].Title)
	}
	if len(tree[0].Subsections[0].Alternatives) != 1 {
		t.Fatal("expected Rates to carry its alternative")
	}
}

func TestBuildHierarchyUnknownParentBecomesTopLevel(t *testing.T) {
	sections := []Section{
		{ID: "sec_a", OCGID: "ocg_1", ParentID: strPtr("sec_missing"), Title: "Orphan"},
	}
	tree := buildHierarchy(sections, nil)
	if len(tree) != 1 || tree[0].Title != "Orphan" {
		t.Fatalf("expected orphan surfaced as top-level, got %+v", tree)
	}
}

func TestBuildHierarchyBreaksParentCycle(t *testing.T) {
	sections := []Section{
		{ID: "sec_a", OCGID: "ocg_1", ParentID: strPtr("sec_b"), SortOrder: 0, Title: "A"},
		{ID: "sec_b", OCGID: "ocg_1", ParentID: strPtr("sec_a"), SortOrder: 1, Title: "B"},
		{ID: "sec_c", OCGID: "ocg_1", SortOrder: 2, Title: "C"},
	}
	tree := buildHierarchy(sections, nil)

	seen := map[string]int{}
	var count func(nodes []SectionNode)
	count = func(nodes []SectionNode) {
		for _, node := range nodes {
			seen[node.ID]++
			count(node.Subsections)
		}
	}
	count(tree)

	for _, id := range []string{"sec_a", "sec_b", "sec_c"} {
		if seen[id] != 1 {
			t.Fatalf("section %s appeared %d times, want exactly once", id, seen[id])
		}
	}
}
