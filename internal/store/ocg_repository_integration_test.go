package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// getTestDatabaseURL returns the database URL for integration tests, or
// skips the test when no database is configured.
func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("JUSTICEBID_TEST_DATABASE_URL"); url != "" {
		return url
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	t.Skip("JUSTICEBID_TEST_DATABASE_URL not set; skipping integration test")
	return ""
}

func setupIntegrationStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func TestSelectionUpsertAndBudgetLock(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	budget := 5
	ocg, err := s.CreateOCG(ctx, CreateOCGParams{
		ClientID:               "org_client_it",
		Name:                   "Integration Guidelines",
		TotalPoints:            10,
		DefaultFirmPointBudget: &budget,
	})
	if err != nil {
		t.Fatalf("create ocg: %v", err)
	}

	sec, err := s.AddSection(ctx, AddSectionParams{OCGID: ocg.ID, Title: "Billing", IsNegotiable: true})
	if err != nil {
		t.Fatalf("add section: %v", err)
	}
	cheap, err := s.AddAlternative(ctx, AddAlternativeParams{SectionID: sec.ID, Title: "Cheap", Points: 2})
	if err != nil {
		t.Fatalf("add cheap alternative: %v", err)
	}
	if !cheap.IsDefault {
		t.Fatal("first alternative must become default")
	}
	costly, err := s.AddAlternative(ctx, AddAlternativeParams{SectionID: sec.ID, Title: "Costly", Points: 6})
	if err != nil {
		t.Fatalf("add costly alternative: %v", err)
	}
	if costly.IsDefault {
		t.Fatal("second alternative must not steal default")
	}

	firmID := "org_firm_it"

	out, err := s.SelectWithinBudget(ctx, ocg.ID, firmID, sec.ID, costly.ID)
	if err != nil {
		t.Fatalf("select costly: %v", err)
	}
	if !out.Exceeded {
		t.Fatalf("expected budget exceeded (budget=%d, required=%d)", out.Budget, out.Required)
	}
	if used, _ := s.CalculatePointsUsed(ctx, ocg.ID, firmID); used != 0 {
		t.Fatalf("failed selection must not change usage, got %d", used)
	}

	out, err = s.SelectWithinBudget(ctx, ocg.ID, firmID, sec.ID, cheap.ID)
	if err != nil {
		t.Fatalf("select cheap: %v", err)
	}
	if out.Exceeded || out.Selection == nil {
		t.Fatalf("expected selection to apply, got %+v", out)
	}

	// Selecting the same alternative again leaves one unchanged row.
	again, err := s.SelectWithinBudget(ctx, ocg.ID, firmID, sec.ID, cheap.ID)
	if err != nil {
		t.Fatalf("reselect cheap: %v", err)
	}
	if again.Selection == nil || again.Selection.PointsUsed != cheap.Points {
		t.Fatalf("idempotent reselect broke, got %+v", again.Selection)
	}
	selections, err := s.GetSelectionsByFirm(ctx, ocg.ID, firmID)
	if err != nil {
		t.Fatalf("list selections: %v", err)
	}
	if len(selections) != 1 {
		t.Fatalf("expected exactly one selection row, got %d", len(selections))
	}
}

func TestCreateNewVersionClonesTreeWithoutSelections(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	ocg, err := s.CreateOCG(ctx, CreateOCGParams{ClientID: "org_client_clone", Name: "Clone Guidelines"})
	if err != nil {
		t.Fatalf("create ocg: %v", err)
	}
	parent, err := s.AddSection(ctx, AddSectionParams{OCGID: ocg.ID, Title: "Top"})
	if err != nil {
		t.Fatalf("add parent: %v", err)
	}
	child, err := s.AddSection(ctx, AddSectionParams{OCGID: ocg.ID, ParentID: &parent.ID, Title: "Nested", IsNegotiable: true})
	if err != nil {
		t.Fatalf("add child: %v", err)
	}
	if _, err := s.AddAlternative(ctx, AddAlternativeParams{SectionID: child.ID, Title: "Option", Points: 3}); err != nil {
		t.Fatalf("add alternative: %v", err)
	}
	if _, err := s.CreateFirmSelection(ctx, ocg.ID, "org_firm_clone", child.ID, mustFirstAlternative(t, s, ctx, child.ID)); err != nil {
		t.Fatalf("create selection: %v", err)
	}

	clone, err := s.CreateNewVersion(ctx, ocg.ID)
	if err != nil {
		t.Fatalf("create new version: %v", err)
	}
	if clone.Version != ocg.Version+1 || clone.Status != StatusDraft {
		t.Fatalf("bad clone meta: version=%d status=%s", clone.Version, clone.Status)
	}

	tree, err := s.GetSectionHierarchy(ctx, clone.ID)
	if err != nil {
		t.Fatalf("get hierarchy: %v", err)
	}
	if len(tree) != 1 || tree[0].Title != "Top" {
		t.Fatalf("clone lost top-level shape: %+v", tree)
	}
	if len(tree[0].Subsections) != 1 || len(tree[0].Subsections[0].Alternatives) != 1 {
		t.Fatal("clone lost nested section or alternative")
	}
	if used, _ := s.CalculatePointsUsed(ctx, clone.ID, "org_firm_clone"); used != 0 {
		t.Fatalf("clone must start with zero selections, got %d points used", used)
	}
}

func mustFirstAlternative(t *testing.T, s *PostgresStore, ctx context.Context, sectionID string) string {
	t.Helper()
	alts, err := listAlternativesForOCGSection(ctx, s, sectionID)
	if err != nil || len(alts) == 0 {
		t.Fatalf("no alternatives for section %s: %v", sectionID, err)
	}
	return alts[0]
}

func listAlternativesForOCGSection(ctx context.Context, s *PostgresStore, sectionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM ocg_alternatives WHERE section_id=$1 ORDER BY sort_order`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
