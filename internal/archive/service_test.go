package archive

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRecordSnapshotAndHistory(t *testing.T) {
	svc := New(t.TempDir())

	published := Snapshot{
		OCGID:    "ocg_1",
		Version:  1,
		Status:   "PUBLISHED",
		Document: json.RawMessage(`{"title":"Guidelines"}`),
	}
	commit, err := svc.RecordSnapshot("org_client", "Outside Counsel Guidelines", published, "Acme Corp", "Publish version 1")
	if err != nil {
		t.Fatalf("RecordSnapshot() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	signed := published
	signed.Status = "SIGNED"
	if _, err := svc.RecordSnapshot("org_client", "Outside Counsel Guidelines", signed, "Smith LLP", "Signed by Smith LLP"); err != nil {
		t.Fatalf("RecordSnapshot(signed) error = %v", err)
	}

	history, err := svc.History("org_client", "Outside Counsel Guidelines", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if !strings.Contains(history[0].Message, "Signed") {
		t.Fatalf("newest entry should be the signing, got %q", history[0].Message)
	}

	snap, err := svc.LatestSnapshot("org_client", "Outside Counsel Guidelines")
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if snap == nil || snap.Status != "SIGNED" {
		t.Fatalf("unexpected latest snapshot: %+v", snap)
	}
}

func TestHistoryOfUnknownAgreementIsEmpty(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History("org_client", "Never Archived", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}
	snap, err := svc.LatestSnapshot("org_client", "Never Archived")
	if err != nil || snap != nil {
		t.Fatalf("expected nil snapshot, got %+v, %v", snap, err)
	}
}

func TestAgreementKeySlug(t *testing.T) {
	if got := agreementKey("org_1", "Outside Counsel  Guidelines"); got != "org_1__outside-counsel--guidelines" {
		t.Fatalf("unexpected key %q", got)
	}
}
