package revision

import (
	"errors"
	"testing"

	"lexdraft/api/internal/contract"
)

func testSnapshot(title string) Snapshot {
	return Snapshot{
		ContractID: "opp-1",
		Title:      title,
		TemplateID: "service_agreement",
		Cells: []contract.Cell{
			{ID: "a", Title: "Parties", Content: "<p>x</p>", Visible: true, Kind: contract.KindRichText},
		},
	}
}

func TestCommitAndHead(t *testing.T) {
	svc := New(t.TempDir())

	info, err := svc.Commit("opp-1", testSnapshot("Draft v1"), "Jordan", "")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if info.Hash == "" || info.Author != "Jordan" {
		t.Errorf("commit info: %+v", info)
	}
	if info.Message != "Save drafting progress" {
		t.Errorf("default message not applied: %q", info.Message)
	}

	snap, head, err := svc.Head("opp-1")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Hash != info.Hash {
		t.Errorf("head hash %s, want %s", head.Hash, info.Hash)
	}
	if snap.Title != "Draft v1" || len(snap.Cells) != 1 {
		t.Errorf("snapshot round-trip: %+v", snap)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Commit("opp-1", testSnapshot("v1"), "Jordan", "first save")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	second, err := svc.Commit("opp-1", testSnapshot("v2"), "Jordan", "second save")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	history, err := svc.History("opp-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
	if history[0].Hash != second.Hash || history[1].Hash != first.Hash {
		t.Error("history not newest-first")
	}

	limited, err := svc.History("opp-1", 1)
	if err != nil {
		t.Fatalf("History limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit not honored: %d", len(limited))
	}
}

func TestGetByHashRecoversOldSnapshot(t *testing.T) {
	svc := New(t.TempDir())

	first, _ := svc.Commit("opp-1", testSnapshot("v1"), "Jordan", "first")
	if _, err := svc.Commit("opp-1", testSnapshot("v2"), "Jordan", "second"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap, err := svc.GetByHash("opp-1", first.Hash)
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if snap.Title != "v1" {
		t.Errorf("old snapshot title %q, want v1", snap.Title)
	}
}

func TestHeadWithoutHistory(t *testing.T) {
	svc := New(t.TempDir())
	if _, _, err := svc.Head("never-saved"); !errors.Is(err, ErrNoHistory) {
		t.Errorf("expected ErrNoHistory, got %v", err)
	}
	if _, err := svc.History("never-saved", 0); !errors.Is(err, ErrNoHistory) {
		t.Errorf("expected ErrNoHistory, got %v", err)
	}
}
