package archive

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"editorial/api/internal/store"
)

func publication(kind store.NodeKind, id int64, version int, title string) Publication {
	return Publication{
		Kind:          kind,
		NodeID:        id,
		ParentID:      1,
		VersionID:     id*100 + int64(version),
		VersionNumber: version,
		Title:         store.Text{En: title},
		Body:          store.Text{En: "body " + title},
		AuthorID:      7,
		PublishedBy:   9,
		PublishedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestHistoryBeforeFirstCommit(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "archive"))
	history, err := svc.History(store.KindBook, 1, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("History() = %+v, want empty", history)
	}
}

func TestRecordAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	first, err := svc.Record(publication(store.KindSection, 4, 1, "Origins"), "user-9")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	second, err := svc.Record(publication(store.KindSection, 4, 2, "Origins revised"), "user-9")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if first.Hash == second.Hash {
		t.Fatal("expected distinct commits")
	}
	if second.Author != "user-9" {
		t.Fatalf("Author = %q", second.Author)
	}
	if _, err := os.Stat(filepath.Join(dir, "section", "4.json")); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}

	old, err := svc.Snapshot(store.KindSection, 4, first.Hash)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if old.VersionNumber != 1 || old.Title.En != "Origins" {
		t.Fatalf("Snapshot(first) = %+v", old)
	}

	history, err := svc.History(store.KindSection, 4, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != second.Hash {
		t.Fatalf("History() = %+v", history)
	}
}

func TestHistoryIsPerNode(t *testing.T) {
	svc := New(t.TempDir())
	for _, pub := range []Publication{
		publication(store.KindBook, 1, 1, "A"),
		publication(store.KindChapter, 2, 1, "B"),
		publication(store.KindBook, 1, 2, "A2"),
		publication(store.KindBook, 1, 3, "A3"),
	} {
		if _, err := svc.Record(pub, "editor"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	history, err := svc.History(store.KindBook, 1, 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History(limit 2) len = %d", len(history))
	}
	chapter, err := svc.History(store.KindChapter, 2, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(chapter) != 1 {
		t.Fatalf("chapter history len = %d, want 1", len(chapter))
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)
	if _, err := svc.Record(publication(store.KindParagraph, 5, 1, ""), "editor"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	commit, ok, err := svc.Remove([]Ref{
		{Kind: store.KindParagraph, NodeID: 5},
		{Kind: store.KindParagraph, NodeID: 6},
	}, "editor")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !ok || commit.Hash == "" {
		t.Fatalf("Remove() = %+v, %v", commit, ok)
	}
	if _, err := os.Stat(filepath.Join(dir, "paragraph", "5.json")); !os.IsNotExist(err) {
		t.Fatalf("expected snapshot file removed, stat err = %v", err)
	}

	history, err := svc.History(store.KindParagraph, 5, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != commit.Hash {
		t.Fatalf("History() = %+v", history)
	}

	if _, ok, err := svc.Remove([]Ref{{Kind: store.KindParagraph, NodeID: 5}}, "editor"); err != nil || ok {
		t.Fatalf("second Remove() = %v, %v; want no-op", ok, err)
	}
}

func TestConcurrentRecords(t *testing.T) {
	svc := New(t.TempDir())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(version int) {
			defer wg.Done()
			if _, err := svc.Record(publication(store.KindChapter, 3, version, "Ch"), "editor"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Record() error = %v", err)
	}

	history, err := svc.History(store.KindChapter, 3, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 8 {
		t.Fatalf("History() len = %d, want 8", len(history))
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"Jane Doe": "Jane.Doe",
		"user-12":  "user.12",
		"!!":       "user",
	}
	for in, want := range cases {
		if got := sanitizeEmail(in); got != want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
