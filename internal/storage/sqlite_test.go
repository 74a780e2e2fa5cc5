package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/panner/internal/content"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func mediaSet(prefix string, n int) []content.MediaRef {
	refs := make([]content.MediaRef, n)
	for i := range refs {
		refs[i] = content.MediaRef{
			ID:      fmt.Sprintf("%s-%d", prefix, i),
			Locator: fmt.Sprintf("file:///media/%s-%d.jpg", prefix, i),
			MIME:    "image/jpeg",
			Size:    20000,
		}
	}
	return refs
}

func TestSQLitePragmas(t *testing.T) {
	store := newTestSQLiteStore(t)

	var mode string
	if err := store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected journal_mode wal, got %q", mode)
	}

	var timeout int
	if err := store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
}

func TestVersesAppendAndReadInOrder(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	units := []content.TextUnit{
		{Text: "one", Reference: "A 1:1", Group: "A"},
		{Text: "two", Reference: "A 1:2", Group: "A"},
		{Text: "", Reference: "A 1:x", Group: "A"},
		{Text: "three", Reference: "B 1:1", Group: "B"},
	}
	stored, err := store.AppendVerses(ctx, units)
	if err != nil {
		t.Fatalf("AppendVerses failed: %v", err)
	}
	if stored != 3 {
		t.Fatalf("expected 3 stored units, got %d", stored)
	}

	more, err := store.AppendVerses(ctx, []content.TextUnit{{Text: "four", Reference: "B 1:2", Group: "B"}})
	if err != nil || more != 1 {
		t.Fatalf("second AppendVerses: stored=%d err=%v", more, err)
	}

	n, err := store.CountVerses(ctx)
	if err != nil {
		t.Fatalf("CountVerses failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 verses, got %d", n)
	}

	got, err := store.ReadVerses(ctx, 1, 3)
	if err != nil {
		t.Fatalf("ReadVerses failed: %v", err)
	}
	want := []string{"two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Text != want[i] {
			t.Fatalf("unit %d: expected %q, got %q", i, want[i], got[i].Text)
		}
	}

	tail, err := store.ReadVerses(ctx, 3, 3)
	if err != nil {
		t.Fatalf("ReadVerses tail failed: %v", err)
	}
	if len(tail) != 1 || tail[0].Text != "four" {
		t.Fatalf("expected only the last unit at the tail, got %#v", tail)
	}
}

func TestClearVersesRestartsRanks(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.AppendVerses(ctx, []content.TextUnit{
		{Text: "old one", Reference: "A 1:1", Group: "A"},
		{Text: "old two", Reference: "A 1:2", Group: "A"},
	}); err != nil {
		t.Fatalf("AppendVerses failed: %v", err)
	}

	if err := store.ClearVerses(ctx); err != nil {
		t.Fatalf("ClearVerses failed: %v", err)
	}
	if n, err := store.CountVerses(ctx); err != nil || n != 0 {
		t.Fatalf("expected empty store after clear, got %d err=%v", n, err)
	}

	if _, err := store.AppendVerses(ctx, []content.TextUnit{{Text: "new", Reference: "B 1:1", Group: "B"}}); err != nil {
		t.Fatalf("AppendVerses after clear failed: %v", err)
	}
	got, err := store.ReadVerses(ctx, 0, 3)
	if err != nil {
		t.Fatalf("ReadVerses failed: %v", err)
	}
	if len(got) != 1 || got[0].Text != "new" {
		t.Fatalf("expected the new unit at rank 0, got %#v", got)
	}
}

func TestMediaReplaceAndRead(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.ReplaceMedia(ctx, mediaSet("old", 5)); err != nil {
		t.Fatalf("ReplaceMedia failed: %v", err)
	}
	if err := store.ReplaceMedia(ctx, mediaSet("new", 3)); err != nil {
		t.Fatalf("ReplaceMedia failed: %v", err)
	}

	n, err := store.CountMedia(ctx)
	if err != nil {
		t.Fatalf("CountMedia failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 media items, got %d", n)
	}

	ref, ok, err := store.ReadMediaAt(ctx, 2)
	if err != nil || !ok {
		t.Fatalf("ReadMediaAt failed: ok=%v err=%v", ok, err)
	}
	if ref.ID != "new-2" {
		t.Fatalf("expected new-2 at rank 2, got %q", ref.ID)
	}

	if _, ok, err := store.ReadMediaAt(ctx, 3); err != nil || ok {
		t.Fatalf("expected no item past the end, ok=%v err=%v", ok, err)
	}

	byID, err := store.GetMedia(ctx, "new-0")
	if err != nil {
		t.Fatalf("GetMedia failed: %v", err)
	}
	if byID.Locator != "file:///media/new-0.jpg" {
		t.Fatalf("unexpected locator %q", byID.Locator)
	}
}

func TestMediaReplaceFailureKeepsPriorIndex(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.ReplaceMedia(ctx, mediaSet("old", 4)); err != nil {
		t.Fatalf("ReplaceMedia failed: %v", err)
	}

	// The duplicate id fails the insert half way through the new set.
	broken := mediaSet("new", 3)
	broken = append(broken, broken[0])
	if err := store.ReplaceMedia(ctx, broken); err == nil {
		t.Fatal("expected replace with duplicate ids to fail")
	}

	n, err := store.CountMedia(ctx)
	if err != nil {
		t.Fatalf("CountMedia failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected prior 4 items to survive, got %d", n)
	}
	for rank := int64(0); rank < n; rank++ {
		ref, ok, err := store.ReadMediaAt(ctx, rank)
		if err != nil || !ok {
			t.Fatalf("ReadMediaAt(%d): ok=%v err=%v", rank, ok, err)
		}
		if want := fmt.Sprintf("old-%d", rank); ref.ID != want {
			t.Fatalf("rank %d: expected %q, got %q", rank, want, ref.ID)
		}
	}
}

func TestMediaReadersNeverSeePartialReplace(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.ReplaceMedia(ctx, mediaSet("a", 50)); err != nil {
		t.Fatalf("ReplaceMedia failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			set := mediaSet("a", 50)
			if idx%2 == 1 {
				set = mediaSet("b", 80)
			}
			if err := store.ReplaceMedia(ctx, set); err != nil {
				errs <- err
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.CountMedia(ctx)
			if err != nil {
				errs <- err
				return
			}
			if n != 50 && n != 80 {
				errs <- fmt.Errorf("observed partial index of %d items", n)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}

func TestPresentationHistory(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	opened := time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC)
	if err := store.RecordPresentation(ctx, Presentation{ID: "p1", Kind: "text", Label: "A 1:2-3", OpenedAt: opened}); err != nil {
		t.Fatalf("RecordPresentation failed: %v", err)
	}
	if err := store.FinishPresentation(ctx, "p1", opened.Add(time.Minute), "user"); err != nil {
		t.Fatalf("FinishPresentation failed: %v", err)
	}
	if err := store.FinishPresentation(ctx, "missing", opened, "user"); err == nil {
		t.Fatal("expected error finishing an unknown presentation")
	}

	list, err := store.ListPresentations(ctx, "2026-02-26")
	if err != nil {
		t.Fatalf("ListPresentations failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 presentation, got %d", len(list))
	}
	if list[0].ClosedAt == nil || list[0].CloseReason != "user" {
		t.Fatalf("expected closed presentation with reason user, got %#v", list[0])
	}

	dates, err := store.PresentationDates(ctx)
	if err != nil {
		t.Fatalf("PresentationDates failed: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2026-02-26" {
		t.Fatalf("expected dates [2026-02-26], got %#v", dates)
	}
}
