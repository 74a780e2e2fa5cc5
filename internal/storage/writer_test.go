package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/panner/internal/content"
)

func TestJournalAppendsToDaily(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)

	at := time.Date(2026, 2, 26, 10, 30, 0, 0, time.Local)
	if err := j.Append(at, content.TextGroup{Text: "Trust in the LORD.", Reference: "Proverbs 3:5"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2026-02-26.md"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	got := string(data)
	if !strings.Contains(got, "**Proverbs 3:5**") {
		t.Errorf("expected reference in journal, got: %s", got)
	}
	if !strings.Contains(got, "10:30") {
		t.Errorf("expected time in journal, got: %s", got)
	}
}

func TestJournalMultipleAppends(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)
	at := time.Date(2026, 2, 26, 10, 30, 0, 0, time.Local)

	_ = j.Append(at, content.TextGroup{Text: "First.", Reference: "A 1:1"})
	_ = j.Append(at, content.TextGroup{Text: "Second.", Reference: "A 1:2"})

	data, _ := os.ReadFile(filepath.Join(dir, "2026-02-26.md"))
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}
