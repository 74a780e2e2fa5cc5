package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sjawhar/panner/internal/content"
)

// Journal appends presented text groups to one markdown file per day.
type Journal struct {
	dir string
	mu  sync.Mutex
}

func NewJournal(dir string) *Journal {
	return &Journal{dir: dir}
}

func (j *Journal) Append(at time.Time, g content.TextGroup) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", j.dir, err)
	}

	path := j.pathFor(at)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "- %s **%s** %s\n", at.Format("15:04"), g.Reference, g.Text); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (j *Journal) CurrentPath() string {
	return j.pathFor(time.Now())
}

func (j *Journal) pathFor(at time.Time) string {
	return filepath.Join(j.dir, at.Format("2006-01-02")+".md")
}
