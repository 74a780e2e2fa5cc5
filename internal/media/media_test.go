package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/sjawhar/panner/internal/content"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFSSourceFiltersBySizeAndType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.jpg"), DefaultMinBytes+1)
	writeFile(t, filepath.Join(dir, "thumb.jpg"), 512)
	writeFile(t, filepath.Join(dir, "nested", "clip.mp4"), DefaultMinBytes*2)
	writeFile(t, filepath.Join(dir, "notes.txt"), DefaultMinBytes*2)

	src := &FSSource{Dirs: []string{dir}, MinBytes: DefaultMinBytes}
	refs, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %#v", refs)
	}

	for _, ref := range refs {
		if !strings.HasPrefix(ref.Locator, "file://") {
			t.Fatalf("expected file locator, got %q", ref.Locator)
		}
		if ref.ID != RefID(ref.Locator) {
			t.Fatalf("expected ID derived from locator, got %q", ref.ID)
		}
	}
	if refs[0].MIME != "image/jpeg" || refs[1].MIME != "video/mp4" || !refs[1].IsVideo() {
		t.Fatalf("unexpected mime types %q %q", refs[0].MIME, refs[1].MIME)
	}
}

func TestFSSourceMissingRootFails(t *testing.T) {
	src := &FSSource{Dirs: []string{filepath.Join(t.TempDir(), "missing")}}
	if _, err := src.List(context.Background()); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestRefIDStable(t *testing.T) {
	a := RefID("file:///a.jpg")
	if a != RefID("file:///a.jpg") || a == RefID("file:///b.jpg") {
		t.Fatal("expected stable distinct IDs")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}

type sourceMock struct {
	name string
	refs []content.MediaRef
	err  error
}

func (s sourceMock) Name() string { return s.name }

func (s sourceMock) List(context.Context) ([]content.MediaRef, error) { return s.refs, s.err }

type indexMock struct {
	refs     []content.MediaRef
	replaced int
	err      error
}

func (i *indexMock) ReplaceMedia(_ context.Context, refs []content.MediaRef) error {
	if i.err != nil {
		return i.err
	}
	i.refs = refs
	i.replaced++
	return nil
}

func TestSyncerMergesSources(t *testing.T) {
	idx := &indexMock{}
	s := NewSyncer(idx, []Source{
		sourceMock{name: "a", refs: []content.MediaRef{{ID: "1", Locator: "file:///1"}, {ID: "2", Locator: "file:///2"}}},
		sourceMock{name: "b", refs: []content.MediaRef{{ID: "2", Locator: "file:///2"}, {ID: "3", Locator: "gdrive://3"}}},
	}, nil)

	n, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if n != 3 || len(idx.refs) != 3 {
		t.Fatalf("expected 3 deduplicated refs, got %d %#v", n, idx.refs)
	}
}

func TestSyncerKeepsIndexOnFailure(t *testing.T) {
	idx := &indexMock{refs: []content.MediaRef{{ID: "old"}}}
	s := NewSyncer(idx, []Source{
		sourceMock{name: "ok", refs: []content.MediaRef{{ID: "new"}}},
		sourceMock{name: "broken", err: errors.New("permission denied")},
	}, nil)

	if _, err := s.Sync(context.Background()); !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
	if idx.replaced != 0 || idx.refs[0].ID != "old" {
		t.Fatalf("expected previous index kept, got %#v", idx.refs)
	}

	idx.err = errors.New("disk full")
	s = NewSyncer(idx, []Source{sourceMock{name: "ok"}}, nil)
	if _, err := s.Sync(context.Background()); !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed for replace error, got %v", err)
	}
}

func TestDriveSourceList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/files") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query().Get("q")
		if !strings.Contains(q, "'folder-1' in parents") || !strings.Contains(q, "trashed = false") {
			t.Errorf("unexpected query %q", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"files":[
			{"id":"a","mimeType":"image/png","size":"20000"},
			{"id":"b","mimeType":"image/png","size":"100"},
			{"id":"c","mimeType":"video/mp4","size":"900000"}
		]}`)
	}))
	defer server.Close()

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/drive/v3/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("drive service: %v", err)
	}

	refs, err := newDriveSource(svc, "folder-1", DefaultMinBytes).List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs above the size floor, got %#v", refs)
	}
	if refs[0].Locator != "gdrive://a" || refs[1].MIME != "video/mp4" {
		t.Fatalf("unexpected refs %#v", refs)
	}
}

func TestOpenerFileLocator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	writeFile(t, path, 10)

	o := &Opener{}
	rc, err := o.Open(context.Background(), content.MediaRef{Locator: "file://" + path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = rc.Close()

	if _, err := o.Open(context.Background(), content.MediaRef{Locator: "gdrive://x"}); !errors.Is(err, ErrUnsupportedLocator) {
		t.Fatalf("expected ErrUnsupportedLocator without drive, got %v", err)
	}
}
