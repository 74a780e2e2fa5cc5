package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/panner/internal/content"
	"github.com/sjawhar/panner/internal/sampler"
	"github.com/sjawhar/panner/internal/scheduler"
	"github.com/sjawhar/panner/internal/storage"
)

type historyStub struct {
	byDate map[string][]storage.Presentation
	dates  []string
	media  map[string]content.MediaRef
}

func (s historyStub) ListPresentations(_ context.Context, date string) ([]storage.Presentation, error) {
	return s.byDate[date], nil
}

func (s historyStub) PresentationDates(context.Context) ([]string, error) {
	return s.dates, nil
}

func (s historyStub) GetMedia(_ context.Context, id string) (content.MediaRef, error) {
	if ref, ok := s.media[id]; ok {
		return ref, nil
	}
	return content.MediaRef{}, fmt.Errorf("get media %s: %w", id, sql.ErrNoRows)
}

func testStaticFS(t *testing.T) fs.FS {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>ok</html>"), 0o644); err != nil {
		t.Fatalf("write index.html failed: %v", err)
	}
	return os.DirFS(dir)
}

func newTestHandler(t *testing.T, store HistoryStore, controls ControlHooks) http.Handler {
	t.Helper()
	h, err := Handler(testStaticFS(t), NewHub(nil), store, controls)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	return h
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAPIPresentationsList(t *testing.T) {
	opened := time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC)
	store := historyStub{byDate: map[string][]storage.Presentation{
		"2026-02-26": {{ID: "p1", Kind: "text", Label: "Proverbs 3:5-7", OpenedAt: opened}},
	}}
	h := newTestHandler(t, store, ControlHooks{})

	rr := serve(h, http.MethodGet, "/api/presentations?date=2026-02-26", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected application/json content-type, got %q", got)
	}
	if !strings.Contains(rr.Body.String(), "Proverbs 3:5-7") {
		t.Fatalf("expected body to contain label, got %s", rr.Body.String())
	}

	rr = serve(h, http.MethodGet, "/api/presentations?date=yesterday", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rr.Code)
	}
}

func TestAPIDatesEmptyIsArray(t *testing.T) {
	h := newTestHandler(t, historyStub{}, ControlHooks{})

	rr := serve(h, http.MethodGet, "/api/dates", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestAPIStatus(t *testing.T) {
	h := newTestHandler(t, historyStub{}, ControlHooks{
		Status: func(context.Context) (StatusReport, error) {
			return StatusReport{
				TextCount:  12,
				MediaCount: 3,
				Running:    true,
				Schedule:   Schedule{MinMinutes: 1, MaxMinutes: 2},
				Policy:     "proportional",
				Warnings:   []string{"No media_dirs configured"},
			}, nil
		},
	})

	rr := serve(h, http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var report StatusReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if report.TextCount != 12 || report.MediaCount != 3 || !report.Running || report.Policy != "proportional" {
		t.Fatalf("unexpected report %#v", report)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", report.Warnings)
	}
}

func TestAPIStatusWithoutHooks(t *testing.T) {
	h := newTestHandler(t, historyStub{}, ControlHooks{})

	rr := serve(h, http.MethodGet, "/api/status", "")
	if !strings.Contains(rr.Body.String(), `"warnings":[]`) {
		t.Fatalf("expected empty warnings array, got %s", rr.Body.String())
	}
}

func TestAPIShow(t *testing.T) {
	calls := 0
	h := newTestHandler(t, historyStub{}, ControlHooks{
		Show: func(context.Context) error {
			calls++
			switch calls {
			case 1:
				return nil
			case 2:
				return sampler.ErrNoContent
			default:
				return fmt.Errorf("trigger: %w", scheduler.ErrStopped)
			}
		},
	})

	if rr := serve(h, http.MethodPost, "/api/show", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := serve(h, http.MethodPost, "/api/show", ""); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for empty library, got %d", rr.Code)
	}
	if rr := serve(h, http.MethodPost, "/api/show", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once the scheduler is stopped, got %d", rr.Code)
	}
}

func TestAPIClose(t *testing.T) {
	closed := false
	h := newTestHandler(t, historyStub{}, ControlHooks{
		Close: func(context.Context) error {
			closed = true
			return nil
		},
	})

	if rr := serve(h, http.MethodPost, "/api/close", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if !closed {
		t.Fatal("expected close hook to run")
	}
}

func TestAPISchedule(t *testing.T) {
	current := Schedule{MinMinutes: 1, MaxMinutes: 2}
	h := newTestHandler(t, historyStub{}, ControlHooks{
		Schedule: func() Schedule { return current },
		SetSchedule: func(s Schedule) Schedule {
			if s.MaxMinutes < s.MinMinutes {
				s.MaxMinutes = s.MinMinutes
			}
			current = s
			return current
		},
	})

	rr := serve(h, http.MethodPut, "/api/schedule", `{"min_minutes":5,"max_minutes":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got Schedule
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.MinMinutes != 5 || got.MaxMinutes != 5 {
		t.Fatalf("expected clamped 5/5, got %#v", got)
	}

	rr = serve(h, http.MethodGet, "/api/schedule", "")
	if !strings.Contains(rr.Body.String(), `"min_minutes":5`) {
		t.Fatalf("expected updated schedule, got %s", rr.Body.String())
	}

	if rr := serve(h, http.MethodPut, "/api/schedule", `{not json`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}
}

func TestAPISync(t *testing.T) {
	h := newTestHandler(t, historyStub{}, ControlHooks{
		Sync: func(context.Context) (int, error) { return 7, nil },
	})

	rr := serve(h, http.MethodPost, "/api/sync", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"items":7`) {
		t.Fatalf("unexpected sync response %d %s", rr.Code, rr.Body.String())
	}
}

func TestAPIMedia(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	id := "0123456789abcdef0123456789abcdef"
	store := historyStub{media: map[string]content.MediaRef{
		id: {ID: id, Locator: "file://" + path, MIME: "image/png"},
	}}
	h := newTestHandler(t, store, ControlHooks{
		OpenMedia: func(_ context.Context, ref content.MediaRef) (io.ReadCloser, error) {
			return os.Open(strings.TrimPrefix(ref.Locator, "file://"))
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/media/"+id, nil)
	req.Header.Set("Range", "bytes=2-4")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rr.Code)
	}
	if rr.Body.String() != "234" {
		t.Fatalf("unexpected range body %q", rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}

	if rr := serve(h, http.MethodGet, "/api/media/ffffffffffffffff", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown media, got %d", rr.Code)
	}
	if rr := serve(h, http.MethodGet, "/api/media/NOT-HEX", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for invalid id, got %d", rr.Code)
	}
}

func TestSPAFallback(t *testing.T) {
	h := newTestHandler(t, historyStub{}, ControlHooks{})

	rr := serve(h, http.MethodGet, "/overlay", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("expected index fallback, got %d %s", rr.Code, rr.Body.String())
	}

	if rr := serve(h, http.MethodGet, "/api/unknown", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown api route, got %d", rr.Code)
	}
}
