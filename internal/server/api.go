package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/sjawhar/panner/internal/content"
	"github.com/sjawhar/panner/internal/sampler"
	"github.com/sjawhar/panner/internal/scheduler"
	"github.com/sjawhar/panner/internal/session"
	"github.com/sjawhar/panner/internal/storage"
)

var (
	mediaIDPattern = regexp.MustCompile(`^[a-f0-9]{8,64}$`)
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

type HistoryStore interface {
	ListPresentations(ctx context.Context, date string) ([]storage.Presentation, error)
	PresentationDates(ctx context.Context) ([]string, error)
	GetMedia(ctx context.Context, id string) (content.MediaRef, error)
}

// Schedule is the wire form of the presentation interval, in minutes.
type Schedule struct {
	MinMinutes float64 `json:"min_minutes"`
	MaxMinutes float64 `json:"max_minutes"`
}

type StatusReport struct {
	TextCount  int64            `json:"text_count"`
	MediaCount int64            `json:"media_count"`
	Session    *session.Session `json:"session,omitempty"`
	Running    bool             `json:"running"`
	NextAt     *time.Time       `json:"next_at,omitempty"`
	Schedule   Schedule         `json:"schedule"`
	Policy     string           `json:"policy"`
	Warnings   []string         `json:"warnings"`
}

func registerAPIRoutes(mux *http.ServeMux, store HistoryStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		if controls.Status == nil {
			writeJSON(w, http.StatusOK, StatusReport{Warnings: []string{}})
			return
		}
		report, err := controls.Status(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("status: %v", err))
			return
		}
		if report.Warnings == nil {
			report.Warnings = []string{}
		}
		writeJSON(w, http.StatusOK, report)
	})

	mux.HandleFunc("POST /api/show", func(w http.ResponseWriter, r *http.Request) {
		if controls.Show == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "presentation unavailable")
			return
		}
		if err := controls.Show(r.Context()); err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, sampler.ErrNoContent):
				status = http.StatusConflict
			case errors.Is(err, session.ErrOpenInProgress):
				status = http.StatusTooManyRequests
			case errors.Is(err, scheduler.ErrStopped):
				status = http.StatusServiceUnavailable
			}
			writeJSONError(w, status, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/close", func(w http.ResponseWriter, r *http.Request) {
		if controls.Close != nil {
			if err := controls.Close(r.Context()); err != nil {
				writeJSONError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/schedule", func(w http.ResponseWriter, r *http.Request) {
		var sched Schedule
		if controls.Schedule != nil {
			sched = controls.Schedule()
		}
		writeJSON(w, http.StatusOK, sched)
	})

	mux.HandleFunc("PUT /api/schedule", func(w http.ResponseWriter, r *http.Request) {
		if controls.SetSchedule == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "schedule is read-only")
			return
		}
		var req Schedule
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode schedule: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, controls.SetSchedule(req))
	})

	mux.HandleFunc("POST /api/sync", func(w http.ResponseWriter, r *http.Request) {
		if controls.Sync == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "media sync unavailable")
			return
		}
		n, err := controls.Sync(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"items": n})
	})

	mux.HandleFunc("GET /api/presentations", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		if !datePattern.MatchString(date) {
			writeJSONError(w, http.StatusBadRequest, "invalid date")
			return
		}

		list, err := store.ListPresentations(r.Context(), date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list presentations: %v", err))
			return
		}
		if list == nil {
			list = []storage.Presentation{}
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.PresentationDates(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("GET /api/media/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !mediaIDPattern.MatchString(id) {
			writeJSONError(w, http.StatusForbidden, "invalid media id")
			return
		}

		ref, err := store.GetMedia(r.Context(), id)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get media: %v", err))
			return
		}
		if controls.OpenMedia == nil {
			writeJSONError(w, http.StatusNotFound, "media not available")
			return
		}

		rc, err := controls.OpenMedia(r.Context(), ref)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "media not available")
			return
		}
		defer func() { _ = rc.Close() }()

		if ref.MIME != "" {
			w.Header().Set("Content-Type", ref.MIME)
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		if rs, ok := rc.(io.ReadSeeker); ok {
			w.Header().Set("Accept-Ranges", "bytes")
			http.ServeContent(w, r, id, time.Time{}, rs)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
