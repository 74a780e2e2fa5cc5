package server

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sjawhar/panner/internal/content"
)

// ControlHooks wires the HTTP API to the running presenter, scheduler and
// media syncer. Nil hooks disable their routes.
type ControlHooks struct {
	Status      func(ctx context.Context) (StatusReport, error)
	Show        func(ctx context.Context) error
	Close       func(ctx context.Context) error
	Schedule    func() Schedule
	SetSchedule func(Schedule) Schedule
	Sync        func(ctx context.Context) (int, error)
	OpenMedia   func(ctx context.Context, ref content.MediaRef) (io.ReadCloser, error)
}

func Handler(staticFS fs.FS, hub *Hub, store HistoryStore, controls ControlHooks) (http.Handler, error) {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, store, controls)

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(fileServer))

	return mux, nil
}

// New returns an http.Server for h. The caller owns ListenAndServe and Shutdown.
func New(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func serveSPA(fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		// Extensionless routes belong to the overlay page; FileServer
		// redirects "/index.html" to "/", so serve the root directly.
		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" || !strings.Contains(cleanPath, ".") {
			r.URL.Path = "/"
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
