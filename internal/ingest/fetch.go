package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// ErrTransient marks a source that could not be fetched or parsed. The
// ingest skips it and a later run may succeed.
var ErrTransient = errors.New("transient ingest failure")

// Fetcher opens corpus sources over HTTP or from the local filesystem.
type Fetcher struct {
	http      *http.Client
	userAgent string
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		http:      &http.Client{Timeout: timeout},
		userAgent: "panner/1.0",
	}
}

// Open returns the decoded body of source. Sources ending in .xz are
// decompressed transparently.
func (f *Fetcher) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	body, err := f.open(ctx, source)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(sourcePath(source)), ".xz") {
		return body, nil
	}

	zr, err := xz.NewReader(body)
	if err != nil {
		_ = body.Close()
		return nil, fmt.Errorf("open xz stream %s: %w", source, err)
	}
	return readCloser{Reader: zr, Closer: body}, nil
}

func (f *Fetcher) open(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.get(ctx, source)
		case "file":
			return os.Open(u.Path)
		}
	}
	return os.Open(source)
}

func (f *Fetcher) get(ctx context.Context, source string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %s", source, resp.Status)
	}
	return resp.Body, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// sourcePath strips any query or fragment so suffix checks see the path.
func sourcePath(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" {
		return u.Path
	}
	return source
}
