package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/content"
)

// Kind selects the parser for a source.
type Kind string

const (
	KindKJV    Kind = "kjv"
	KindSirach Kind = "sirach"
	KindFeed   Kind = "feed"
)

// Store is the verse store the ingester fills.
type Store interface {
	CountVerses(ctx context.Context) (int64, error)
	AppendVerses(ctx context.Context, units []content.TextUnit) (int, error)
}

// Opener opens a source for reading.
type Opener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, error)
}

// Source is one configured corpus location.
type Source struct {
	Location string
	Kind     Kind
}

// SourceFor infers the parser from a location: "sirach" in the name picks the
// HTML parser, "kjv" the plain-text parser, anything else is treated as a feed.
func SourceFor(location string) Source {
	name := strings.ToLower(path.Base(strings.TrimSuffix(sourcePath(location), ".xz")))
	switch {
	case strings.Contains(name, "sirach"):
		return Source{Location: location, Kind: KindSirach}
	case strings.Contains(name, "kjv"):
		return Source{Location: location, Kind: KindKJV}
	default:
		return Source{Location: location, Kind: KindFeed}
	}
}

// Sources builds the source list from corpus locations and feed URLs.
func Sources(corpus, feeds []string) []Source {
	out := make([]Source, 0, len(corpus)+len(feeds))
	for _, c := range corpus {
		out = append(out, SourceFor(c))
	}
	for _, f := range feeds {
		out = append(out, Source{Location: f, Kind: KindFeed})
	}
	return out
}

// Report summarizes one ingest run.
type Report struct {
	Stored  int
	Dropped int
	Failed  []string
	Skipped bool
}

type Ingester struct {
	store   Store
	opener  Opener
	sources []Source
	log     *zap.Logger
	sleep   func(time.Duration)
	backoff []time.Duration
}

func New(store Store, opener Opener, sources []Source, log *zap.Logger) *Ingester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingester{
		store:   store,
		opener:  opener,
		sources: sources,
		log:     log,
		sleep:   time.Sleep,
		backoff: []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second},
	}
}

// Run fills an empty verse store from every source. It does nothing when the
// store already holds units. Sources that fail are logged and skipped.
func (in *Ingester) Run(ctx context.Context) (Report, error) {
	count, err := in.store.CountVerses(ctx)
	if err != nil {
		return Report{}, err
	}
	if count > 0 {
		in.log.Debug("verse store populated, skipping ingest", zap.Int64("count", count))
		return Report{Skipped: true}, nil
	}
	return in.ingestAll(ctx)
}

func (in *Ingester) ingestAll(ctx context.Context) (Report, error) {
	var report Report
	for _, src := range in.sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := in.fetchWithRetry(ctx, src)
		if err != nil {
			report.Failed = append(report.Failed, src.Location)
			in.log.Warn("corpus source skipped",
				zap.String("source", src.Location),
				zap.String("kind", string(src.Kind)),
				zap.Error(err),
			)
			continue
		}

		stored, err := in.store.AppendVerses(ctx, res.Units)
		if err != nil {
			return report, fmt.Errorf("store %s: %w", src.Location, err)
		}
		report.Stored += stored
		report.Dropped += res.Dropped
		in.log.Info("corpus source ingested",
			zap.String("source", src.Location),
			zap.Int("stored", stored),
			zap.Int("dropped", res.Dropped),
		)
	}
	return report, nil
}

func (in *Ingester) fetchWithRetry(ctx context.Context, src Source) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < len(in.backoff); attempt++ {
		res, err := in.fetch(ctx, src)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < len(in.backoff)-1 {
			in.sleep(in.backoff[attempt])
		}
	}
	return Result{}, errors.Join(ErrTransient, lastErr)
}

func (in *Ingester) fetch(ctx context.Context, src Source) (Result, error) {
	body, err := in.opener.Open(ctx, src.Location)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = body.Close() }()

	switch src.Kind {
	case KindKJV:
		return ParseKJV(body)
	case KindSirach:
		return ParseSirach(body)
	case KindFeed:
		return ParseFeed(body)
	default:
		return Result{}, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}
