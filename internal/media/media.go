package media

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/content"
)

// ErrSyncFailed reports that the media index was left unchanged because a
// source could not be enumerated or the replace failed.
var ErrSyncFailed = errors.New("media sync failed")

// DefaultMinBytes drops thumbnails and placeholder files.
const DefaultMinBytes = 16 * 1024

// Source enumerates presentable media.
type Source interface {
	Name() string
	List(ctx context.Context) ([]content.MediaRef, error)
}

// Index is the media store a sync replaces.
type Index interface {
	ReplaceMedia(ctx context.Context, refs []content.MediaRef) error
}

// RefID derives a stable media ID from its locator.
func RefID(locator string) string {
	sum := blake3.Sum256([]byte(locator))
	return hex.EncodeToString(sum[:16])
}

// Syncer rebuilds the media index from its sources.
type Syncer struct {
	index   Index
	sources []Source
	log     *zap.Logger
}

func NewSyncer(index Index, sources []Source, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{index: index, sources: sources, log: log}
}

// Sync enumerates every source and replaces the index with the union.
// Duplicate IDs keep their first occurrence.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	started := time.Now()

	var refs []content.MediaRef
	seen := make(map[string]struct{})
	for _, src := range s.sources {
		listed, err := src.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: list %s: %w", ErrSyncFailed, src.Name(), err)
		}
		for _, ref := range listed {
			if _, dup := seen[ref.ID]; dup {
				continue
			}
			seen[ref.ID] = struct{}{}
			refs = append(refs, ref)
		}
	}

	if err := s.index.ReplaceMedia(ctx, refs); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	s.log.Info("media sync complete",
		zap.Int("items", len(refs)),
		zap.Int("sources", len(s.sources)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return len(refs), nil
}

// Run syncs immediately and then on every tick until ctx is cancelled.
// Failures are logged; the previous index stays in service.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("media sync error", zap.Error(err))
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("media sync error", zap.Error(err))
			}
		}
	}
}
