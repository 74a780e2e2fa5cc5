package sampler

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/sjawhar/panner/internal/content"
)

// GroupSize is the maximum number of consecutive units merged into one text sample.
const GroupSize = 3

// ErrNoContent is returned when the store being sampled is empty.
var ErrNoContent = errors.New("no content")

type VerseReader interface {
	CountVerses(ctx context.Context) (int64, error)
	ReadVerses(ctx context.Context, offset, limit int64) ([]content.TextUnit, error)
}

type MediaReader interface {
	CountMedia(ctx context.Context) (int64, error)
	ReadMediaAt(ctx context.Context, rank int64) (content.MediaRef, bool, error)
}

// Rand is the subset of *rand.Rand the sampler and policies need.
type Rand interface {
	Int64N(n int64) int64
	Float64() float64
}

// NewRand returns a PCG source seeded from the OS entropy pool.
func NewRand() *rand.Rand {
	var seed [16]byte
	_, _ = crand.Read(seed[:])
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
}

// lockedRand makes a Rand safe for concurrent draws.
type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

type Sampler struct {
	verses VerseReader
	media  MediaReader
	rng    *lockedRand
}

func New(verses VerseReader, media MediaReader, rng Rand) *Sampler {
	if rng == nil {
		rng = NewRand()
	}
	return &Sampler{verses: verses, media: media, rng: &lockedRand{r: rng}}
}

// SampleText draws a random offset and returns up to GroupSize consecutive
// units from that point, stopping at the first group change.
func (s *Sampler) SampleText(ctx context.Context) (content.TextGroup, error) {
	n, err := s.verses.CountVerses(ctx)
	if err != nil {
		return content.TextGroup{}, fmt.Errorf("count verses: %w", err)
	}
	if n <= 0 {
		return content.TextGroup{}, ErrNoContent
	}
	return s.sampleTextAt(ctx, s.rng.Int64N(n))
}

func (s *Sampler) sampleTextAt(ctx context.Context, offset int64) (content.TextGroup, error) {
	units, err := s.verses.ReadVerses(ctx, offset, GroupSize)
	if err != nil {
		return content.TextGroup{}, fmt.Errorf("read verses: %w", err)
	}
	if len(units) == 0 {
		return content.TextGroup{}, ErrNoContent
	}

	run := units[:1]
	for _, u := range units[1:] {
		if u.Group != units[0].Group {
			break
		}
		run = append(run, u)
	}

	return Merge(run), nil
}

// SampleMedia returns one uniformly chosen media reference.
func (s *Sampler) SampleMedia(ctx context.Context) (content.MediaRef, error) {
	m, err := s.media.CountMedia(ctx)
	if err != nil {
		return content.MediaRef{}, fmt.Errorf("count media: %w", err)
	}
	if m <= 0 {
		return content.MediaRef{}, ErrNoContent
	}

	ref, ok, err := s.media.ReadMediaAt(ctx, s.rng.Int64N(m))
	if err != nil {
		return content.MediaRef{}, fmt.Errorf("read media: %w", err)
	}
	if !ok {
		// The index was replaced with a smaller set between count and read.
		return content.MediaRef{}, ErrNoContent
	}
	return ref, nil
}

// Merge joins a run of same-group units into one TextGroup.
func Merge(units []content.TextUnit) content.TextGroup {
	if len(units) == 0 {
		return content.TextGroup{}
	}

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}

	ref := units[0].Reference
	if len(units) > 1 {
		ref = MergeReference(units[0].Reference, units[len(units)-1].Reference)
	}

	return content.TextGroup{
		Text:      strings.Join(texts, " "),
		Reference: ref,
		Group:     units[0].Group,
		Units:     len(units),
	}
}

// MergeReference builds "prefix:start-end" from the first and last reference,
// split on the final ':'. A reference without a numeric suffix yields first
// unchanged.
func MergeReference(first, last string) string {
	prefix, start, ok := splitReference(first)
	if !ok {
		return first
	}
	_, end, ok := splitReference(last)
	if !ok {
		return first
	}
	return prefix + ":" + start + "-" + end
}

// splitReference splits "prefix:suffix" on the final ':'. The suffix must be
// a verse number.
func splitReference(ref string) (prefix, suffix string, ok bool) {
	i := strings.LastIndex(ref, ":")
	if i <= 0 {
		return "", "", false
	}
	suffix = strings.TrimSpace(ref[i+1:])
	if suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
		return "", "", false
	}
	return ref[:i], suffix, true
}
