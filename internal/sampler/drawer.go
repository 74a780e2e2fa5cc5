package sampler

import (
	"context"
	"fmt"

	"github.com/sjawhar/panner/internal/content"
)

// Drawer runs one selection: pick a store with the policy, then sample it.
type Drawer struct {
	sampler *Sampler
	policy  Policy
}

func NewDrawer(s *Sampler, policy Policy) *Drawer {
	if policy == nil {
		policy = Proportional{}
	}
	return &Drawer{sampler: s, policy: policy}
}

func (d *Drawer) Policy() Policy {
	return d.policy
}

// Counts reports the current size of both stores.
func (d *Drawer) Counts(ctx context.Context) (text, media int64, err error) {
	text, err = d.sampler.verses.CountVerses(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count verses: %w", err)
	}
	media, err = d.sampler.media.CountMedia(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count media: %w", err)
	}
	return text, media, nil
}

// Draw returns ErrNoContent when both stores are empty.
func (d *Drawer) Draw(ctx context.Context) (content.Item, error) {
	countText, countMedia, err := d.Counts(ctx)
	if err != nil {
		return content.Item{}, err
	}

	kind, ok := d.policy.Choose(d.sampler.rng, countText, countMedia)
	if !ok {
		return content.Item{}, ErrNoContent
	}

	if kind == content.KindText {
		g, err := d.sampler.SampleText(ctx)
		if err != nil {
			return content.Item{}, err
		}
		return content.TextItem(g), nil
	}

	ref, err := d.sampler.SampleMedia(ctx)
	if err != nil {
		return content.Item{}, err
	}
	return content.MediaItem(ref), nil
}
