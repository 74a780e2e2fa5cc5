package sampler

import (
	"fmt"
	"strings"

	"github.com/sjawhar/panner/internal/content"
)

const (
	PolicyProportional = "proportional"
	PolicyFixed        = "fixed"
)

// DefaultTextProbability is the text share used by the fixed policy.
const DefaultTextProbability = 0.3

// Policy decides which store a cycle samples from. ok is false when both
// stores are empty.
type Policy interface {
	Name() string
	Choose(rng Rand, countText, countMedia int64) (kind content.Kind, ok bool)
}

// Proportional draws a ticket in [0, total) so each store is chosen in
// proportion to its size.
type Proportional struct{}

func (Proportional) Name() string { return PolicyProportional }

func (Proportional) Choose(rng Rand, countText, countMedia int64) (content.Kind, bool) {
	countText, countMedia = max(countText, 0), max(countMedia, 0)
	total := countText + countMedia
	if total == 0 {
		return "", false
	}
	if rng.Int64N(total) < countText {
		return content.KindText, true
	}
	return content.KindMedia, true
}

// FixedText picks text with probability P whenever both stores have items,
// and the only non-empty store otherwise.
type FixedText struct {
	P float64
}

func (FixedText) Name() string { return PolicyFixed }

func (f FixedText) Choose(rng Rand, countText, countMedia int64) (content.Kind, bool) {
	switch {
	case countText <= 0 && countMedia <= 0:
		return "", false
	case countMedia <= 0:
		return content.KindText, true
	case countText <= 0:
		return content.KindMedia, true
	}
	if rng.Float64() < f.P {
		return content.KindText, true
	}
	return content.KindMedia, true
}

// ParsePolicy resolves a policy by name. p is only used by the fixed policy
// and is clamped to [0, 1].
func ParsePolicy(name string, p float64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyProportional:
		return Proportional{}, nil
	case PolicyFixed:
		return FixedText{P: min(max(p, 0), 1)}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q: supported policies are %s, %s", name, PolicyProportional, PolicyFixed)
	}
}
