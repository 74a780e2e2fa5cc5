// Package narration speaks presented text aloud through a pluggable engine.
package narration

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// stopTimeout bounds how long Stop waits for an engine to return after cancel.
const stopTimeout = 2 * time.Second

// Voice is one engine voice. Name is the identifier voice selection inspects.
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Locale  string `json:"locale"`
	Quality int    `json:"quality"`
}

// Engine synthesizes and plays speech. Say blocks until playback finishes or
// ctx is cancelled. A nil voice means the engine default.
type Engine interface {
	Voices(ctx context.Context) ([]Voice, error)
	Say(ctx context.Context, voice *Voice, text string) error
}

// Narrator speaks one utterance at a time. Speak replaces whatever is playing.
type Narrator struct {
	engine Engine
	voice  *Voice
	log    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New picks a voice for locale once and returns a ready narrator. A voice
// listing failure falls back to the engine default.
func New(ctx context.Context, engine Engine, locale string, log *zap.Logger) *Narrator {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Narrator{engine: engine, log: log}

	voices, err := engine.Voices(ctx)
	if err != nil {
		log.Warn("list voices failed, using engine default", zap.Error(err))
		return n
	}
	if v, ok := SelectVoice(voices, locale); ok {
		n.voice = &v
		log.Info("narration voice selected", zap.String("voice", v.Name), zap.String("locale", v.Locale))
	} else {
		log.Info("no voice matches locale, using engine default", zap.String("locale", locale))
	}
	return n
}

// Voice returns the selected voice, if any.
func (n *Narrator) Voice() (Voice, bool) {
	if n.voice == nil {
		return Voice{}, false
	}
	return *n.voice, true
}

// Speak cancels the current utterance and starts text in the background.
func (n *Narrator) Speak(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("speak: empty text")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	n.cancel, n.done = cancel, done

	go func() {
		defer close(done)
		if err := n.engine.Say(ctx, n.voice, text); err != nil && ctx.Err() == nil {
			n.log.Warn("narration failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop silences the current utterance. It is safe to call when idle.
func (n *Narrator) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stopLocked()
}

// Close stops speech and releases the engine when it holds resources.
func (n *Narrator) Close() error {
	stopErr := n.Stop()
	if c, ok := n.engine.(io.Closer); ok {
		return errors.Join(stopErr, c.Close())
	}
	return stopErr
}

func (n *Narrator) stopLocked() error {
	if n.cancel == nil {
		return nil
	}
	n.cancel()
	done := n.done
	n.cancel, n.done = nil, nil

	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
		return errors.New("narration did not stop in time")
	}
}

// SelectVoice returns the best voice for locale: voices in the locale or its
// base language, network-backed names first, then by descending quality.
func SelectVoice(voices []Voice, locale string) (Voice, bool) {
	want := normalizeLocale(locale)
	wantBase := baseLanguage(want)

	var matches []Voice
	for _, v := range voices {
		got := normalizeLocale(v.Locale)
		if got == want || baseLanguage(got) == wantBase {
			matches = append(matches, v)
		}
	}
	if len(matches) == 0 {
		return Voice{}, false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		ni, nj := isNetwork(matches[i]), isNetwork(matches[j])
		if ni != nj {
			return ni
		}
		return matches[i].Quality > matches[j].Quality
	})
	return matches[0], true
}

func isNetwork(v Voice) bool {
	return strings.Contains(strings.ToLower(v.Name), "network")
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

func baseLanguage(locale string) string {
	base, _, _ := strings.Cut(locale, "-")
	return base
}
