package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/content"
	"github.com/sjawhar/panner/internal/storage"
)

type Option func(*Presenter)

// WithKeepAwake asks surfaces to keep the display on while a session is visible.
func WithKeepAwake(keep bool) Option {
	return func(p *Presenter) {
		p.keepAwake = keep
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Presenter) {
		p.recorder = r
	}
}

func WithJournal(j Journal) Option {
	return func(p *Presenter) {
		p.journal = j
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Presenter) {
		p.log = log
	}
}

// Presenter owns the single presentation session. Opening replaces any
// visible session, dismissing it before the new one is displayed.
type Presenter struct {
	surface   Surface
	narrator  Narrator
	recorder  Recorder
	journal   Journal
	keepAwake bool
	log       *zap.Logger
	now       func() time.Time

	// ops serializes open and close so surface calls never interleave.
	ops sync.Mutex

	mu      sync.Mutex
	opening bool
	current *Session
}

func NewPresenter(surface Surface, narrator Narrator, opts ...Option) *Presenter {
	p := &Presenter{
		surface:  surface,
		narrator: narrator,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Open presents item. It returns ErrOpenInProgress instead of queueing when
// another Open has not completed.
func (p *Presenter) Open(ctx context.Context, item content.Item) error {
	if item.Text == nil && item.Media == nil {
		return errors.New("open session: empty item")
	}

	p.mu.Lock()
	if p.opening {
		p.mu.Unlock()
		return ErrOpenInProgress
	}
	p.opening = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.opening = false
		p.mu.Unlock()
	}()

	p.ops.Lock()
	defer p.ops.Unlock()

	if err := p.closeLocked(ctx, ReasonReplaced); err != nil {
		p.log.Warn("replaced session teardown incomplete", zap.Error(err))
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Item:      item,
		State:     StateOpening,
		OpenedAt:  p.now(),
		KeepAwake: p.keepAwake,
		Loop:      item.Media != nil && item.Media.IsVideo(),
	}
	p.setCurrent(sess)

	if p.recorder != nil {
		if err := p.recorder.RecordPresentation(ctx, storage.Presentation{
			ID:       sess.ID,
			Kind:     string(item.Kind),
			Label:    item.Label(),
			OpenedAt: sess.OpenedAt,
		}); err != nil {
			p.log.Warn("record presentation failed", zap.String("session", sess.ID), zap.Error(err))
		}
	}

	if err := p.surface.Display(ctx, p.snapshot(sess)); err != nil {
		if tErr := p.closeLocked(ctx, ReasonError); tErr != nil {
			p.log.Warn("teardown after display failure incomplete", zap.Error(tErr))
		}
		return fmt.Errorf("display session %s: %w", sess.ID, err)
	}

	if item.Text != nil {
		if p.narrator != nil {
			if err := p.narrator.Speak(item.Text.Text); err != nil {
				p.log.Warn("narration failed", zap.String("session", sess.ID), zap.Error(err))
			}
		}
		if p.journal != nil {
			if err := p.journal.Append(sess.OpenedAt, *item.Text); err != nil {
				p.log.Warn("journal append failed", zap.Error(err))
			}
		}
	}

	p.mu.Lock()
	sess.State = StateVisible
	p.mu.Unlock()

	p.log.Info("session opened",
		zap.String("session", sess.ID),
		zap.String("kind", string(item.Kind)),
		zap.String("label", item.Label()),
	)
	return nil
}

// Close tears down the current session, if any. It is safe to call repeatedly.
func (p *Presenter) Close(ctx context.Context, reason Reason) error {
	p.ops.Lock()
	defer p.ops.Unlock()
	return p.closeLocked(ctx, reason)
}

// CloseSession closes the session only if it is still the current one, so a
// late close from a surface cannot dismiss its replacement.
func (p *Presenter) CloseSession(ctx context.Context, id string, reason Reason) error {
	p.ops.Lock()
	defer p.ops.Unlock()

	p.mu.Lock()
	stale := p.current == nil || p.current.ID != id
	p.mu.Unlock()
	if stale {
		return nil
	}
	return p.closeLocked(ctx, reason)
}

func (p *Presenter) Shutdown(ctx context.Context) error {
	return p.Close(ctx, ReasonShutdown)
}

// Current returns a copy of the active session.
func (p *Presenter) Current() (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Session{}, false
	}
	return *p.current, true
}

func (p *Presenter) closeLocked(ctx context.Context, reason Reason) error {
	p.mu.Lock()
	sess := p.current
	if sess == nil {
		p.mu.Unlock()
		return nil
	}
	sess.State = StateClosing
	p.mu.Unlock()

	var errs []error
	if p.narrator != nil {
		if err := p.narrator.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop narration: %w", err))
		}
	}
	if err := p.surface.Dismiss(ctx, sess.ID); err != nil {
		errs = append(errs, fmt.Errorf("dismiss surface: %w", err))
	}

	p.mu.Lock()
	sess.State = StateClosed
	p.current = nil
	p.mu.Unlock()

	if p.recorder != nil {
		if err := p.recorder.FinishPresentation(ctx, sess.ID, p.now(), string(reason)); err != nil {
			p.log.Warn("finish presentation failed", zap.String("session", sess.ID), zap.Error(err))
		}
	}

	p.log.Info("session closed", zap.String("session", sess.ID), zap.String("reason", string(reason)))

	if len(errs) > 0 {
		return &TeardownError{SessionID: sess.ID, Err: errors.Join(errs...)}
	}
	return nil
}

func (p *Presenter) setCurrent(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = s
}

func (p *Presenter) snapshot(s *Session) Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *s
}
