package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/content"
	"github.com/sjawhar/panner/internal/sampler"
)

// DefaultWarmUp is the delay before the first fire, independent of Config.
const DefaultWarmUp = 5 * time.Second

// ErrStopped is returned by Trigger when the scheduler is not running.
var ErrStopped = errors.New("scheduler is not running")

type Drawer interface {
	Draw(ctx context.Context) (content.Item, error)
}

type Presenter interface {
	Open(ctx context.Context, item content.Item) error
	Shutdown(ctx context.Context) error
}

// Config bounds the randomized delay between fires.
type Config struct {
	MinDelay time.Duration `json:"min_delay"`
	MaxDelay time.Duration `json:"max_delay"`
}

// Clamped returns the config with MinDelay >= 0 and MaxDelay >= MinDelay.
func (c Config) Clamped() Config {
	c.MinDelay = max(c.MinDelay, 0)
	c.MaxDelay = max(c.MaxDelay, c.MinDelay)
	return c
}

// NextDelay returns MinDelay plus a uniform draw from [0, MaxDelay-MinDelay].
func NextDelay(cfg Config, rng sampler.Rand) time.Duration {
	c := cfg.Clamped()
	span := c.MaxDelay - c.MinDelay
	if span <= 0 {
		return c.MinDelay
	}
	n := int64(span)
	if n < math.MaxInt64 {
		n++
	}
	return c.MinDelay + time.Duration(rng.Int64N(n))
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithWarmUp sets the delay before the first fire.
func WithWarmUp(d time.Duration) Option {
	return func(s *Scheduler) {
		s.warmUp = d
	}
}

// WithRand sets the random source used for delays.
func WithRand(rng sampler.Rand) Option {
	return func(s *Scheduler) {
		s.rng = rng
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithOnEmpty registers a hook run when a cycle finds both stores empty.
func WithOnEmpty(fn func()) Option {
	return func(s *Scheduler) {
		s.onEmpty = fn
	}
}

// Status is a snapshot of the scheduler for the status API.
type Status struct {
	Running bool      `json:"running"`
	NextAt  time.Time `json:"next_at,omitzero"`
	Config  Config    `json:"config"`
}

// Scheduler fires the draw-and-present pipeline at randomized intervals.
// At most one fire is pending at a time and every fire re-arms until Stop.
type Scheduler struct {
	drawer    Drawer
	presenter Presenter
	warmUp    time.Duration
	rng       sampler.Rand
	log       *zap.Logger
	onEmpty   func()

	mu      sync.Mutex
	cfg     Config
	running bool
	// epoch changes on every Start and Stop; timer callbacks from an
	// earlier run compare it and drop out.
	epoch    uint64
	base     context.Context
	cancel   context.CancelFunc
	timer    *time.Timer
	nextAt   time.Time
	inflight sync.WaitGroup
}

func New(drawer Drawer, presenter Presenter, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		drawer:    drawer,
		presenter: presenter,
		warmUp:    DefaultWarmUp,
		cfg:       cfg.Clamped(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = sampler.NewRand()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Start arms the warm-up timer. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.base, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.epoch++
	s.armLocked(s.warmUp)
	s.log.Info("scheduler started", zap.Duration("warm_up", s.warmUp))
}

// Stop cancels the pending timer and any in-flight fire, then tears down the
// active session. It is safe to call more than once.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.epoch++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.nextAt = time.Time{}
	s.cancel()
	s.mu.Unlock()

	s.inflight.Wait()
	s.log.Info("scheduler stopped")

	if s.presenter == nil {
		return nil
	}
	if err := s.presenter.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown presenter: %w", err)
	}
	return nil
}

// Update replaces the delay bounds. The pending timer keeps its deadline;
// the new bounds apply from the next computed delay.
func (s *Scheduler) Update(cfg Config) Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Clamped()
	s.log.Info("schedule updated", zap.Duration("min", s.cfg.MinDelay), zap.Duration("max", s.cfg.MaxDelay))
	return s.cfg
}

func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Running: s.running, NextAt: s.nextAt, Config: s.cfg}
}

// Trigger runs one draw-and-present cycle now without touching the pending
// timer. It is cancelled by either ctx or Stop, and Stop waits for it before
// tearing down the session.
func (s *Scheduler) Trigger(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrStopped
	}
	runCtx, cancel := context.WithCancel(s.base)
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	defer cancel()
	release := context.AfterFunc(ctx, cancel)
	defer release()

	return s.cycle(runCtx)
}

func (s *Scheduler) armLocked(d time.Duration) {
	epoch := s.epoch
	s.timer = time.AfterFunc(d, func() { s.fire(epoch) })
	s.nextAt = time.Now().Add(d)
}

func (s *Scheduler) fire(epoch uint64) {
	s.mu.Lock()
	if !s.running || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.base)
	s.timer = nil
	s.nextAt = time.Time{}
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	defer cancel()
	defer s.rearm(epoch)

	if err := s.cycle(ctx); err != nil && !errors.Is(err, sampler.ErrNoContent) {
		s.log.Warn("presentation cycle failed", zap.Error(err))
	}
}

func (s *Scheduler) rearm(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || epoch != s.epoch {
		return
	}
	d := NextDelay(s.cfg, s.rng)
	s.armLocked(d)
	s.log.Debug("scheduler armed", zap.Duration("delay", d))
}

func (s *Scheduler) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("presentation cycle panicked: %v", r)
		}
	}()

	item, err := s.drawer.Draw(ctx)
	if errors.Is(err, sampler.ErrNoContent) {
		s.log.Info("library empty, skipping cycle")
		if s.onEmpty != nil {
			s.onEmpty()
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("draw content: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.presenter.Open(ctx, item); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}
