package usecase

import (
	"context"
	"sync"
	"time"

	"MarketDeck/internal/service/session"
	"MarketDeck/pkg/logger"
)

// Intervals configures the three polling cadences.
type Intervals struct {
	Status     time.Duration
	Oscillator time.Duration
	Tickers    time.Duration
}

// Scheduler runs the three polling loops while a session is active. Each
// loop is one goroutine with its own ticker, so a slow cycle delays only its
// own cadence; across loops the last writer wins.
type Scheduler struct {
	dash      *Dashboard
	intervals Intervals
	log       *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a scheduler bound to the dashboard.
func NewScheduler(dash *Dashboard, intervals Intervals, log *logger.Logger) *Scheduler {
	return &Scheduler{dash: dash, intervals: intervals, log: log}
}

// Bind subscribes the scheduler to session transitions: loops arm on
// establish and tear down on invalidation. The parent context bounds the
// whole scheduler lifetime.
func (s *Scheduler) Bind(parent context.Context, sess *session.Manager) {
	sess.Subscribe(func(active bool) {
		if active {
			s.Start(parent)
			return
		}
		s.Stop()
	})
	if sess.Active() {
		s.Start(parent)
	}
}

// Start arms the loops. Idempotent while running.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.running = true

	go s.loop(ctx, "status", s.intervals.Status, func(ctx context.Context) error {
		_, err := s.dash.PollStatus(ctx)
		return err
	})
	go s.loop(ctx, "oscillator", s.intervals.Oscillator, func(ctx context.Context) error {
		_, err := s.dash.PollOscillator(ctx)
		return err
	})
	go s.loop(ctx, "tickers", s.intervals.Tickers, func(ctx context.Context) error {
		_, err := s.dash.PollTickers(ctx)
		return err
	})

	s.log.Info("polling armed",
		logger.Duration("status", s.intervals.Status),
		logger.Duration("oscillator", s.intervals.Oscillator),
		logger.Duration("tickers", s.intervals.Tickers),
	)
}

// Stop cancels the loops. It does not wait for in-flight cycles; their
// contexts are already cancelled. Safe to call from a poll goroutine via
// session invalidation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	s.log.Info("polling stopped")
}

// Running reports whether the loops are armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// loop fires immediately, then on every tick until the context ends. Poll
// errors are logged and the cadence continues; session expiry cancels the
// context through the session subscription.
func (s *Scheduler) loop(ctx context.Context, kind string, interval time.Duration, poll func(context.Context) error) {
	if err := poll(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("poll failed", logger.String("kind", kind), logger.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := poll(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("poll failed", logger.String("kind", kind), logger.Error(err))
			}
		}
	}
}
