package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/clock"
)

// Scheduler renews the token shortly before its exp claim. It follows the
// session: every token change re-arms it and clearing the session disarms
// it. Renewal goes through the Coordinator so it never races a reactive
// refresh.
type Scheduler struct {
	coord *Coordinator
	clock clock.Clock
	lead  time.Duration
	log   *slog.Logger

	mu          sync.Mutex
	timer       clock.Timer
	generation  uint64
	stopped     bool
	unsubscribe func()
}

// NewScheduler arms a renewal for the current token and subscribes to
// future changes of sess. Call Stop to release it.
func NewScheduler(sess *Session, coord *Coordinator, opts ...Option) *Scheduler {
	cfg := newConfig(opts)

	s := &Scheduler{
		coord: coord,
		clock: cfg.clock,
		lead:  cfg.refreshLead,
		log:   cfg.logger,
	}

	unsubscribe := sess.subscribeCurrent(s.schedule)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return s
}

// schedule replaces any armed timer with one for snap's token.
func (s *Scheduler) schedule(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked()
	if s.stopped || snap.Token == "" {
		return
	}

	exp := snap.Claims.Expiry()
	now := s.clock.Now()
	if exp.IsZero() || !exp.After(now) {
		return
	}

	at := exp.Add(-s.lead)
	delay := at.Sub(now)
	if delay <= 0 {
		s.log.Debug("token expires within the refresh lead, not scheduling", "exp", exp)
		return
	}

	generation := s.generation
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(generation) })
	s.log.Debug("token refresh scheduled", "at", at, "in", delay)
}

func (s *Scheduler) disarmLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire(generation uint64) {
	s.mu.Lock()
	if s.stopped || generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.log.Info("refreshing token before expiry")
	if _, err := s.coord.Refresh(context.Background()); err != nil {
		s.log.Warn("scheduled token refresh failed", "err", err)
	}
}

// Armed reports whether a renewal is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Stop disarms the scheduler for good.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.disarmLocked()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
