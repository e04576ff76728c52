package devapi

import (
	"sync"
	"time"
)

// housekeeper periodically drops expired codes and refresh sessions and
// expires stale invites, so a long-running dev API does not grow without
// bound.
type housekeeper struct {
	server   *Server
	interval time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool

	stopCh chan struct{}
	doneCh chan struct{}
}

func newHousekeeper(s *Server, interval time.Duration) *housekeeper {
	return &housekeeper{
		server:   s,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (h *housekeeper) Start() {
	h.startOnce.Do(func() {
		h.started = true
		go h.run()
		h.server.logger.Info("housekeeping started", "interval", h.interval)
	})
}

// Stop shuts the worker down and waits for an in-progress sweep.
// Stopping a worker that never started is a no-op.
func (h *housekeeper) Stop() {
	h.startOnce.Do(func() {})
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if !h.started {
			return
		}
		<-h.doneCh
		h.server.logger.Info("housekeeping stopped")
	})
}

func (h *housekeeper) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.server.sweep(time.Now())

	for {
		select {
		case <-ticker.C:
			h.server.sweep(time.Now())
		case <-h.stopCh:
			return
		}
	}
}

// sweep removes state that expired before now.
func (s *Server) sweep(now time.Time) {
	var codes, sessions int

	s.mu.Lock()
	for code, ac := range s.codes {
		if now.After(ac.expiresAt) {
			delete(s.codes, code)
			codes++
		}
	}
	for sid, rs := range s.sessions {
		if now.After(rs.expiresAt) {
			delete(s.sessions, sid)
			sessions++
		}
	}
	s.mu.Unlock()

	invites := s.data.expireInvites(now)

	s.logger.Debug("housekeeping sweep completed",
		"codes", codes,
		"sessions", sessions,
		"invites", invites,
	)
}
