package devserver

import (
	"log/slog"
	"sync"
	"time"
)

// Housekeeping periodically drops expired refresh tokens so a long running
// dev server doesn't grow without bound.
type Housekeeping struct {
	Tokens   *TokenService
	Logger   *slog.Logger
	Interval time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewHousekeeping defaults interval to 1 hour when it is not positive.
func NewHousekeeping(tokens *TokenService, logger *slog.Logger, interval time.Duration) *Housekeeping {
	if interval <= 0 {
		interval = time.Hour
	}

	return &Housekeeping{
		Tokens:   tokens,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in the background until Stop is called.
func (h *Housekeeping) Start() {
	go h.run()
	h.Logger.Info("housekeeping started", "interval", h.Interval)
}

// Stop blocks until any sweep in progress has finished. Only the first
// call does anything and Start must have been called.
func (h *Housekeeping) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		<-h.doneCh
		h.Logger.Info("housekeeping stopped")
	})
}

func (h *Housekeeping) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Housekeeping) sweep() {
	if n := h.Tokens.DeleteExpired(h.Tokens.Now()); n > 0 {
		h.Logger.Info("expired refresh tokens removed", "count", n)
	}
}
