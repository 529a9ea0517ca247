package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ryo-cool/go-concurrency-learner/internal/session"
)

// Cleaner handles periodic eviction of idle execution sessions
type Cleaner struct {
	manager  session.Manager
	idleTTL  time.Duration
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(manager session.Manager, idleTTL, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}

	return &Cleaner{
		manager:  manager,
		idleTTL:  idleTTL,
		interval: interval,
	}
}

// Run is the main loop for the cleanup worker. It returns when ctx is done.
func (c *Cleaner) Run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "idle_ttl", c.idleTTL)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep removes the sessions idle longer than the TTL and returns how many were removed.
// Removing a session cancels its run if one is in flight.
func (c *Cleaner) Sweep(ctx context.Context) int {
	idle := c.manager.GetIdle(ctx, c.idleTTL)
	if len(idle) == 0 {
		slog.Debug("no idle sessions found")
		return 0
	}

	removed := 0
	for _, s := range idle {
		if err := c.manager.Delete(ctx, s.ID); err != nil {
			slog.Error("failed to delete idle session", "error", err, "id", s.ID)
			continue
		}
		removed++
	}

	slog.Info("idle sessions evicted", "count", removed)
	return removed
}
