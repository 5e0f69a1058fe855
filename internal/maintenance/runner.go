// ABOUTME: Background maintenance jobs: history pruning and daily quota reset
// ABOUTME: Pruning runs at startup and every midnight; quota reset only at midnight

package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vaxassist/chatd/internal/store"
)

// RetentionWindow is how long messages and empty conversations are kept.
const RetentionWindow = 30 * 24 * time.Hour

// Runner executes periodic store maintenance. A pruning pass runs once at
// Start and again shortly after every server-local midnight; daily quota
// counters are reset only on the midnight pass, never at startup, so a
// restart cannot hand users a fresh allowance mid-day. Failures are logged,
// not retried; the next tick tries again.
type Runner struct {
	store  store.Store
	logger *slog.Logger

	mu     sync.Mutex
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a maintenance runner.
func New(st store.Store) *Runner {
	return &Runner{
		store:  st,
		logger: slog.Default().With("component", "maintenance"),
		done:   make(chan struct{}),
	}
}

// Start launches the background loop. Call Stop to shut it down.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop terminates the background loop and waits for a running pass to
// finish. Safe to call multiple times.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.closed {
		close(r.done)
		r.closed = true
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) loop() {
	defer r.wg.Done()

	// Catch up on pruning missed while the process was down. Quota counters
	// are left alone: their reset belongs to the calendar day boundary.
	r.RunOnce(context.Background())

	for {
		timer := time.NewTimer(untilNextMidnight(time.Now()))
		select {
		case <-timer.C:
			r.Rollover(context.Background())
		case <-r.done:
			timer.Stop()
			return
		}
	}
}

// RunOnce executes a single pruning pass: expired messages, stale empty
// conversations, and expired sessions. Daily counters are not touched.
func (r *Runner) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-RetentionWindow)

	if n, err := r.store.DeleteMessagesBefore(ctx, cutoff); err != nil {
		r.logger.Error("message pruning failed", "error", err)
	} else if n > 0 {
		r.logger.Info("pruned expired messages", "count", n)
	}

	if n, err := r.store.DeleteEmptyConversationsBefore(ctx, cutoff); err != nil {
		r.logger.Error("empty conversation cleanup failed", "error", err)
	} else if n > 0 {
		r.logger.Info("removed stale empty conversations", "count", n)
	}

	if err := r.store.DeleteExpiredSessions(ctx); err != nil {
		r.logger.Error("session cleanup failed", "error", err)
	}
}

// Rollover runs the midnight pass: a pruning pass plus the reset of every
// user's daily message counter for the new day.
func (r *Runner) Rollover(ctx context.Context) {
	r.RunOnce(ctx)

	if err := r.store.ResetAllDailyCounts(ctx, time.Now()); err != nil {
		r.logger.Error("daily count reset failed", "error", err)
	} else {
		r.logger.Debug("daily counts reset")
	}
}

// untilNextMidnight returns the duration until the next local midnight.
func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
