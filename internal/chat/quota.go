// ABOUTME: Daily quota gate admitting or rejecting new turns per user
// ABOUTME: Lazily resets the counter on the first request of each calendar day

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaxassist/chatd/internal/store"
)

// ErrQuotaExceeded is returned when a user has exhausted their daily turns
var ErrQuotaExceeded = errors.New("daily message quota exceeded")

// QuotaGate decides whether a user may start a new turn. The counter is not
// incremented here; that happens in the relay on successful completion, so
// rejected or failed turns never consume quota.
type QuotaGate struct {
	store  store.Store
	limit  int
	now    func() time.Time
	logger *slog.Logger
}

// NewQuotaGate creates a gate with the given daily limit.
func NewQuotaGate(st store.Store, limit int) *QuotaGate {
	return &QuotaGate{
		store:  st,
		limit:  limit,
		now:    time.Now,
		logger: slog.Default().With("component", "quota"),
	}
}

// Check admits or rejects one new turn for the user. If the stored
// lastMessageDate is not today (server-local calendar day), the counter is
// reset to zero and the reset is persisted immediately, regardless of the
// admit/reject outcome.
func (g *QuotaGate) Check(ctx context.Context, userID string) error {
	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading quota state: %w", err)
	}

	now := g.now()
	count := user.DailyMessageCount

	if user.LastMessageDate == nil || !sameCalendarDay(*user.LastMessageDate, now) {
		count = 0
		if err := g.store.SetQuotaState(ctx, userID, 0, now); err != nil {
			return fmt.Errorf("resetting quota state: %w", err)
		}
		g.logger.Debug("daily count reset", "user_id", userID)
	}

	if count >= g.limit {
		return ErrQuotaExceeded
	}

	return nil
}

// Limit returns the configured daily limit.
func (g *QuotaGate) Limit() int {
	return g.limit
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
