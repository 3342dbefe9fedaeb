package core

import (
	"context"
	"time"

	"example.com/liftlog/internal/domain"
)

// DueOutbox returns up to limit events ready for delivery.
func (e *Engine) DueOutbox(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	return query(ctx, e, "outbox_due", func() []domain.OutboxEvent {
		return e.store.DueOutbox(e.now(), limit)
	})
}

// MarkDelivered drops delivered events from the outbox.
func (e *Engine) MarkDelivered(ctx context.Context, ids []string) (int, error) {
	n, _, err := call(ctx, e, "outbox_delivered", func() (int, bool, error) {
		n := e.store.MarkDelivered(ids)
		return n, n > 0, nil
	})
	return n, err
}

// MarkFailed reschedules events with backoff, quarantining those that have
// used up maxAttempts.
func (e *Engine) MarkFailed(ctx context.Context, ids []string, reason string, maxAttempts int, backoff func(attempt int) time.Duration) (rescheduled, quarantined int, err error) {
	type counts struct{ rescheduled, quarantined int }
	c, _, err := call(ctx, e, "outbox_failed", func() (counts, bool, error) {
		r, q := e.store.MarkFailed(ids, reason, maxAttempts, backoff)
		return counts{r, q}, r+q > 0, nil
	})
	return c.rescheduled, c.quarantined, err
}

// RequeueQuarantined returns every quarantined event to pending.
func (e *Engine) RequeueQuarantined(ctx context.Context) (int, error) {
	n, _, err := call(ctx, e, "outbox_requeue", func() (int, bool, error) {
		n := e.store.RequeueQuarantined()
		return n, n > 0, nil
	})
	return n, err
}

// OutboxStats counts pending and quarantined events.
func (e *Engine) OutboxStats(ctx context.Context) (pending, quarantined int, err error) {
	type counts struct{ pending, quarantined int }
	c, err := query(ctx, e, "outbox_stats", func() counts {
		p, q := e.store.OutboxStats()
		return counts{p, q}
	})
	return c.pending, c.quarantined, err
}
