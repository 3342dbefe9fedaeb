package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// OutboxEvent is a domain event waiting to be exported off the device.
type OutboxEvent struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	QuarantinedAt *time.Time      `json:"quarantined_at,omitempty"`
}

// Due reports whether the event may be delivered at now.
func (e OutboxEvent) Due(now time.Time) bool {
	if e.QuarantinedAt != nil {
		return false
	}
	return e.NextAttemptAt == nil || !e.NextAttemptAt.After(now)
}

// DueOutbox returns up to limit events ready for delivery, oldest first.
func (s *Store) DueOutbox(now time.Time, limit int) []OutboxEvent {
	out := make([]OutboxEvent, 0)
	for _, event := range s.state.Outbox {
		if limit > 0 && len(out) >= limit {
			break
		}
		if event.Due(now) {
			out = append(out, event)
		}
	}
	return out
}

// MarkDelivered drops delivered events from the outbox.
func (s *Store) MarkDelivered(ids []string) int {
	before := len(s.state.Outbox)
	s.state.Outbox = slices.DeleteFunc(s.state.Outbox, func(e OutboxEvent) bool {
		return slices.Contains(ids, e.ID)
	})
	return before - len(s.state.Outbox)
}

// MarkFailed records a failed delivery attempt. Events that reach
// maxAttempts are quarantined; the rest are rescheduled using backoff.
func (s *Store) MarkFailed(ids []string, reason string, maxAttempts int, backoff func(attempt int) time.Duration) (rescheduled, quarantined int) {
	now := s.timestamp()
	for i := range s.state.Outbox {
		event := &s.state.Outbox[i]
		if !slices.Contains(ids, event.ID) {
			continue
		}
		event.Attempts++
		event.LastError = reason
		if event.Attempts >= maxAttempts {
			ts := now
			event.QuarantinedAt = &ts
			event.NextAttemptAt = nil
			quarantined++
			continue
		}
		next := now.Add(backoff(event.Attempts))
		event.NextAttemptAt = &next
		rescheduled++
	}
	return rescheduled, quarantined
}

// RequeueQuarantined returns quarantined events to the pending queue.
func (s *Store) RequeueQuarantined() int {
	n := 0
	for i := range s.state.Outbox {
		event := &s.state.Outbox[i]
		if event.QuarantinedAt == nil {
			continue
		}
		event.QuarantinedAt = nil
		event.NextAttemptAt = nil
		event.Attempts = 0
		n++
	}
	return n
}

// OutboxStats counts pending and quarantined events.
func (s *Store) OutboxStats() (pending, quarantined int) {
	for _, event := range s.state.Outbox {
		if event.QuarantinedAt != nil {
			quarantined++
		} else {
			pending++
		}
	}
	return pending, quarantined
}
