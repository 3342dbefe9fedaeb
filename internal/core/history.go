package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/events"
)

// Page is one slice of history plus the cursor for the next slice.
type Page struct {
	Sessions []domain.WorkoutSession
	Next     *domain.Cursor
}

// LogSession records a session after the fact, straight into history. It
// may not reuse the id of the session in progress.
func (e *Engine) LogSession(ctx context.Context, session domain.WorkoutSession) (domain.WorkoutSession, error) {
	return mutate(ctx, e, "log_session", func() (domain.WorkoutSession, error) {
		if draft := e.controller.Snapshot(); draft != nil && session.ID != "" && draft.ID == session.ID {
			return domain.WorkoutSession{}, fmt.Errorf("%w: session %s is the one in progress", domain.ErrValidation, session.ID)
		}
		stored, err := e.store.AddSession(session)
		if err != nil {
			return domain.WorkoutSession{}, err
		}
		e.index.Apply(stored)
		e.recordCompleted(stored)
		return stored, nil
	})
}

// UpdateSession edits a completed session and rebuilds the index, since a
// date change can reorder history.
func (e *Engine) UpdateSession(ctx context.Context, id string, in domain.SessionInput) (domain.WorkoutSession, error) {
	return mutate(ctx, e, "update_session", func() (domain.WorkoutSession, error) {
		updated, err := e.store.UpdateSession(id, in)
		if err != nil {
			return domain.WorkoutSession{}, err
		}
		e.rebuildIndex()
		return updated, nil
	})
}

// DeleteSession removes a completed session and its run. Deleting an absent
// id succeeds without saving.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	_, _, err := call(ctx, e, "delete_session", func() (struct{}, bool, error) {
		if !e.store.DeleteSession(id) {
			return struct{}{}, false, nil
		}
		e.controller.ForgetPending(id)
		e.rebuildIndex()
		e.recordDeleted(id)
		return struct{}{}, true, nil
	})
	return err
}

func (e *Engine) Session(ctx context.Context, id string) (domain.WorkoutSession, error) {
	val, _, err := call(ctx, e, "session", func() (domain.WorkoutSession, bool, error) {
		s, err := e.store.Session(id)
		return s, false, err
	})
	return val, err
}

// ListSessions pages through history newest first.
func (e *Engine) ListSessions(ctx context.Context, cursor *domain.Cursor, limit int) (Page, error) {
	return query(ctx, e, "list_sessions", func() Page {
		sessions, next := e.store.ListSessions(cursor, limit)
		return Page{Sessions: sessions, Next: next}
	})
}

func (e *Engine) accountID() string {
	if a, ok := e.store.Account(); ok {
		return a.ID
	}
	return ""
}

func (e *Engine) recordCompleted(s domain.WorkoutSession) {
	if !e.exportEvents {
		return
	}
	payload := events.SessionCompleted{
		SessionID:  s.ID,
		AccountID:  e.accountID(),
		Name:       s.Name,
		Date:       s.Date,
		TemplateID: s.TemplateID,
		SetCount:   s.SetCount(),
		Volume:     s.Volume(),
		Exercises:  make([]events.ExerciseTotal, 0, len(s.Entries)),
	}
	if s.CompletedAt != nil {
		payload.CompletedAt = *s.CompletedAt
	}
	for _, entry := range s.Entries {
		total := events.ExerciseTotal{ExerciseID: entry.ExerciseID, Sets: len(entry.Sets)}
		for _, set := range entry.Sets {
			if set.Weight > total.TopWeight {
				total.TopWeight = set.Weight
			}
		}
		payload.Exercises = append(payload.Exercises, total)
	}
	if s.Run != nil {
		payload.RunMode = string(s.Run.Mode)
		payload.DistanceMeters = s.Run.DistanceMeters
		payload.DurationSec = int64(s.Run.Duration / time.Second)
	}
	e.appendEvent(events.TypeSessionCompleted, s.ID, payload)
}

func (e *Engine) recordDeleted(id string) {
	if !e.exportEvents {
		return
	}
	e.appendEvent(events.TypeSessionDeleted, id, events.SessionDeleted{
		SessionID: id,
		AccountID: e.accountID(),
		DeletedAt: e.now().UTC(),
	})
}

func (e *Engine) appendEvent(eventType, aggregateID string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("encode outbox payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	e.store.AppendOutbox(domain.OutboxEvent{
		ID:          uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     raw,
		CreatedAt:   e.now().UTC(),
	})
}
