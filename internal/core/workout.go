package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/observability"
	"example.com/liftlog/internal/session"
)

// StartSession opens an empty draft session.
func (e *Engine) StartSession(ctx context.Context, name string, date time.Time) (domain.WorkoutSession, error) {
	return mutate(ctx, e, "start_session", func() (domain.WorkoutSession, error) {
		return e.controller.Start(name, date)
	})
}

// StartFromTemplate opens a draft laid out by a template and pre-filled from
// the last-performance index.
func (e *Engine) StartFromTemplate(ctx context.Context, templateID string, date time.Time) (domain.WorkoutSession, error) {
	return mutate(ctx, e, "start_from_template", func() (domain.WorkoutSession, error) {
		return e.controller.StartFromTemplate(e.store, templateID, e.index, date)
	})
}

// Draft returns the active session, if any.
func (e *Engine) Draft(ctx context.Context) (domain.WorkoutSession, bool, error) {
	type found struct {
		draft domain.WorkoutSession
		ok    bool
	}
	r, err := query(ctx, e, "draft", func() found {
		d, ok := e.controller.Draft()
		return found{d, ok}
	})
	return r.draft, r.ok, err
}

func (e *Engine) AddExercise(ctx context.Context, exerciseID string) (domain.WorkoutSession, error) {
	return mutate(ctx, e, "add_exercise", func() (domain.WorkoutSession, error) {
		return e.controller.AddExercise(e.store, exerciseID)
	})
}

func (e *Engine) AddSet(ctx context.Context, in session.SetInput) (domain.Set, error) {
	return mutate(ctx, e, "add_set", func() (domain.Set, error) {
		return e.controller.AddSet(e.store, in)
	})
}

func (e *Engine) EditSet(ctx context.Context, setID string, in session.SetInput) (domain.Set, error) {
	return mutate(ctx, e, "edit_set", func() (domain.Set, error) {
		return e.controller.EditSet(setID, in)
	})
}

func (e *Engine) RemoveSet(ctx context.Context, setID string) error {
	_, err := mutate(ctx, e, "remove_set", func() (struct{}, error) {
		return struct{}{}, e.controller.RemoveSet(setID)
	})
	return err
}

func (e *Engine) Rename(ctx context.Context, name string) (domain.WorkoutSession, error) {
	return mutate(ctx, e, "rename_session", func() (domain.WorkoutSession, error) {
		return e.controller.Rename(name)
	})
}

func (e *Engine) SetNotes(ctx context.Context, notes string) (domain.WorkoutSession, error) {
	return mutate(ctx, e, "session_notes", func() (domain.WorkoutSession, error) {
		return e.controller.SetNotes(notes)
	})
}

// AddRun attaches a manually entered run.
func (e *Engine) AddRun(ctx context.Context, distanceMeters float64, duration time.Duration) (domain.Run, error) {
	return mutate(ctx, e, "add_run", func() (domain.Run, error) {
		return e.controller.AddRun(distanceMeters, duration)
	})
}

// StartGPSRun attaches a recording run; OfferLocation feeds it.
func (e *Engine) StartGPSRun(ctx context.Context) (domain.Run, error) {
	return mutate(ctx, e, "start_gps_run", func() (domain.Run, error) {
		return e.controller.StartGPSRun()
	})
}

// FinishRun stops recording. Samples still buffered for the run are applied
// first.
func (e *Engine) FinishRun(ctx context.Context) (domain.Run, error) {
	return mutate(ctx, e, "finish_run", func() (domain.Run, error) {
		e.drainLocations()
		return e.controller.FinishRun()
	})
}

// Discard destroys the draft. Buffered GPS samples for its run are dropped.
func (e *Engine) Discard(ctx context.Context) (domain.WorkoutSession, error) {
	return mutate(ctx, e, "discard_session", func() (domain.WorkoutSession, error) {
		discarded, err := e.controller.Discard()
		if err != nil {
			return domain.WorkoutSession{}, err
		}
		e.logger.Info("session discarded", zap.String("session_id", discarded.ID), zap.Int("sets", discarded.SetCount()))
		return discarded, nil
	})
}

// Complete moves the draft into history, updates the index and waits for
// the save. When the save fails the completed session is still returned,
// stays flagged pending-persist, and the error wraps
// domain.ErrPersistenceFailure; Resume retries it.
func (e *Engine) Complete(ctx context.Context) (domain.WorkoutSession, error) {
	done, seq, err := call(ctx, e, "complete_session", func() (domain.WorkoutSession, bool, error) {
		e.drainLocations()
		completed, err := e.controller.Complete(e.store, e.index)
		if err != nil {
			return domain.WorkoutSession{}, false, err
		}
		e.recordCompleted(completed)
		sessionsCompleted.Inc()
		if completed.CompletedAt != nil {
			observability.RecordSessionCompleted(*completed.CompletedAt)
		}
		return completed, true, nil
	})
	if err != nil {
		return done, err
	}

	if err := e.sink.Await(ctx, seq); err != nil {
		e.logger.Warn("completed session not yet durable", zap.String("session_id", done.ID), zap.Error(err))
		return done, fmt.Errorf("session %s pending persist: %w", done.ID, err)
	}
	if _, err := query(ctx, e, "mark_persisted", func() struct{} {
		e.controller.MarkPersisted(done.ID)
		return struct{}{}
	}); err != nil {
		return done, err
	}
	return done, nil
}

// drainLocations applies samples already buffered so they are not lost
// when the run stops. It runs on the loop.
func (e *Engine) drainLocations() {
	for {
		select {
		case sample := <-e.locations:
			e.appendSample(sample)
		default:
			return
		}
	}
}
