package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the canonical entity set owned by the Store. The active draft is
// not part of it; the session controller owns that slot.
type State struct {
	Account   *Account
	Exercises []Exercise
	Folders   []Folder
	Templates []Template
	Sessions  []WorkoutSession
	Outbox    []OutboxEvent
}

var defaultLibrary = []struct {
	name     string
	category string
}{
	{"Barbell Back Squat", "legs"},
	{"Romanian Deadlift", "legs"},
	{"Deadlift", "back"},
	{"Barbell Row", "back"},
	{"Pull-Up", "back"},
	{"Bench Press", "chest"},
	{"Incline Dumbbell Press", "chest"},
	{"Overhead Press", "shoulders"},
	{"Lateral Raise", "shoulders"},
	{"Barbell Curl", "arms"},
	{"Triceps Pushdown", "arms"},
	{"Plank", "core"},
}

// NewState returns an empty state seeded with the built-in exercise library.
func NewState(now time.Time) *State {
	state := &State{Exercises: make([]Exercise, 0, len(defaultLibrary))}
	for _, seed := range defaultLibrary {
		state.Exercises = append(state.Exercises, Exercise{
			ID:        uuid.NewString(),
			Name:      seed.name,
			Category:  seed.category,
			CreatedAt: now.UTC(),
		})
	}
	return state
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := &State{}
	if s.Account != nil {
		account := *s.Account
		out.Account = &account
	}
	out.Exercises = append([]Exercise(nil), s.Exercises...)
	if s.Folders != nil {
		out.Folders = make([]Folder, len(s.Folders))
		for i, f := range s.Folders {
			out.Folders[i] = f
			out.Folders[i].TemplateIDs = append([]string(nil), f.TemplateIDs...)
		}
	}
	if s.Templates != nil {
		out.Templates = make([]Template, len(s.Templates))
		for i, t := range s.Templates {
			out.Templates[i] = t
			out.Templates[i].Items = append([]TemplateItem(nil), t.Items...)
		}
	}
	if s.Sessions != nil {
		out.Sessions = make([]WorkoutSession, len(s.Sessions))
		for i, session := range s.Sessions {
			out.Sessions[i] = session.Clone()
		}
	}
	out.Outbox = append([]OutboxEvent(nil), s.Outbox...)
	return out
}

// CheckInvariants verifies the structural rules a loaded state must satisfy.
// All violations are reported together.
func (s *State) CheckInvariants() error {
	var errs []error

	exercises := make(map[string]struct{}, len(s.Exercises))
	for _, ex := range s.Exercises {
		if _, dup := exercises[ex.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate exercise id %s", ex.ID))
		}
		exercises[ex.ID] = struct{}{}
	}

	templates := make(map[string]struct{}, len(s.Templates))
	for _, t := range s.Templates {
		if _, dup := templates[t.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate template id %s", t.ID))
		}
		templates[t.ID] = struct{}{}
		for _, item := range t.Items {
			if _, ok := exercises[item.ExerciseID]; !ok {
				errs = append(errs, fmt.Errorf("template %s references unknown exercise %s", t.ID, item.ExerciseID))
			}
		}
	}

	owner := make(map[string]string)
	for _, f := range s.Folders {
		for _, tid := range f.TemplateIDs {
			if _, ok := templates[tid]; !ok {
				errs = append(errs, fmt.Errorf("folder %s references unknown template %s", f.ID, tid))
			}
			if prev, taken := owner[tid]; taken {
				errs = append(errs, fmt.Errorf("template %s is in folders %s and %s", tid, prev, f.ID))
			}
			owner[tid] = f.ID
		}
	}

	sessions := make(map[string]struct{}, len(s.Sessions))
	for _, session := range s.Sessions {
		if _, dup := sessions[session.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate session id %s", session.ID))
		}
		sessions[session.ID] = struct{}{}
		if session.State != SessionStateCompleted {
			errs = append(errs, fmt.Errorf("history session %s has state %q", session.ID, session.State))
		}
		if err := checkSession(session, exercises); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CheckDraft verifies a draft restored from disk against the state.
func (s *State) CheckDraft(draft *WorkoutSession) error {
	if draft == nil {
		return nil
	}
	if draft.State != SessionStateDraft && draft.State != SessionStateActive {
		return fmt.Errorf("draft session %s has state %q", draft.ID, draft.State)
	}
	for _, session := range s.Sessions {
		if session.ID == draft.ID {
			return fmt.Errorf("draft session %s is already in history", draft.ID)
		}
	}
	exercises := make(map[string]struct{}, len(s.Exercises))
	for _, ex := range s.Exercises {
		exercises[ex.ID] = struct{}{}
	}
	return checkSession(*draft, exercises)
}

func checkSession(session WorkoutSession, exercises map[string]struct{}) error {
	for _, entry := range session.Entries {
		if _, ok := exercises[entry.ExerciseID]; !ok {
			return fmt.Errorf("session %s references unknown exercise %s", session.ID, entry.ExerciseID)
		}
		for _, set := range entry.Sets {
			if set.ExerciseID != entry.ExerciseID {
				return fmt.Errorf("session %s set %s exercise %s does not match entry %s", session.ID, set.ID, set.ExerciseID, entry.ExerciseID)
			}
			if !set.Type.Valid() {
				return fmt.Errorf("session %s set %s has unknown type %q", session.ID, set.ID, set.Type)
			}
		}
	}
	if session.Run != nil && !session.Run.Mode.Valid() {
		return fmt.Errorf("session %s run has unknown mode %q", session.ID, session.Run.Mode)
	}
	return nil
}
