// Package session owns the single active workout slot and its lifecycle:
// start, edit, complete or discard.
package session

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/lastperf"
)

// Catalog resolves the entities a draft may reference. *domain.Store
// satisfies it.
type Catalog interface {
	Exercise(id string) (domain.Exercise, error)
	Template(id string) (domain.Template, error)
}

// History accepts completed sessions. *domain.Store satisfies it.
type History interface {
	AddSession(session domain.WorkoutSession) (domain.WorkoutSession, error)
}

// Prefill answers last-performance lookups. *lastperf.Index satisfies it.
type Prefill interface {
	Lookup(exerciseID string) lastperf.Entry
}

// SetInput describes a set to add or the new values of an edited set.
type SetInput struct {
	ExerciseID string
	Reps       int
	Weight     float64
	Type       domain.SetType
	Notes      string
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller holds the optional active session and the ids of completed
// sessions whose save has not been confirmed. It is not safe for concurrent
// use; callers serialise access.
type Controller struct {
	draft   *domain.WorkoutSession
	pending map[string]struct{}
	now     func() time.Time
}

// NewController returns a controller with an empty slot.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		pending: make(map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore places a draft loaded from disk into the slot.
func (c *Controller) Restore(draft *domain.WorkoutSession) {
	if draft == nil {
		c.draft = nil
		return
	}
	restored := draft.Clone()
	c.draft = &restored
}

// Draft returns a copy of the active session, if any.
func (c *Controller) Draft() (domain.WorkoutSession, bool) {
	if c.draft == nil {
		return domain.WorkoutSession{}, false
	}
	return c.draft.Clone(), true
}

// Snapshot returns a detached copy of the slot for persistence, or nil.
func (c *Controller) Snapshot() *domain.WorkoutSession {
	if c.draft == nil {
		return nil
	}
	out := c.draft.Clone()
	return &out
}

// ActiveRunID returns the id of the run currently recording GPS samples.
func (c *Controller) ActiveRunID() string {
	if c.draft == nil || c.draft.Run == nil || !c.draft.Run.Recording {
		return ""
	}
	return c.draft.Run.ID
}

// Start opens an empty draft. It fails with domain.ErrAlreadyActive while
// another session occupies the slot.
func (c *Controller) Start(name string, date time.Time) (domain.WorkoutSession, error) {
	if c.draft != nil {
		return domain.WorkoutSession{}, fmt.Errorf("%w: session %s is in progress", domain.ErrAlreadyActive, c.draft.ID)
	}
	now := c.now().UTC()
	if date.IsZero() {
		date = now
	}
	if strings.TrimSpace(name) == "" {
		name = "Workout " + date.Format("2006-01-02")
	}
	c.draft = &domain.WorkoutSession{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(name),
		Date:    date.UTC(),
		Entries: []domain.ExerciseEntry{},
		State:   domain.SessionStateDraft,
	}
	return c.draft.Clone(), nil
}

// StartFromTemplate opens a draft with one entry per template item, each
// holding the target number of sets pre-filled from prefill.
func (c *Controller) StartFromTemplate(catalog Catalog, templateID string, prefill Prefill, date time.Time) (domain.WorkoutSession, error) {
	if c.draft != nil {
		return domain.WorkoutSession{}, fmt.Errorf("%w: session %s is in progress", domain.ErrAlreadyActive, c.draft.ID)
	}
	tmpl, err := catalog.Template(templateID)
	if err != nil {
		return domain.WorkoutSession{}, err
	}
	if _, err := c.Start(tmpl.Name, date); err != nil {
		return domain.WorkoutSession{}, err
	}
	c.draft.TemplateID = tmpl.ID
	for _, item := range tmpl.Items {
		last := prefill.Lookup(item.ExerciseID)
		entry := domain.ExerciseEntry{ExerciseID: item.ExerciseID, Sets: make([]domain.Set, 0, item.TargetSets)}
		for i := 0; i < item.TargetSets; i++ {
			entry.Sets = append(entry.Sets, domain.Set{
				ID:         uuid.NewString(),
				ExerciseID: item.ExerciseID,
				Reps:       last.Reps,
				Weight:     last.Weight,
				Type:       domain.SetTypeWorking,
				Planned:    last.Empty(),
			})
		}
		c.draft.Entries = append(c.draft.Entries, entry)
	}
	if len(tmpl.Items) > 0 {
		c.draft.State = domain.SessionStateActive
	}
	return c.draft.Clone(), nil
}

// AddExercise appends an empty entry for exerciseID.
func (c *Controller) AddExercise(catalog Catalog, exerciseID string) (domain.WorkoutSession, error) {
	draft, err := c.active()
	if err != nil {
		return domain.WorkoutSession{}, err
	}
	if _, err := catalog.Exercise(exerciseID); err != nil {
		return domain.WorkoutSession{}, err
	}
	draft.Entries = append(draft.Entries, domain.ExerciseEntry{ExerciseID: exerciseID, Sets: []domain.Set{}})
	return draft.Clone(), nil
}

// AddSet appends a set to the last entry for the exercise, creating the
// entry when the exercise is not in the session yet.
func (c *Controller) AddSet(catalog Catalog, in SetInput) (domain.Set, error) {
	draft, err := c.active()
	if err != nil {
		return domain.Set{}, err
	}
	if _, err := catalog.Exercise(in.ExerciseID); err != nil {
		return domain.Set{}, err
	}
	if err := domain.ValidateSet(in.Reps, in.Weight, in.Type); err != nil {
		return domain.Set{}, err
	}

	set := domain.Set{
		ID:         uuid.NewString(),
		ExerciseID: in.ExerciseID,
		Reps:       in.Reps,
		Weight:     in.Weight,
		Type:       in.Type.OrDefault(),
		Notes:      in.Notes,
	}
	idx := -1
	for i := len(draft.Entries) - 1; i >= 0; i-- {
		if draft.Entries[i].ExerciseID == in.ExerciseID {
			idx = i
			break
		}
	}
	if idx < 0 {
		draft.Entries = append(draft.Entries, domain.ExerciseEntry{ExerciseID: in.ExerciseID})
		idx = len(draft.Entries) - 1
	}
	draft.Entries[idx].Sets = append(draft.Entries[idx].Sets, set)
	draft.State = domain.SessionStateActive
	return set, nil
}

// EditSet replaces the values of a set. The exercise of a set never changes.
func (c *Controller) EditSet(setID string, in SetInput) (domain.Set, error) {
	draft, err := c.active()
	if err != nil {
		return domain.Set{}, err
	}
	ei, si, ok := findSet(draft, setID)
	if !ok {
		return domain.Set{}, fmt.Errorf("%w: set %s", domain.ErrNotFound, setID)
	}
	set := &draft.Entries[ei].Sets[si]
	if in.ExerciseID != "" && in.ExerciseID != set.ExerciseID {
		return domain.Set{}, fmt.Errorf("%w: a set cannot move to another exercise", domain.ErrValidation)
	}
	if err := domain.ValidateSet(in.Reps, in.Weight, in.Type); err != nil {
		return domain.Set{}, err
	}
	set.Reps = in.Reps
	set.Weight = in.Weight
	set.Type = in.Type.OrDefault()
	set.Notes = in.Notes
	set.Planned = false
	return *set, nil
}

// RemoveSet deletes a set. An entry left without sets stays in the session.
func (c *Controller) RemoveSet(setID string) error {
	draft, err := c.active()
	if err != nil {
		return err
	}
	ei, si, ok := findSet(draft, setID)
	if !ok {
		return fmt.Errorf("%w: set %s", domain.ErrNotFound, setID)
	}
	sets := draft.Entries[ei].Sets
	draft.Entries[ei].Sets = append(sets[:si:si], sets[si+1:]...)
	return nil
}

// Rename changes the session name.
func (c *Controller) Rename(name string) (domain.WorkoutSession, error) {
	draft, err := c.active()
	if err != nil {
		return domain.WorkoutSession{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.WorkoutSession{}, fmt.Errorf("%w: session name is required", domain.ErrValidation)
	}
	draft.Name = name
	return draft.Clone(), nil
}

// SetNotes replaces the session notes.
func (c *Controller) SetNotes(notes string) (domain.WorkoutSession, error) {
	draft, err := c.active()
	if err != nil {
		return domain.WorkoutSession{}, err
	}
	draft.Notes = notes
	return draft.Clone(), nil
}

// Complete moves the draft into history and folds it into the index. The
// session stays flagged pending-persist until MarkPersisted is called.
func (c *Controller) Complete(history History, index *lastperf.Index) (domain.WorkoutSession, error) {
	draft, err := c.active()
	if err != nil {
		return domain.WorkoutSession{}, err
	}
	session := draft.Clone()
	dropPlannedSets(&session)
	if session.Run != nil && session.Run.Recording {
		finishRun(session.Run)
	}
	completedAt := c.now().UTC()
	session.State = domain.SessionStateCompleted
	session.CompletedAt = &completedAt

	stored, err := history.AddSession(session)
	if err != nil {
		return domain.WorkoutSession{}, err
	}
	index.Apply(stored)
	c.draft = nil
	c.pending[stored.ID] = struct{}{}
	return stored, nil
}

// dropPlannedSets removes template placeholders nobody filled in, so they
// never reach history as zero-rep performances.
func dropPlannedSets(session *domain.WorkoutSession) {
	for i := range session.Entries {
		session.Entries[i].Sets = slices.DeleteFunc(session.Entries[i].Sets, func(s domain.Set) bool {
			return s.Planned
		})
	}
}

// Discard destroys the draft and returns it.
func (c *Controller) Discard() (domain.WorkoutSession, error) {
	draft, err := c.active()
	if err != nil {
		return domain.WorkoutSession{}, err
	}
	c.draft = nil
	return *draft, nil
}

// PendingPersist returns the ids of completed sessions not yet confirmed
// durable, sorted.
func (c *Controller) PendingPersist() []string {
	out := make([]string, 0, len(c.pending))
	for id := range c.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsPendingPersist reports whether the completed session id awaits a save.
func (c *Controller) IsPendingPersist(id string) bool {
	_, ok := c.pending[id]
	return ok
}

// MarkPersisted clears the pending-persist flag of the given sessions, or of
// every session when called without ids.
func (c *Controller) MarkPersisted(ids ...string) {
	if len(ids) == 0 {
		clear(c.pending)
		return
	}
	for _, id := range ids {
		delete(c.pending, id)
	}
}

// ForgetPending drops the flag of a session removed from history.
func (c *Controller) ForgetPending(id string) {
	delete(c.pending, id)
}

func (c *Controller) active() (*domain.WorkoutSession, error) {
	if c.draft == nil {
		return nil, fmt.Errorf("%w: no active session", domain.ErrNotFound)
	}
	return c.draft, nil
}

func findSet(session *domain.WorkoutSession, setID string) (int, int, bool) {
	for ei, entry := range session.Entries {
		for si, set := range entry.Sets {
			if set.ID == setID {
				return ei, si, true
			}
		}
	}
	return 0, 0, false
}
