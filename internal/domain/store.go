// Package domain defines the workout entities and the entity store that
// enforces their structural invariants.
package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an entity id is absent.
	ErrNotFound = errors.New("not found")
	// ErrReferentialIntegrity is returned when a change would break a live reference.
	ErrReferentialIntegrity = errors.New("referential integrity")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrCorruption is returned when the durable document cannot be trusted.
	ErrCorruption = errors.New("document corrupted")
	// ErrAlreadyActive is returned when the session slot is occupied.
	ErrAlreadyActive = errors.New("session already active")
	// ErrPersistenceFailure is returned when a save could not complete.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Store owns the canonical State. It is not safe for concurrent use; callers
// serialise access through a single mutation queue.
type Store struct {
	state *State
	now   func() time.Time
}

// NewStore wraps state. A nil state starts from NewState.
func NewStore(state *State) *Store {
	s := &Store{state: state, now: time.Now}
	if s.state == nil {
		s.state = NewState(s.now())
	}
	return s
}

// SetClock overrides the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// State exposes the live state. Callers must not retain it across mutations.
func (s *Store) State() *State {
	return s.state
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// CreateAccount creates the installation's single account.
func (s *Store) CreateAccount(displayName string) (Account, error) {
	if s.state.Account != nil {
		return Account{}, fmt.Errorf("%w: account already exists", ErrValidation)
	}
	account := Account{
		ID:          uuid.NewString(),
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   s.timestamp(),
	}
	s.state.Account = &account
	return account, nil
}

// UpdateAccount changes the account display name.
func (s *Store) UpdateAccount(displayName string) (Account, error) {
	if s.state.Account == nil {
		return Account{}, fmt.Errorf("%w: account", ErrNotFound)
	}
	s.state.Account.DisplayName = strings.TrimSpace(displayName)
	return *s.state.Account, nil
}

// DeleteAccount removes the account record. Workout data is kept.
func (s *Store) DeleteAccount() error {
	if s.state.Account == nil {
		return fmt.Errorf("%w: account", ErrNotFound)
	}
	s.state.Account = nil
	return nil
}

// Account returns the account if one exists.
func (s *Store) Account() (Account, bool) {
	if s.state.Account == nil {
		return Account{}, false
	}
	return *s.state.Account, true
}

// ExerciseInput carries the mutable exercise fields.
type ExerciseInput struct {
	Name     string
	Category string
	Custom   bool
}

func (in ExerciseInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: exercise name is required", ErrValidation)
	}
	return nil
}

// CreateExercise adds an exercise to the library.
func (s *Store) CreateExercise(in ExerciseInput) (Exercise, error) {
	if err := in.validate(); err != nil {
		return Exercise{}, err
	}
	ex := Exercise{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Category:  strings.TrimSpace(in.Category),
		Custom:    in.Custom,
		CreatedAt: s.timestamp(),
	}
	s.state.Exercises = append(s.state.Exercises, ex)
	return ex, nil
}

// UpdateExercise edits an exercise that no set references yet, in history or
// in the draft.
func (s *Store) UpdateExercise(id string, in ExerciseInput, draft *WorkoutSession) (Exercise, error) {
	if err := in.validate(); err != nil {
		return Exercise{}, err
	}
	idx := s.exerciseIndex(id)
	if idx < 0 {
		return Exercise{}, fmt.Errorf("%w: exercise %s", ErrNotFound, id)
	}
	if s.setReferences(id) || (draft != nil && draft.References(id)) {
		return Exercise{}, fmt.Errorf("%w: exercise %s is referenced by logged sets", ErrReferentialIntegrity, id)
	}
	ex := &s.state.Exercises[idx]
	ex.Name = strings.TrimSpace(in.Name)
	ex.Category = strings.TrimSpace(in.Category)
	ex.Custom = in.Custom
	return *ex, nil
}

// DeleteExercise removes an exercise nothing references.
func (s *Store) DeleteExercise(id string, draft *WorkoutSession) error {
	idx := s.exerciseIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: exercise %s", ErrNotFound, id)
	}
	if s.setReferences(id) || (draft != nil && draft.References(id)) {
		return fmt.Errorf("%w: exercise %s is referenced by logged sets", ErrReferentialIntegrity, id)
	}
	for _, t := range s.state.Templates {
		for _, item := range t.Items {
			if item.ExerciseID == id {
				return fmt.Errorf("%w: exercise %s is used by template %s", ErrReferentialIntegrity, id, t.ID)
			}
		}
	}
	s.state.Exercises = slices.Delete(s.state.Exercises, idx, idx+1)
	return nil
}

// Exercise returns an exercise by id.
func (s *Store) Exercise(id string) (Exercise, error) {
	idx := s.exerciseIndex(id)
	if idx < 0 {
		return Exercise{}, fmt.Errorf("%w: exercise %s", ErrNotFound, id)
	}
	return s.state.Exercises[idx], nil
}

// Exercises lists the library sorted by name.
func (s *Store) Exercises() []Exercise {
	out := append([]Exercise(nil), s.state.Exercises...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func (s *Store) exerciseIndex(id string) int {
	return slices.IndexFunc(s.state.Exercises, func(ex Exercise) bool { return ex.ID == id })
}

func (s *Store) setReferences(exerciseID string) bool {
	for _, session := range s.state.Sessions {
		if session.References(exerciseID) {
			return true
		}
	}
	return false
}

// CreateFolder adds an empty folder.
func (s *Store) CreateFolder(name string) (Folder, error) {
	if strings.TrimSpace(name) == "" {
		return Folder{}, fmt.Errorf("%w: folder name is required", ErrValidation)
	}
	f := Folder{ID: uuid.NewString(), Name: strings.TrimSpace(name), TemplateIDs: []string{}}
	s.state.Folders = append(s.state.Folders, f)
	return f, nil
}

// RenameFolder changes a folder's name.
func (s *Store) RenameFolder(id, name string) (Folder, error) {
	if strings.TrimSpace(name) == "" {
		return Folder{}, fmt.Errorf("%w: folder name is required", ErrValidation)
	}
	idx := s.folderIndex(id)
	if idx < 0 {
		return Folder{}, fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	s.state.Folders[idx].Name = strings.TrimSpace(name)
	return s.folderCopy(idx), nil
}

// DeleteFolder removes a folder. Its templates are unassigned, not deleted.
func (s *Store) DeleteFolder(id string) error {
	idx := s.folderIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	s.state.Folders = slices.Delete(s.state.Folders, idx, idx+1)
	return nil
}

// AssignTemplate moves a template into a folder, removing it from any other.
func (s *Store) AssignTemplate(folderID, templateID string) (Folder, error) {
	idx := s.folderIndex(folderID)
	if idx < 0 {
		return Folder{}, fmt.Errorf("%w: folder %s", ErrNotFound, folderID)
	}
	if s.templateIndex(templateID) < 0 {
		return Folder{}, fmt.Errorf("%w: template %s", ErrNotFound, templateID)
	}
	s.unassign(templateID)
	s.state.Folders[idx].TemplateIDs = append(s.state.Folders[idx].TemplateIDs, templateID)
	return s.folderCopy(idx), nil
}

// UnassignTemplate removes a template from whichever folder holds it.
func (s *Store) UnassignTemplate(templateID string) error {
	if s.templateIndex(templateID) < 0 {
		return fmt.Errorf("%w: template %s", ErrNotFound, templateID)
	}
	s.unassign(templateID)
	return nil
}

// FolderOf returns the folder holding templateID, if any.
func (s *Store) FolderOf(templateID string) (Folder, bool) {
	for i, f := range s.state.Folders {
		if slices.Contains(f.TemplateIDs, templateID) {
			return s.folderCopy(i), true
		}
	}
	return Folder{}, false
}

// Folders lists every folder.
func (s *Store) Folders() []Folder {
	out := make([]Folder, len(s.state.Folders))
	for i := range s.state.Folders {
		out[i] = s.folderCopy(i)
	}
	return out
}

func (s *Store) unassign(templateID string) {
	for i := range s.state.Folders {
		s.state.Folders[i].TemplateIDs = slices.DeleteFunc(s.state.Folders[i].TemplateIDs, func(id string) bool {
			return id == templateID
		})
	}
}

func (s *Store) folderIndex(id string) int {
	return slices.IndexFunc(s.state.Folders, func(f Folder) bool { return f.ID == id })
}

func (s *Store) folderCopy(idx int) Folder {
	f := s.state.Folders[idx]
	f.TemplateIDs = append([]string{}, f.TemplateIDs...)
	return f
}

// TemplateInput carries the mutable template fields.
type TemplateInput struct {
	Name  string
	Items []TemplateItem
}

func (s *Store) validateTemplate(in TemplateInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	for _, item := range in.Items {
		if item.TargetSets < 1 {
			return fmt.Errorf("%w: target sets must be at least 1", ErrValidation)
		}
		if s.exerciseIndex(item.ExerciseID) < 0 {
			return fmt.Errorf("%w: exercise %s", ErrNotFound, item.ExerciseID)
		}
	}
	return nil
}

// CreateTemplate adds a template.
func (s *Store) CreateTemplate(in TemplateInput) (Template, error) {
	if err := s.validateTemplate(in); err != nil {
		return Template{}, err
	}
	now := s.timestamp()
	t := Template{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Items:     append([]TemplateItem{}, in.Items...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.state.Templates = append(s.state.Templates, t)
	return t, nil
}

// UpdateTemplate replaces a template's name and items.
func (s *Store) UpdateTemplate(id string, in TemplateInput) (Template, error) {
	idx := s.templateIndex(id)
	if idx < 0 {
		return Template{}, fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	if err := s.validateTemplate(in); err != nil {
		return Template{}, err
	}
	t := &s.state.Templates[idx]
	t.Name = strings.TrimSpace(in.Name)
	t.Items = append([]TemplateItem{}, in.Items...)
	t.UpdatedAt = s.timestamp()
	return *t, nil
}

// DeleteTemplate removes a template and its folder membership.
func (s *Store) DeleteTemplate(id string) error {
	idx := s.templateIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	s.unassign(id)
	s.state.Templates = slices.Delete(s.state.Templates, idx, idx+1)
	return nil
}

// Template returns a template by id.
func (s *Store) Template(id string) (Template, error) {
	idx := s.templateIndex(id)
	if idx < 0 {
		return Template{}, fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	t := s.state.Templates[idx]
	t.Items = append([]TemplateItem{}, t.Items...)
	return t, nil
}

// Templates lists every template.
func (s *Store) Templates() []Template {
	out := make([]Template, 0, len(s.state.Templates))
	for _, t := range s.state.Templates {
		t.Items = append([]TemplateItem{}, t.Items...)
		out = append(out, t)
	}
	return out
}

func (s *Store) templateIndex(id string) int {
	return slices.IndexFunc(s.state.Templates, func(t Template) bool { return t.ID == id })
}

// ValidateSet checks a set's numbers and type.
func ValidateSet(reps int, weight float64, setType SetType) error {
	if reps < 0 {
		return fmt.Errorf("%w: reps must be >= 0", ErrValidation)
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: weight must be a non-negative number", ErrValidation)
	}
	if !setType.OrDefault().Valid() {
		return fmt.Errorf("%w: unknown set type %q", ErrValidation, setType)
	}
	return nil
}

// ValidateRunTotals checks a run's distance and duration.
func ValidateRunTotals(distanceMeters float64, duration time.Duration) error {
	if distanceMeters < 0 || math.IsNaN(distanceMeters) || math.IsInf(distanceMeters, 0) {
		return fmt.Errorf("%w: distance must be a non-negative number", ErrValidation)
	}
	if duration < 0 {
		return fmt.Errorf("%w: duration must be non-negative", ErrValidation)
	}
	return nil
}

// ValidateRun checks a run handed to history. An empty mode means manual.
func ValidateRun(run *Run) error {
	if run.Mode == "" {
		run.Mode = RunModeManual
	}
	if !run.Mode.Valid() {
		return fmt.Errorf("%w: unknown run mode %q", ErrValidation, run.Mode)
	}
	if err := ValidateRunTotals(run.DistanceMeters, run.Duration); err != nil {
		return err
	}
	for _, p := range run.Route {
		if !p.Coordinate.Valid() {
			return fmt.Errorf("%w: route point outside WGS84 bounds", ErrValidation)
		}
	}
	return nil
}

// AddSession records a completed session in history, e.g. one logged after
// the fact or handed over by the session controller.
func (s *Store) AddSession(in WorkoutSession) (WorkoutSession, error) {
	session := in.Clone()
	if strings.TrimSpace(session.ID) == "" {
		session.ID = uuid.NewString()
	}
	if s.sessionIndex(session.ID) >= 0 {
		return WorkoutSession{}, fmt.Errorf("%w: session %s already exists", ErrValidation, session.ID)
	}
	if session.Date.IsZero() {
		return WorkoutSession{}, fmt.Errorf("%w: session date is required", ErrValidation)
	}
	for ei := range session.Entries {
		entry := &session.Entries[ei]
		if s.exerciseIndex(entry.ExerciseID) < 0 {
			return WorkoutSession{}, fmt.Errorf("%w: exercise %s", ErrNotFound, entry.ExerciseID)
		}
		for si := range entry.Sets {
			set := &entry.Sets[si]
			if err := ValidateSet(set.Reps, set.Weight, set.Type); err != nil {
				return WorkoutSession{}, err
			}
			if set.ID == "" {
				set.ID = uuid.NewString()
			}
			set.ExerciseID = entry.ExerciseID
			set.Type = set.Type.OrDefault()
			set.Planned = false
		}
	}
	if session.Run != nil {
		if err := ValidateRun(session.Run); err != nil {
			return WorkoutSession{}, err
		}
		if session.Run.ID == "" {
			session.Run.ID = uuid.NewString()
		}
		session.Run.Recording = false
	}
	session.State = SessionStateCompleted
	if session.CompletedAt == nil {
		ts := s.timestamp()
		session.CompletedAt = &ts
	}
	s.state.Sessions = append(s.state.Sessions, session)
	return session.Clone(), nil
}

// SessionInput carries the history fields that may be edited after completion.
type SessionInput struct {
	Name  string
	Date  time.Time
	Notes string
}

// UpdateSession edits the name, date and notes of a completed session.
func (s *Store) UpdateSession(id string, in SessionInput) (WorkoutSession, error) {
	idx := s.sessionIndex(id)
	if idx < 0 {
		return WorkoutSession{}, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if in.Date.IsZero() {
		return WorkoutSession{}, fmt.Errorf("%w: session date is required", ErrValidation)
	}
	session := &s.state.Sessions[idx]
	session.Name = strings.TrimSpace(in.Name)
	session.Date = in.Date
	session.Notes = in.Notes
	return session.Clone(), nil
}

// DeleteSession removes a session and its run. Deleting an absent id is a
// no-op; the boolean reports whether anything was removed.
func (s *Store) DeleteSession(id string) bool {
	idx := s.sessionIndex(id)
	if idx < 0 {
		return false
	}
	s.state.Sessions = slices.Delete(s.state.Sessions, idx, idx+1)
	return true
}

// Session returns a completed session by id.
func (s *Store) Session(id string) (WorkoutSession, error) {
	idx := s.sessionIndex(id)
	if idx < 0 {
		return WorkoutSession{}, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return s.state.Sessions[idx].Clone(), nil
}

// Cursor marks a position in the date-descending session history.
type Cursor struct {
	Date time.Time
	ID   string
}

// ListSessions pages through history newest first. It returns the cursor for
// the next page, or nil when the history is exhausted.
func (s *Store) ListSessions(cursor *Cursor, limit int) ([]WorkoutSession, *Cursor) {
	ordered := make([]WorkoutSession, len(s.state.Sessions))
	copy(ordered, s.state.Sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return sessionBefore(ordered[i], ordered[j])
	})

	start := 0
	if cursor != nil {
		start = sort.Search(len(ordered), func(i int) bool {
			return sessionBefore(WorkoutSession{Date: cursor.Date, ID: cursor.ID}, ordered[i])
		})
	}
	if limit <= 0 {
		limit = len(ordered)
	}

	out := make([]WorkoutSession, 0, limit)
	for i := start; i < len(ordered) && len(out) < limit; i++ {
		out = append(out, ordered[i].Clone())
	}
	if start+len(out) >= len(ordered) || len(out) == 0 {
		return out, nil
	}
	last := out[len(out)-1]
	return out, &Cursor{Date: last.Date, ID: last.ID}
}

// sessionBefore orders history newest date first, then by descending id.
func sessionBefore(a, b WorkoutSession) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.ID > b.ID
}

func (s *Store) sessionIndex(id string) int {
	return slices.IndexFunc(s.state.Sessions, func(w WorkoutSession) bool { return w.ID == id })
}

// AppendOutbox queues an event for export.
func (s *Store) AppendOutbox(event OutboxEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.timestamp()
	}
	s.state.Outbox = append(s.state.Outbox, event)
}
