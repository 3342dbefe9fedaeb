// Package lastperf maintains the last-performance cache: for every exercise,
// the reps and weight of the most recently logged set in a completed session.
package lastperf

import (
	"sort"
	"time"

	"example.com/liftlog/internal/domain"
)

// Entry is the last logged performance for one exercise. The zero Entry (with
// only ExerciseID set) means no history exists.
type Entry struct {
	ExerciseID  string    `json:"exercise_id"`
	Reps        int       `json:"reps"`
	Weight      float64   `json:"weight"`
	SessionID   string    `json:"session_id,omitempty"`
	SessionDate time.Time `json:"session_date"`
	Ordinal     int       `json:"ordinal"`
}

// Empty reports whether the entry carries no performance.
func (e Entry) Empty() bool {
	return e.SessionID == ""
}

// newer orders entries by session date, then position inside the session.
// Sessions sharing a date are ordered by id so the result is deterministic.
func newer(a, b Entry) bool {
	if !a.SessionDate.Equal(b.SessionDate) {
		return a.SessionDate.After(b.SessionDate)
	}
	if a.SessionID != b.SessionID {
		return a.SessionID > b.SessionID
	}
	return a.Ordinal > b.Ordinal
}

// Index maps exercise ids to their last performance. It holds no references
// to entities beyond their ids.
type Index struct {
	entries map[string]Entry
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Build scans completed sessions once and keeps the most recent set per
// exercise.
func Build(sessions []domain.WorkoutSession) *Index {
	ix := New()
	for _, session := range sessions {
		ix.Apply(session)
	}
	return ix
}

// Restore rebuilds an index from persisted entries.
func Restore(entries []Entry) *Index {
	ix := New()
	for _, e := range entries {
		if e.Empty() {
			continue
		}
		ix.entries[e.ExerciseID] = e
	}
	return ix
}

// Apply folds a completed session into the index and returns how many
// entries changed. Sessions that are not completed are ignored.
func (ix *Index) Apply(session domain.WorkoutSession) int {
	if session.State != domain.SessionStateCompleted {
		return 0
	}
	changed := 0
	ordinal := 0
	for _, entry := range session.Entries {
		for _, set := range entry.Sets {
			candidate := Entry{
				ExerciseID:  set.ExerciseID,
				Reps:        set.Reps,
				Weight:      set.Weight,
				SessionID:   session.ID,
				SessionDate: session.Date,
				Ordinal:     ordinal,
			}
			ordinal++
			if current, ok := ix.entries[candidate.ExerciseID]; ok && !newer(candidate, current) {
				continue
			}
			ix.entries[candidate.ExerciseID] = candidate
			changed++
		}
	}
	return changed
}

// Lookup returns the last performance for exerciseID, or an empty entry.
func (ix *Index) Lookup(exerciseID string) Entry {
	if e, ok := ix.entries[exerciseID]; ok {
		return e
	}
	return Entry{ExerciseID: exerciseID}
}

// Len returns the number of exercises with history.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Entries returns every entry sorted by exercise id.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExerciseID < out[j].ExerciseID })
	return out
}

// Equal reports whether both indexes hold identical entries.
func (ix *Index) Equal(other *Index) bool {
	if len(ix.entries) != len(other.entries) {
		return false
	}
	for id, e := range ix.entries {
		o, ok := other.entries[id]
		if !ok || !sameEntry(e, o) {
			return false
		}
	}
	return true
}

func sameEntry(a, b Entry) bool {
	return a.ExerciseID == b.ExerciseID &&
		a.Reps == b.Reps &&
		a.Weight == b.Weight &&
		a.SessionID == b.SessionID &&
		a.SessionDate.Equal(b.SessionDate) &&
		a.Ordinal == b.Ordinal
}
