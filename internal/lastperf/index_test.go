package lastperf

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/liftlog/internal/domain"
)

func TestLookupWithoutHistoryReturnsEmptyEntry(t *testing.T) {
	ix := New()
	got := ix.Lookup("bench")
	require.True(t, got.Empty())
	require.Equal(t, "bench", got.ExerciseID)
	require.Zero(t, got.Reps)
	require.Zero(t, got.Weight)
}

func TestApplyKeepsMostRecentByDateThenOrder(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, time.February, d, 0, 0, 0, 0, time.UTC) }
	ix := New()

	ix.Apply(completed("s2", day(10), "squat", [2]float64{5, 140}, "squat", [2]float64{3, 150}))
	require.Equal(t, 3, ix.Lookup("squat").Reps)

	// Older session completed later must not replace the entry.
	ix.Apply(completed("s1", day(3), "squat", [2]float64{10, 100}))
	require.Equal(t, 150.0, ix.Lookup("squat").Weight)

	ix.Apply(completed("s3", day(11), "squat", [2]float64{8, 120}))
	require.Equal(t, Entry{ExerciseID: "squat", Reps: 8, Weight: 120, SessionID: "s3", SessionDate: day(11), Ordinal: 0}, ix.Lookup("squat"))
}

func TestApplyIgnoresSessionsThatAreNotCompleted(t *testing.T) {
	ix := New()
	draft := completed("d", time.Now(), "row", [2]float64{8, 60})
	draft.State = domain.SessionStateActive
	require.Zero(t, ix.Apply(draft))
	require.Zero(t, ix.Len())
}

func TestIncrementalMatchesRebuildAndDerivation(t *testing.T) {
	exercises := []string{"squat", "bench", "deadlift", "row", "press"}
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		sessions := make([]domain.WorkoutSession, 0)
		incremental := New()

		total := 1 + rng.Intn(20)
		for i := 0; i < total; i++ {
			session := domain.WorkoutSession{
				ID:    fmt.Sprintf("s-%03d-%02d", rng.Intn(1000), i),
				Date:  base.AddDate(0, 0, rng.Intn(10)),
				State: domain.SessionStateCompleted,
			}
			entries := rng.Intn(4)
			for e := 0; e < entries; e++ {
				ex := exercises[rng.Intn(len(exercises))]
				entry := domain.ExerciseEntry{ExerciseID: ex}
				sets := rng.Intn(4)
				for k := 0; k < sets; k++ {
					entry.Sets = append(entry.Sets, domain.Set{
						ExerciseID: ex,
						Reps:       rng.Intn(15),
						Weight:     float64(rng.Intn(40)) * 2.5,
						Type:       domain.SetTypeWorking,
					})
				}
				session.Entries = append(session.Entries, entry)
			}
			sessions = append(sessions, session)
			incremental.Apply(session)

			rebuilt := Build(sessions)
			require.True(t, incremental.Equal(rebuilt), "seed %d step %d: incremental diverged from rebuild", seed, i)
		}

		rebuilt := Build(sessions)
		for _, ex := range exercises {
			require.True(t, sameEntry(derive(sessions, ex), rebuilt.Lookup(ex)), "seed %d exercise %s", seed, ex)
		}

		restored := Restore(rebuilt.Entries())
		require.True(t, restored.Equal(rebuilt))
	}
}

// derive is the reference definition: sort every set newest first and take
// the head.
func derive(sessions []domain.WorkoutSession, exerciseID string) Entry {
	var candidates []Entry
	for _, session := range sessions {
		ordinal := 0
		for _, entry := range session.Entries {
			for _, set := range entry.Sets {
				if set.ExerciseID == exerciseID {
					candidates = append(candidates, Entry{
						ExerciseID:  exerciseID,
						Reps:        set.Reps,
						Weight:      set.Weight,
						SessionID:   session.ID,
						SessionDate: session.Date,
						Ordinal:     ordinal,
					})
				}
				ordinal++
			}
		}
	}
	if len(candidates) == 0 {
		return Entry{ExerciseID: exerciseID}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.SessionDate.Equal(b.SessionDate) {
			return a.SessionDate.After(b.SessionDate)
		}
		if a.SessionID != b.SessionID {
			return a.SessionID > b.SessionID
		}
		return a.Ordinal > b.Ordinal
	})
	return candidates[0]
}

func completed(id string, date time.Time, pairs ...any) domain.WorkoutSession {
	session := domain.WorkoutSession{ID: id, Date: date, State: domain.SessionStateCompleted}
	for i := 0; i+1 < len(pairs); i += 2 {
		ex := pairs[i].(string)
		perf := pairs[i+1].([2]float64)
		session.Entries = append(session.Entries, domain.ExerciseEntry{
			ExerciseID: ex,
			Sets:       []domain.Set{{ExerciseID: ex, Reps: int(perf[0]), Weight: perf[1]}},
		})
	}
	return session
}
