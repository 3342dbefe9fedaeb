package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/lastperf"
)

type memStore struct {
	data     []byte
	writeErr error
	writes   int
}

func (m *memStore) Read(context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, ErrNoDocument
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memStore) Write(_ context.Context, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Close() error { return nil }

var fixedNow = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

func populatedState(t *testing.T) (*domain.State, *domain.WorkoutSession) {
	t.Helper()
	store := domain.NewStore(domain.NewState(fixedNow))
	store.SetClock(func() time.Time { return fixedNow })

	_, err := store.CreateAccount("Sam")
	require.NoError(t, err)
	squat := store.Exercises()[0]
	tmpl, err := store.CreateTemplate(domain.TemplateInput{Name: "Legs", Items: []domain.TemplateItem{{ExerciseID: squat.ID, TargetSets: 3}}})
	require.NoError(t, err)
	folder, err := store.CreateFolder("Split")
	require.NoError(t, err)
	_, err = store.AssignTemplate(folder.ID, tmpl.ID)
	require.NoError(t, err)

	_, err = store.AddSession(domain.WorkoutSession{
		Name: "Monday",
		Date: fixedNow.AddDate(0, 0, -1),
		Entries: []domain.ExerciseEntry{{
			ExerciseID: squat.ID,
			Sets:       []domain.Set{{Reps: 5, Weight: 140}, {Reps: 3, Weight: 150, Type: domain.SetTypeFailure}},
		}},
		Run: &domain.Run{ID: "run-1", Mode: domain.RunModeManual, DistanceMeters: 2000, Duration: 10 * time.Minute, StartedAt: fixedNow},
	})
	require.NoError(t, err)
	store.AppendOutbox(domain.OutboxEvent{ID: "evt-1", EventType: "session.completed", AggregateID: "s", Payload: json.RawMessage(`{"a":1}`), CreatedAt: fixedNow})

	draft := &domain.WorkoutSession{
		ID:      "draft-1",
		Name:    "Tuesday",
		Date:    fixedNow,
		State:   domain.SessionStateActive,
		Entries: []domain.ExerciseEntry{{ExerciseID: squat.ID, Sets: []domain.Set{{ID: "set-1", ExerciseID: squat.ID, Reps: 8, Weight: 100, Type: domain.SetTypeWorking}}}},
	}
	return store.State(), draft
}

func TestLoadWithoutDocumentStartsFresh(t *testing.T) {
	gw := NewGateway(&memStore{}, WithClock(func() time.Time { return fixedNow }))

	snap, err := gw.Load(context.Background())
	require.NoError(t, err)
	require.True(t, snap.Fresh)
	require.Nil(t, snap.Draft)
	require.NotEmpty(t, snap.State.Exercises)
	require.Zero(t, snap.Index.Len())
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	mem := &memStore{}
	gw := NewGateway(mem, WithClock(func() time.Time { return fixedNow }))

	state, draft := populatedState(t)
	index := lastperf.Build(state.Sessions)
	require.NoError(t, gw.Save(ctx, state, draft, index))

	snap, err := gw.Load(ctx)
	require.NoError(t, err)
	require.False(t, snap.Fresh)
	require.False(t, snap.CacheRebuilt)

	if diff := cmp.Diff(state, snap.State, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(draft, snap.Draft, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("draft mismatch (-want +got):\n%s", diff)
	}
	require.True(t, index.Equal(snap.Index))
}

func TestLoadRejectsNewerSchemaVersion(t *testing.T) {
	mem := &memStore{data: []byte(`{"schema_version":2,"exercises":[]}`)}
	_, err := NewGateway(mem).Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCorruption)
	require.Contains(t, err.Error(), "newer")
}

func TestLoadRejectsUnreadableDocuments(t *testing.T) {
	cases := map[string]string{
		"garbage":         `not json`,
		"truncated":       `{"schema_version":1,"exercises":[`,
		"missing version": `{"exercises":[]}`,
		"unknown field":   `{"schema_version":1,"mystery":true}`,
		"trailing data":   `{"schema_version":1}{"schema_version":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewGateway(&memStore{data: []byte(body)}).Load(context.Background())
			require.ErrorIs(t, err, domain.ErrCorruption)
		})
	}
}

func TestLoadRejectsBrokenReferences(t *testing.T) {
	body := `{"schema_version":1,"exercises":[],"sessions":[{"id":"s1","name":"x","date":"2026-01-01T00:00:00Z","state":"completed",
		"entries":[{"exercise_id":"ghost","sets":[{"id":"a","exercise_id":"ghost","reps":1,"weight":1,"type":"working"}]}]}]}`
	_, err := NewGateway(&memStore{data: []byte(body)}).Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCorruption)
}

func TestLoadAppliesMigrations(t *testing.T) {
	// Version 1 documents stored history under "workouts".
	body := `{"schema_version":1,"exercises":[{"id":"e1","name":"Squat","category":"legs","created_at":"2026-01-01T00:00:00Z"}],
		"workouts":[{"id":"s1","name":"Old","date":"2026-01-01T00:00:00Z","state":"completed",
		"entries":[{"exercise_id":"e1","sets":[{"id":"a","exercise_id":"e1","reps":5,"weight":100}]}]}]}`

	codec := Codec{Version: 2, Migrations: map[int]Migration{
		1: func(raw map[string]json.RawMessage) error {
			raw["sessions"] = raw["workouts"]
			delete(raw, "workouts")
			return nil
		},
	}}
	snap, err := NewGateway(&memStore{data: []byte(body)}, WithCodec(codec)).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.State.Sessions, 1)
	require.Equal(t, domain.SetTypeWorking, snap.State.Sessions[0].Entries[0].Sets[0].Type)
	require.Equal(t, 100.0, snap.Index.Lookup("e1").Weight)

	noPath := Codec{Version: 3, Migrations: codec.Migrations}
	_, err = NewGateway(&memStore{data: []byte(body)}, WithCodec(noPath)).Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCorruption)
}

func TestLoadRebuildsDivergedCache(t *testing.T) {
	ctx := context.Background()
	mem := &memStore{}
	gw := NewGateway(mem)

	state, _ := populatedState(t)
	stale := lastperf.New()
	require.NoError(t, gw.Save(ctx, state, nil, stale))

	snap, err := gw.Load(ctx)
	require.NoError(t, err)
	require.True(t, snap.CacheRebuilt)
	require.True(t, lastperf.Build(state.Sessions).Equal(snap.Index))
}

func TestWriteFailureIsPersistenceFailure(t *testing.T) {
	failuresBefore := testutil.ToFloat64(saveFailures)
	samplesBefore := saveSampleCount(t)

	mem := &memStore{writeErr: errors.New("disk full")}
	err := NewGateway(mem).Write(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	require.Contains(t, err.Error(), "disk full")

	require.Equal(t, failuresBefore+1, testutil.ToFloat64(saveFailures))
	require.Equal(t, samplesBefore+1, saveSampleCount(t))
}

func saveSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, saveDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}
