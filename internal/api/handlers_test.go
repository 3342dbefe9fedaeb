package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/liftlog/internal/core"
	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/lastperf"
	"example.com/liftlog/internal/persistence"
)

var today = time.Date(2026, time.March, 3, 18, 30, 0, 0, time.UTC)

type memStore struct {
	mu   sync.Mutex
	data []byte
	fail error
}

func (s *memStore) Read(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, persistence.ErrNoDocument
	}
	return s.data, nil
}

func (s *memStore) Write(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

type testAPI struct {
	mux   *http.ServeMux
	store *memStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := func() time.Time { return today }
	store := &memStore{}
	gw := persistence.NewGateway(store, persistence.WithLogger(logger), persistence.WithClock(clock))
	snap, err := gw.Load(context.Background())
	require.NoError(t, err)

	saver := persistence.NewSaver(gw, persistence.WithSaverLogger(logger))
	engine := core.New(snap, gw, saver, core.WithLogger(logger), core.WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	go saver.Start(ctx)
	go engine.Start(ctx)
	t.Cleanup(func() {
		cancel()
		engine.Wait()
		saver.Wait()
	})

	mux := http.NewServeMux()
	NewHandler(engine, WithLogger(logger)).RegisterRoutes(mux)
	return &testAPI{mux: mux, store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	a.mux.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (a *testAPI) createExercise(t *testing.T, name string) domain.Exercise {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/v1/exercises", ExerciseRequest{Name: name, Category: "strength"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[domain.Exercise](t, rr)
}

func TestWorkoutLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	ex := api.createExercise(t, "Pendlay Row")

	rr := api.do(t, http.MethodPost, "/v1/draft", StartDraftRequest{Name: "Pull day"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	draft := decodeBody[domain.WorkoutSession](t, rr)
	require.Equal(t, domain.SessionStateDraft, draft.State)

	rr = api.do(t, http.MethodPost, "/v1/draft", StartDraftRequest{})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "already_active", decodeBody[map[string]string](t, rr)["type"])

	rr = api.do(t, http.MethodPost, "/v1/draft/sets", SetRequest{ExerciseID: ex.ID, Reps: 8, Weight: 70})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	set := decodeBody[domain.Set](t, rr)
	require.Equal(t, domain.SetTypeWorking, set.Type)

	rr = api.do(t, http.MethodPut, "/v1/draft/sets/"+set.ID, SetRequest{ExerciseID: ex.ID, Reps: 8, Weight: 72.5})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	notes := "felt strong"
	rr = api.do(t, http.MethodPatch, "/v1/draft", PatchDraftRequest{Notes: &notes})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, notes, decodeBody[domain.WorkoutSession](t, rr).Notes)

	rr = api.do(t, http.MethodPost, "/v1/draft/complete", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	completed := decodeBody[CompleteResponse](t, rr)
	require.False(t, completed.PendingPersist)
	require.Equal(t, domain.SessionStateCompleted, completed.Session.State)

	rr = api.do(t, http.MethodGet, "/v1/draft", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodGet, "/v1/exercises/"+ex.ID+"/last-performance", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	last := decodeBody[lastperf.Entry](t, rr)
	require.Equal(t, 8, last.Reps)
	require.InDelta(t, 72.5, last.Weight, 1e-9)

	rr = api.do(t, http.MethodGet, "/v1/sessions/"+completed.Session.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	ex := api.createExercise(t, "Front Squat")

	rr := api.do(t, http.MethodGet, "/v1/templates/missing", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodPost, "/v1/exercises", ExerciseRequest{Name: "  "})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation_failed", decodeBody[map[string]string](t, rr)["type"])

	rr = api.do(t, http.MethodPost, "/v1/templates", TemplateRequest{
		Name:  "Legs",
		Items: []domain.TemplateItem{{ExerciseID: ex.ID, TargetSets: 3}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = api.do(t, http.MethodDelete, "/v1/exercises/"+ex.ID, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "referential_integrity", decodeBody[map[string]string](t, rr)["type"])

	rr = api.do(t, http.MethodGet, "/v1/sessions?cursor=bm9wZQ", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	api.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/folders", bytes.NewBufferString("{")))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", decodeBody[map[string]string](t, rr)["type"])
}

func TestCompleteReportsPendingPersist(t *testing.T) {
	api := newTestAPI(t)
	ex := api.createExercise(t, "Overhead Press")

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/v1/draft", StartDraftRequest{}).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/v1/draft/sets", SetRequest{ExerciseID: ex.ID, Reps: 5, Weight: 40}).Code)

	api.store.setFail(errors.New("read-only filesystem"))
	rr := api.do(t, http.MethodPost, "/v1/draft/complete", nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	resp := decodeBody[CompleteResponse](t, rr)
	require.True(t, resp.PendingPersist)

	rr = api.do(t, http.MethodGet, "/v1/pending", nil)
	require.Equal(t, []string{resp.Session.ID}, decodeBody[ResumeResponse](t, rr).Pending)

	rr = api.do(t, http.MethodPost, "/v1/resume", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	api.store.setFail(nil)
	rr = api.do(t, http.MethodPost, "/v1/resume", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{resp.Session.ID}, decodeBody[ResumeResponse](t, rr).Persisted)
}

func TestListSessionsPaginates(t *testing.T) {
	api := newTestAPI(t)
	ex := api.createExercise(t, "Deadlift")

	for i := range 3 {
		rr := api.do(t, http.MethodPost, "/v1/sessions", domain.WorkoutSession{
			Name: "Pull",
			Date: today.AddDate(0, 0, -i),
			Entries: []domain.ExerciseEntry{{
				ExerciseID: ex.ID,
				Sets:       []domain.Set{{ExerciseID: ex.ID, Reps: 3, Weight: 140}},
			}},
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := api.do(t, http.MethodGet, "/v1/sessions?limit=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	first := decodeBody[ListSessionsResponse](t, rr)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	require.True(t, first.Items[0].Date.After(first.Items[1].Date))

	rr = api.do(t, http.MethodGet, "/v1/sessions?limit=2&cursor="+first.NextCursor, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decodeBody[ListSessionsResponse](t, rr)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	rr = api.do(t, http.MethodDelete, "/v1/sessions/"+second.Items[0].ID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRoutePointsWithoutRunAreDropped(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodPost, "/v1/draft/run/points", RoutePointsRequest{Points: []domain.RoutePoint{
		{Coordinate: domain.Coordinate{Latitude: 51.5, Longitude: -0.12}, Timestamp: today},
	}})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, RoutePointsResponse{Dropped: 1}, decodeBody[RoutePointsResponse](t, rr))
}

func TestGPSRunOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/v1/draft", StartDraftRequest{Name: "Easy run"}).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/v1/draft/run/gps", nil).Code)

	rr := api.do(t, http.MethodPost, "/v1/draft/run/points", RoutePointsRequest{Points: []domain.RoutePoint{
		{Coordinate: domain.Coordinate{Latitude: 0, Longitude: 0}, Timestamp: today},
		{Coordinate: domain.Coordinate{Latitude: 0, Longitude: 0.001}, Timestamp: today.Add(time.Minute)},
	}})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, 2, decodeBody[RoutePointsResponse](t, rr).Accepted)

	rr = api.do(t, http.MethodPost, "/v1/draft/run/finish", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	run := decodeBody[domain.Run](t, rr)
	require.Len(t, run.Route, 2)
	require.InDelta(t, 111.2, run.DistanceMeters, 0.5)
	require.Equal(t, time.Minute, run.Duration)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}
