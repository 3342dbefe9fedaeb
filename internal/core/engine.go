// Package core serialises every mutation of the workout log onto one loop
// and hands each resulting state to the ordered save pipeline.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/lastperf"
	"example.com/liftlog/internal/persistence"
	"example.com/liftlog/internal/session"
)

// ErrStopped is returned for calls made after the loop has exited.
var ErrStopped = errors.New("engine stopped")

// Encoder turns the in-memory state into document bytes. *persistence.Gateway
// satisfies it.
type Encoder interface {
	Encode(state *domain.State, draft *domain.WorkoutSession, index *lastperf.Index) ([]byte, error)
}

// Sink accepts numbered snapshots and reports when they are durable.
// *persistence.Saver satisfies it.
type Sink interface {
	Submit(seq uint64, data []byte)
	Await(ctx context.Context, seq uint64) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocationBuffer sets how many GPS samples may wait for the loop.
func WithLocationBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.locationBuffer = n
		}
	}
}

// WithEventExport records outbox events for completed and deleted sessions.
func WithEventExport(enabled bool) Option {
	return func(e *Engine) {
		e.exportEvents = enabled
	}
}

type locationSample struct {
	runID string
	point domain.RoutePoint
}

// Engine owns the entity store, the session slot and the last-performance
// index. All access goes through its loop, so no two mutations interleave.
type Engine struct {
	store      *domain.Store
	controller *session.Controller
	index      *lastperf.Index
	encoder    Encoder
	sink       Sink
	logger     *zap.Logger
	now        func() time.Time

	exportEvents   bool
	locationBuffer int
	dirty          bool
	seq            uint64

	ops              chan func()
	locations        chan locationSample
	activeRun        atomic.Value
	shutdownComplete chan struct{}
}

// New builds an engine over a loaded snapshot. Saves go through encoder and
// sink; the sink must be running for Complete, Resume and Flush to return.
func New(snapshot *persistence.Snapshot, encoder Encoder, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		encoder:          encoder,
		sink:             sink,
		logger:           zap.NewNop(),
		now:              time.Now,
		locationBuffer:   256,
		ops:              make(chan func()),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.store = domain.NewStore(snapshot.State)
	e.store.SetClock(e.now)
	e.controller = session.NewController(session.WithClock(e.now))
	e.controller.Restore(snapshot.Draft)
	e.index = snapshot.Index
	if e.index == nil {
		e.index = lastperf.Build(snapshot.State.Sessions)
	}
	e.dirty = snapshot.Fresh || snapshot.CacheRebuilt
	e.locations = make(chan locationSample, e.locationBuffer)
	e.activeRun.Store(e.controller.ActiveRunID())
	return e
}

// Start runs the mutation loop until ctx is cancelled. It should be called
// in a goroutine.
func (e *Engine) Start(ctx context.Context) {
	defer close(e.shutdownComplete)

	if e.dirty {
		if _, err := e.persist(); err != nil {
			e.logger.Error("initial save failed", zap.Error(err))
		}
		e.dirty = false
	}

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-e.ops:
			op()
		case sample := <-e.locations:
			e.ingest(sample)
		}
	}
}

// Wait blocks until the loop has exited.
func (e *Engine) Wait() {
	<-e.shutdownComplete
}

// persist encodes the current state and queues it for saving. It runs on
// the loop.
func (e *Engine) persist() (uint64, error) {
	data, err := e.encoder.Encode(e.store.State(), e.controller.Snapshot(), e.index)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	e.seq++
	e.sink.Submit(e.seq, data)
	return e.seq, nil
}

// ingest appends a GPS sample plus whatever else is already buffered, then
// saves once.
func (e *Engine) ingest(first locationSample) {
	appended := e.appendSample(first)
drain:
	for i := 1; i < cap(e.locations); i++ {
		select {
		case sample := <-e.locations:
			if e.appendSample(sample) {
				appended = true
			}
		default:
			break drain
		}
	}
	if appended {
		if _, err := e.persist(); err != nil {
			e.logger.Error("save after route points failed", zap.Error(err))
		}
	}
}

func (e *Engine) appendSample(sample locationSample) bool {
	ok, err := e.controller.AppendRoutePoint(sample.runID, sample.point)
	switch {
	case err != nil:
		routePointsRejected.Inc()
		e.logger.Debug("route point rejected", zap.String("run_id", sample.runID), zap.Error(err))
	case !ok:
		locationsDropped.WithLabelValues("stale_run").Inc()
	default:
		routePointsAppended.Inc()
	}
	return ok
}

// OfferLocation hands a GPS sample to the loop without blocking. It returns
// false when no run is recording or the buffer is full.
func (e *Engine) OfferLocation(point domain.RoutePoint) bool {
	runID, _ := e.activeRun.Load().(string)
	if runID == "" {
		locationsDropped.WithLabelValues("no_run").Inc()
		return false
	}
	select {
	case e.locations <- locationSample{runID: runID, point: point}:
		return true
	default:
		locationsDropped.WithLabelValues("buffer_full").Inc()
		return false
	}
}

// call runs fn on the loop. When fn reports a change the new state is
// queued for saving and the returned sequence identifies that save.
func call[T any](ctx context.Context, e *Engine, name string, fn func() (T, bool, error)) (T, uint64, error) {
	type result struct {
		val T
		seq uint64
		err error
	}
	done := make(chan result, 1)
	op := func() {
		start := time.Now()
		val, changed, err := fn()
		var seq uint64
		if err == nil && changed {
			seq, err = e.persist()
		}
		e.activeRun.Store(e.controller.ActiveRunID())
		opDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		opsTotal.WithLabelValues(name, outcome(err)).Inc()
		done <- result{val: val, seq: seq, err: err}
	}

	var zero T
	select {
	case e.ops <- op:
	case <-ctx.Done():
		return zero, 0, ctx.Err()
	case <-e.shutdownComplete:
		return zero, 0, ErrStopped
	}
	select {
	case r := <-done:
		return r.val, r.seq, r.err
	case <-ctx.Done():
		return zero, 0, ctx.Err()
	}
}

// mutate runs a change that saves on success.
func mutate[T any](ctx context.Context, e *Engine, name string, fn func() (T, error)) (T, error) {
	val, _, err := call(ctx, e, name, func() (T, bool, error) {
		v, err := fn()
		return v, true, err
	})
	return val, err
}

// query runs a read on the loop.
func query[T any](ctx context.Context, e *Engine, name string, fn func() T) (T, error) {
	val, _, err := call(ctx, e, name, func() (T, bool, error) {
		return fn(), false, nil
	})
	return val, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrReferentialIntegrity):
		return "referential_integrity"
	case errors.Is(err, domain.ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "persistence_failure"
	default:
		return "error"
	}
}

// Flush waits until every change made so far is durable.
func (e *Engine) Flush(ctx context.Context) error {
	seq, err := query(ctx, e, "flush", func() uint64 { return e.seq })
	if err != nil {
		return err
	}
	if seq == 0 {
		return nil
	}
	return e.sink.Await(ctx, seq)
}

// Resume saves the current state again and, once it is durable, clears the
// pending-persist flag of every completed session. It returns the ids that
// were cleared. Call it when the app returns to the foreground.
func (e *Engine) Resume(ctx context.Context) ([]string, error) {
	pending, seq, err := call(ctx, e, "resume", func() ([]string, bool, error) {
		return e.controller.PendingPersist(), true, nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.sink.Await(ctx, seq); err != nil {
		e.logger.Warn("resume save failed", zap.Strings("pending", pending), zap.Error(err))
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	if _, err := query(ctx, e, "mark_persisted", func() struct{} {
		e.controller.MarkPersisted(pending...)
		return struct{}{}
	}); err != nil {
		return nil, err
	}
	e.logger.Info("pending sessions persisted", zap.Strings("session_ids", pending))
	return pending, nil
}

// PendingPersist lists completed sessions whose save is not confirmed.
func (e *Engine) PendingPersist(ctx context.Context) ([]string, error) {
	return query(ctx, e, "pending_persist", e.controller.PendingPersist)
}

// LastPerformance returns the pre-fill for an exercise. An exercise without
// history yields an empty entry.
func (e *Engine) LastPerformance(ctx context.Context, exerciseID string) (lastperf.Entry, error) {
	return query(ctx, e, "last_performance", func() lastperf.Entry {
		return e.index.Lookup(exerciseID)
	})
}

// Reindex rebuilds the last-performance index from history and saves.
func (e *Engine) Reindex(ctx context.Context) (int, error) {
	return mutate(ctx, e, "reindex", func() (int, error) {
		e.rebuildIndex()
		return e.index.Len(), nil
	})
}

func (e *Engine) rebuildIndex() {
	e.index = lastperf.Build(e.store.State().Sessions)
	indexRebuilds.Inc()
}
