package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/liftlog/internal/domain"
	"example.com/liftlog/internal/lastperf"
	"example.com/liftlog/internal/observability"
)

// Snapshot is the in-memory state reconstructed by Load.
type Snapshot struct {
	State *domain.State
	Draft *domain.WorkoutSession
	Index *lastperf.Index
	// SchemaVersion is the version the document was written with.
	SchemaVersion int
	// Fresh is true when no document existed and a default state was created.
	Fresh bool
	// CacheRebuilt is true when the persisted last-performance cache
	// disagreed with a rebuild from history and was replaced.
	CacheRebuilt bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithCodec overrides the document codec.
func WithCodec(codec Codec) Option {
	return func(g *Gateway) {
		g.codec = codec
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// Gateway loads and saves the entity state through a DocumentStore.
type Gateway struct {
	store  DocumentStore
	codec  Codec
	logger *zap.Logger
	now    func() time.Time
}

// NewGateway constructs a Gateway over store.
func NewGateway(store DocumentStore, opts ...Option) *Gateway {
	g := &Gateway{
		store:  store,
		codec:  DefaultCodec(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load reads the durable document. A missing document yields a fresh default
// state; an unreadable or unsupported one yields domain.ErrCorruption.
func (g *Gateway) Load(ctx context.Context) (*Snapshot, error) {
	data, err := g.store.Read(ctx)
	if errors.Is(err, ErrNoDocument) {
		g.logger.Info("no document found, starting with a fresh state")
		state := domain.NewState(g.now())
		return &Snapshot{State: state, Index: lastperf.New(), SchemaVersion: g.codec.Version, Fresh: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := g.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	state := &domain.State{
		Account:   doc.Account,
		Exercises: doc.Exercises,
		Folders:   doc.Folders,
		Templates: doc.Templates,
		Sessions:  doc.Sessions,
		Outbox:    doc.Outbox,
	}
	if err := state.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruption, err)
	}
	if err := state.CheckDraft(doc.Draft); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruption, err)
	}

	snapshot := &Snapshot{
		State:         state,
		Draft:         doc.Draft,
		Index:         lastperf.Build(state.Sessions),
		SchemaVersion: doc.SchemaVersion,
	}
	if cached := lastperf.Restore(doc.LastPerformance); !cached.Equal(snapshot.Index) {
		g.logger.Warn("last-performance cache diverged from history, using rebuilt index",
			zap.Int("cached_entries", cached.Len()),
			zap.Int("rebuilt_entries", snapshot.Index.Len()),
		)
		snapshot.CacheRebuilt = true
	}

	g.logger.Info("document loaded",
		zap.Int("schema_version", doc.SchemaVersion),
		zap.Int("sessions", len(state.Sessions)),
		zap.Bool("draft", doc.Draft != nil),
	)
	return snapshot, nil
}

// Encode serialises the current state into document bytes.
func (g *Gateway) Encode(state *domain.State, draft *domain.WorkoutSession, index *lastperf.Index) ([]byte, error) {
	doc := Document{
		SavedAt:         g.now().UTC(),
		Account:         state.Account,
		Exercises:       state.Exercises,
		Folders:         state.Folders,
		Templates:       state.Templates,
		Sessions:        state.Sessions,
		Draft:           draft,
		LastPerformance: index.Entries(),
		Outbox:          state.Outbox,
	}
	data, err := g.codec.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Write persists already encoded document bytes.
func (g *Gateway) Write(ctx context.Context, data []byte) error {
	start := time.Now()
	err := g.store.Write(ctx, data)
	saveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		saveFailures.Inc()
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	documentBytes.Set(float64(len(data)))
	observability.RecordDocumentSaved(g.now())
	return nil
}

// Save encodes and writes the state synchronously.
func (g *Gateway) Save(ctx context.Context, state *domain.State, draft *domain.WorkoutSession, index *lastperf.Index) error {
	data, err := g.Encode(state, draft, index)
	if err != nil {
		return err
	}
	return g.Write(ctx, data)
}
