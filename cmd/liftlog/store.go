package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/liftlog/internal/config"
	"example.com/liftlog/internal/core"
	"example.com/liftlog/internal/persistence"
	"example.com/liftlog/internal/persistence/file"
	"example.com/liftlog/internal/persistence/postgres"
	"example.com/liftlog/internal/persistence/sqlite"
)

// openStore opens the document store selected by the configuration.
func openStore(ctx context.Context, cfg config.Config) (persistence.DocumentStore, error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		return file.Open(cfg.DocumentPath)
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store := postgres.NewStore(pool, cfg.InstallationID)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.StoreBackend)
	}
}

// instance is a loaded document with its save pipeline and engine.
type instance struct {
	store  persistence.DocumentStore
	saver  *persistence.Saver
	engine *core.Engine
}

func openRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*instance, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gw := persistence.NewGateway(store, persistence.WithLogger(logger.Named("gateway")))
	snap, err := gw.Load(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	saver := persistence.NewSaver(gw,
		persistence.WithSaverLogger(logger.Named("saver")),
		persistence.WithWriteTimeout(cfg.SaveTimeout),
	)
	engine := core.New(snap, gw, saver,
		core.WithLogger(logger.Named("engine")),
		core.WithLocationBuffer(cfg.LocationBuffer),
		core.WithEventExport(cfg.ExportEnabled()),
	)
	return &instance{store: store, saver: saver, engine: engine}, nil
}

// run starts the engine and saver, calls fn, then stops the engine before
// the saver so the last snapshot is written.
func (rt *instance) run(fn func(ctx context.Context, engine *core.Engine) error) error {
	engineCtx, stopEngine := context.WithCancel(context.Background())
	saverCtx, stopSaver := context.WithCancel(context.Background())
	go rt.saver.Start(saverCtx)
	go rt.engine.Start(engineCtx)

	err := fn(engineCtx, rt.engine)

	stopEngine()
	rt.engine.Wait()
	stopSaver()
	rt.saver.Wait()
	return err
}

func (rt *instance) close() error {
	return rt.store.Close()
}
