package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/liftlog/internal/api"
	"example.com/liftlog/internal/core"
	"example.com/liftlog/internal/outbox"
	httptransport "example.com/liftlog/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API until interrupted",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	return rt.run(func(_ context.Context, engine *core.Engine) error {
		if ids, err := engine.Resume(ctx); err != nil {
			logger.Warn("initial save failed", zap.Error(err))
		} else if len(ids) > 0 {
			logger.Info("restored pending sessions", zap.Strings("session_ids", ids))
		}

		g, gctx := errgroup.WithContext(ctx)

		if cfg.ExportEnabled() {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, cfg.SaveTimeout)
			defer producer.Close()

			var registry outbox.SchemaRegistrar
			if cfg.SchemaRegistryURL != "" {
				registry = outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			}
			dispatcher := outbox.NewDispatcher(engine, producer, registry, outbox.Settings{
				Topic:        cfg.OutboxTopic,
				PollInterval: cfg.OutboxPollInterval,
				BatchSize:    cfg.OutboxBatchSize,
				Retry:        outbox.NewRetryPolicy(cfg.OutboxMaxRetries, cfg.OutboxBaseDelay),
			}, outbox.WithLogger(logger.Named("outbox")))
			g.Go(func() error {
				dispatcher.Start(gctx)
				return nil
			})
		}

		handler := api.NewHandler(engine, api.WithLogger(logger.Named("api")))
		serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
		root := httptransport.RequestLogger(logger.Named("http"),
			httptransport.CORS(cfg.CORSOrigin, httptransport.NewMux(handler)))
		server := httptransport.NewServer(serverCfg, root)
		g.Go(func() error {
			return httptransport.Serve(gctx, server, serverCfg.ShutdownTimeout, logger)
		})

		err := g.Wait()
		logger.Info("shutting down")
		return err
	})
}
