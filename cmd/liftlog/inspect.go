package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"example.com/liftlog/internal/core"
	"example.com/liftlog/internal/persistence"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Validate the durable document and print a summary",
	RunE:  runInspect,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the last-performance cache from history",
	RunE:  runReindex,
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Manage exported session events",
}

var outboxRequeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Move quarantined events back to pending",
	RunE:  runOutboxRequeue,
}

type documentSummary struct {
	Store         string     `yaml:"store"`
	SchemaVersion int        `yaml:"schema_version"`
	Fresh         bool       `yaml:"fresh,omitempty"`
	CacheRebuilt  bool       `yaml:"cache_rebuilt,omitempty"`
	Exercises     int        `yaml:"exercises"`
	Folders       int        `yaml:"folders"`
	Templates     int        `yaml:"templates"`
	Sessions      int        `yaml:"sessions"`
	LastSession   *time.Time `yaml:"last_session,omitempty"`
	Draft         string     `yaml:"draft,omitempty"`
	IndexEntries  int        `yaml:"last_performance_entries"`
	Outbox        int        `yaml:"outbox_events"`
	Quarantined   int        `yaml:"outbox_quarantined"`
}

func summarize(backend string, snap *persistence.Snapshot) documentSummary {
	summary := documentSummary{
		Store:         backend,
		SchemaVersion: snap.SchemaVersion,
		Fresh:         snap.Fresh,
		CacheRebuilt:  snap.CacheRebuilt,
		Exercises:     len(snap.State.Exercises),
		Folders:       len(snap.State.Folders),
		Templates:     len(snap.State.Templates),
		Sessions:      len(snap.State.Sessions),
		IndexEntries:  snap.Index.Len(),
		Outbox:        len(snap.State.Outbox),
	}
	for _, s := range snap.State.Sessions {
		if summary.LastSession == nil || s.Date.After(*summary.LastSession) {
			date := s.Date
			summary.LastSession = &date
		}
	}
	for _, ev := range snap.State.Outbox {
		if ev.QuarantinedAt != nil {
			summary.Quarantined++
		}
	}
	if snap.Draft != nil {
		summary.Draft = fmt.Sprintf("%s (%s, %d sets)", snap.Draft.Name, snap.Draft.State, snap.Draft.SetCount())
	}
	return summary
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := persistence.NewGateway(store, persistence.WithLogger(logger)).Load(ctx)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(summarize(cfg.StoreBackend, snap))
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runReindex(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	return rt.run(func(ctx context.Context, engine *core.Engine) error {
		entries, err := engine.Reindex(ctx)
		if err != nil {
			return err
		}
		if err := engine.Flush(ctx); err != nil {
			return err
		}
		logger.Info("last-performance cache rebuilt", zap.Int("entries", entries))
		fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d entries\n", entries)
		return nil
	})
}

func runOutboxRequeue(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	return rt.run(func(ctx context.Context, engine *core.Engine) error {
		n, err := engine.RequeueQuarantined(ctx)
		if err != nil {
			return err
		}
		if err := engine.Flush(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %d events\n", n)
		return nil
	})
}
