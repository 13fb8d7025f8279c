package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ritzau/kpi-graph/pkg/config"
	"github.com/ritzau/kpi-graph/pkg/engine"
	"github.com/ritzau/kpi-graph/pkg/logging"
	"github.com/ritzau/kpi-graph/pkg/output"
	"github.com/ritzau/kpi-graph/pkg/pubsub"
	"github.com/ritzau/kpi-graph/pkg/seed"
	"github.com/ritzau/kpi-graph/pkg/watcher"
	"github.com/ritzau/kpi-graph/pkg/web"
	"github.com/spf13/pflag"
)

func main() {
	f := pflag.NewFlagSet("kpi-graph", pflag.ExitOnError)
	f.String("seed", "", "YAML file with the initial edge set")
	f.Bool("web", false, "Serve the HTTP API instead of printing a report")
	f.Int("port", 8080, "Port for web server (only used with --web)")
	f.Bool("watch", false, "Reload the seed file when it changes (only used with --web)")
	f.Int("max-depth", 5, "Default influence traversal depth")
	f.Float64("balance-tolerance", 0.01, "Allowed deviation of a parent's child weight sum from 1.0")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	f.Bool("log-json", false, "Log as JSON instead of compact console lines")
	f.String("kpi", "", "Print lineage paths and influence for this KPI")
	f.String("root", "", "Print only the tree under this root KPI")
	f.Parse(os.Args[1:])

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(os.Stderr, level, cfg.LogJSON)

	if cfg.WebMode {
		err = runWeb(cfg)
	} else {
		err = runConsole(cfg)
	}
	if err != nil {
		logging.Fatal("kpi-graph failed", "error", err)
	}
}

func newEngine(cfg *config.Config, publisher pubsub.Publisher) *engine.Engine {
	return engine.New(engine.Options{
		Publisher:        publisher,
		MaxDepth:         cfg.MaxDepth,
		BalanceTolerance: cfg.BalanceTolerance,
	})
}

func loadSeed(ctx context.Context, eng *engine.Engine, path string) error {
	edges, err := seed.Load(path)
	if err != nil {
		return err
	}
	if err := eng.Reload(ctx, edges); err != nil {
		return fmt.Errorf("rejected seed file '%s': %w", path, err)
	}
	logging.Info("loaded seed file", "path", path, "edges", len(edges))
	return nil
}

func runConsole(cfg *config.Config) error {
	eng := newEngine(cfg, nil)
	if cfg.Seed != "" {
		if err := loadSeed(context.Background(), eng, cfg.Seed); err != nil {
			return err
		}
	}

	output.PrintForest(os.Stdout, eng.GetTree(cfg.Root))
	if cfg.Kpi != "" {
		output.PrintPaths(os.Stdout, cfg.Kpi, eng.GetPaths(cfg.Kpi))
		output.PrintInfluence(os.Stdout, eng.GetInfluence(cfg.Kpi, eng.MaxDepth()))
	}
	output.PrintAudit(os.Stdout, eng.Audit())
	return nil
}

func runWeb(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := web.NewPublisher()
	eng := newEngine(cfg, publisher)
	server := web.NewServer(eng, publisher)

	if cfg.Seed != "" {
		server.PublishStoreStatus("loading", "Loading seed file...", cfg.Seed)
		if err := loadSeed(ctx, eng, cfg.Seed); err != nil {
			return err
		}
		server.PublishStoreStatus("ready", "Seed file loaded", cfg.Seed)
	}

	if cfg.Watch {
		if err := watchSeed(ctx, cfg.Seed, eng, server); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// watchSeed reloads the seed file after each debounced change. A failed
// reload leaves the current edges in place.
func watchSeed(ctx context.Context, path string, eng *engine.Engine, server *web.Server) error {
	fw, err := watcher.NewFileWatcher(path)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	go func() {
		for event := range debouncer.Output() {
			plan := watcher.AnalyzeChanges(event)
			if !plan.Reload {
				logging.Warn(plan.Reason, "files", plan.ChangedFiles)
				continue
			}

			logging.Info("reloading seed", "reason", plan.Reason, "files", plan.ChangedFiles)
			server.PublishStoreStatus("loading", "Reloading seed file...", path)
			if err := loadSeed(ctx, eng, path); err != nil {
				logging.Error("seed reload failed; keeping current edges", "error", err)
				server.PublishStoreStatus("reload_failed", err.Error(), path)
				continue
			}
			server.PublishStoreStatus("ready", "Seed file reloaded", path)
		}
	}()
	return nil
}
