package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/conorfennell/tunequeue/internal/clock"
	"github.com/conorfennell/tunequeue/internal/config"
	"github.com/conorfennell/tunequeue/internal/fsrs"
	"github.com/conorfennell/tunequeue/internal/importer"
	"github.com/conorfennell/tunequeue/internal/inspect"
	"github.com/conorfennell/tunequeue/internal/purge"
	"github.com/conorfennell/tunequeue/internal/queue"
	"github.com/conorfennell/tunequeue/internal/remote"
	"github.com/conorfennell/tunequeue/internal/scheduler"
	"github.com/conorfennell/tunequeue/internal/storage"
	tqsync "github.com/conorfennell/tunequeue/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("tunequeue", pflag.ContinueOnError)
	configPath := flags.String("config", "tunequeue.yaml", "path to the settings file")
	flags.String("db_path", "", "path to the SQLite database file")
	flags.String("remote_url", "", "base URL of the remote store")
	importSource := flags.String("import", "", "directory or git URL to import tunes from")
	reposDir := flags.String("repos-dir", "repos", "local directory for cloned import sources")
	serve := flags.Bool("serve", false, "run the inspection HTTP server")
	listen := flags.String("listen", "127.0.0.1:7373", "listen address for the inspection server")
	syncOnce := flags.Bool("sync", false, "run one sync cycle and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	settings, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	store, err := storage.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	logger.Info("database opened", "path", settings.DBPath)

	clk := clock.System{}

	if *importSource != "" {
		im := importer.New(store, clk, settings.UserID, settings.PlaylistID, logger)
		stats, err := im.ImportSource(*importSource, *reposDir)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		logger.Info("import finished",
			"parsed", stats.Parsed, "imported", stats.Imported,
			"skipped", stats.Skipped, "errors", stats.Errors)
	}

	var model scheduler.MemoryModel
	switch settings.Algorithm {
	case "fixed":
		model = scheduler.FixedModel{Days: settings.FixedIntervalDays}
	default:
		model = fsrs.New(&fsrs.Params{
			A:                settings.FSRS.A,
			B:                settings.FSRS.B,
			C:                settings.FSRS.C,
			D:                settings.FSRS.D,
			DesiredRetention: settings.FSRS.DesiredRetention,
		})
	}
	sched := scheduler.New(model, logger)
	builder := queue.NewBuilder(store, clk, sched, settings.DelinquencyWindowDays, logger)

	var rs remote.Store
	if settings.RemoteURL != "" {
		rs = remote.NewClient(settings.RemoteURL, nil)
	} else {
		// No remote configured: sync against a throwaway in-process
		// store so the engine and purge paths still run.
		logger.Warn("no remote_url configured, using in-memory remote")
		rs = remote.NewMemoryStore(clk.Now)
	}

	purger := purge.New(store, clk, logger)
	engine := tqsync.New(store, rs, purger, clk,
		settings.UserID, settings.PlaylistID, settings.Genres, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *syncOnce {
		if err := engine.Sync(ctx); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if _, err := builder.Regenerate(settings.PlaylistID); err != nil {
			return fmt.Errorf("queue rebuild failed: %w", err)
		}
		return nil
	}

	if *serve {
		go engine.Run(ctx, settings.SyncInterval)

		srv := &http.Server{
			Addr:    *listen,
			Handler: inspect.NewServer(store, engine, builder, clk, settings, logger),
		}
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		logger.Info("inspection server listening", "addr", *listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	// Default mode: print the current practice queue.
	items, err := builder.Regenerate(settings.PlaylistID)
	if err != nil {
		return fmt.Errorf("queue rebuild failed: %w", err)
	}
	fmt.Printf("Practice queue for %s (%d items):\n", settings.PlaylistID, len(items))
	for _, it := range items {
		fmt.Printf("- [bucket %d] %s\n", it.Bucket, it.TuneID)
	}
	return nil
}
