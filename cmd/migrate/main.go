package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/blobgate/blobgate/pkg/blobgate/config"
	"github.com/blobgate/blobgate/pkg/blobgate/migrate"
)

func main() {
	retryFailed := flag.Bool("retry-failed", false, "reset failed items below the attempt ceiling back to pending, then run")
	dryRun := flag.Bool("dry-run", false, "scan and count without writing anything")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.Migrate.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := config.NewDbPool(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	onProgress := func(p migrate.Progress) {
		logger.Info("migration progress",
			"processed", p.Processed,
			"succeeded", p.Succeeded,
			"failed", p.Failed,
			"bytes", p.Bytes,
			"elapsed", p.Elapsed,
			"eta", p.ETA)
	}

	runner, err := cfg.BuildRunner(pool, logger, onProgress)
	if err != nil {
		logger.Error("failed to build runner", "error", err)
		os.Exit(1)
	}

	var result *migrate.Result
	if *retryFailed {
		reset, err := runner.RetryFailed(ctx)
		if err != nil {
			logger.Error("retry-failed pass failed", "error", err)
			os.Exit(1)
		}
		logger.Info("retry pass primed", "reset", reset)
		result, err = runner.RunPending(ctx)
		if err != nil {
			logger.Error("retry pass aborted", "error", err)
			os.Exit(1)
		}
	} else {
		result, err = runner.Run(ctx)
		if err != nil {
			logger.Error("migration aborted", "error", err)
			os.Exit(1)
		}
	}

	for _, e := range result.Errors {
		logger.Warn("item not migrated", "legacy_id", e.LegacyID, "error", e.Err)
	}
	if result.Failed > 0 {
		os.Exit(2)
	}
}
