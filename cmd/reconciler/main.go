package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/assistant-billing/internal/app/reconciler"
	"github.com/magabrotheeeer/assistant-billing/internal/config"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting reconciler",
		slog.String("env", cfg.Env),
		slog.Duration("interval", cfg.Interval),
		slog.Duration("abandoned_after", cfg.AbandonedAfter),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := reconciler.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize reconciler", sl.Err(err))
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil {
		logger.Error("reconciler stopped with error", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("reconciler stopped")
}
