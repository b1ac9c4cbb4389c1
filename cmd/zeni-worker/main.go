package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zeni/internal/config"
	"zeni/internal/db"
	"zeni/internal/economy"
	"zeni/internal/sched"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	econ := economy.NewService(pool, logger)

	if cfg.RunOnce {
		now := time.Now()
		if _, err := econ.AccrueLoansDaily(ctx, now); err != nil {
			logger.Error("accrual failed", "err", err)
			os.Exit(1)
		}
		if err := econ.RotateDraw(ctx, now); err != nil {
			logger.Error("draw rotation failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	runner := sched.NewRunner(logger, sched.SystemClock())
	logger.Info("worker started",
		"accrue_every", cfg.AccrueEvery.String(),
		"rotate_every", cfg.RotateEvery.String())
	runner.Run(ctx,
		sched.Job{
			Name:     "loan_accrual",
			Interval: cfg.AccrueEvery,
			Location: economy.JST,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := econ.AccrueLoansDaily(ctx, now)
				return err
			},
		},
		sched.Job{
			Name:     "lottery_rotation",
			Interval: cfg.RotateEvery,
			Run:      econ.RotateDraw,
		},
	)
	logger.Info("worker shutdown")
}
