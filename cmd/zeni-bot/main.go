package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"zeni/internal/bot"
	"zeni/internal/config"
	"zeni/internal/db"
	"zeni/internal/economy"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
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
	b, err := bot.New(cfg.DiscordToken, cfg.GuildID, econ, logger)
	if err != nil {
		logger.Error("bot init failed", "err", err)
		os.Exit(1)
	}
	if err := b.Start(ctx); err != nil {
		logger.Error("bot failed", "err", err)
		os.Exit(1)
	}
	logger.Info("bot shutdown")
}
