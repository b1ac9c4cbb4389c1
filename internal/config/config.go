package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr        string
	DatabaseURL string
	AdminToken  string
}

type BotConfig struct {
	DiscordToken string
	GuildID      string
	DatabaseURL  string
}

type WorkerConfig struct {
	DatabaseURL string
	AccrueEvery time.Duration
	RotateEvery time.Duration
	RunOnce     bool
}

type CLIConfig struct {
	APIBaseURL string
	AdminToken string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("ZENI_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AdminToken:  strings.TrimSpace(os.Getenv("ZENI_ADMIN_TOKEN")),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AdminToken == "" {
		return cfg, fmt.Errorf("ZENI_ADMIN_TOKEN is required")
	}
	return cfg, nil
}

func LoadBotFromEnv() (BotConfig, error) {
	cfg := BotConfig{
		DiscordToken: strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		GuildID:      strings.TrimSpace(os.Getenv("DISCORD_GUILD_ID")),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}
	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AccrueEvery: envDurationDefault("ZENI_ACCRUE_EVERY", 24*time.Hour),
		RotateEvery: envDurationDefault("ZENI_ROTATE_EVERY", 30*time.Minute),
		RunOnce:     envBoolDefault("ZENI_WORKER_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("ZENI_API_BASE_URL", "http://localhost:8080"), "/"),
		AdminToken: strings.TrimSpace(os.Getenv("ZENI_ADMIN_TOKEN")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
