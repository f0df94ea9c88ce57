package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	BotToken       string
	DatabasePath   string
	DigestTime     string
	DigestInterval time.Duration
	Location       *time.Location
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory. Real environment variables win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		BotToken:       strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		DatabasePath:   strings.TrimSpace(os.Getenv("DB_PATH")),
		DigestTime:     strings.TrimSpace(os.Getenv("DIGEST_TIME")),
		DigestInterval: parseInterval(strings.TrimSpace(os.Getenv("DIGEST_INTERVAL_HOURS"))),
		Location:       time.Local,
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "bot_db.sqlite"
	}

	if cfg.DigestTime != "" {
		if _, err := time.Parse("15:04", cfg.DigestTime); err != nil {
			return cfg, fmt.Errorf("DIGEST_TIME must be HH:MM, got %q", cfg.DigestTime)
		}
	}

	if name := strings.TrimSpace(os.Getenv("TZ_LOCATION")); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return cfg, fmt.Errorf("TZ_LOCATION: %w", err)
		}
		cfg.Location = loc
	}

	if cfg.BotToken == "" {
		return cfg, fmt.Errorf("BOT_TOKEN is required")
	}

	return cfg, nil
}

// DigestEnabled reports whether any digest schedule is configured.
func (c Config) DigestEnabled() bool {
	return c.DigestTime != "" || c.DigestInterval > 0
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
