package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config is the immutable startup snapshot. It is built once in Load and
// read-only for the rest of the process.
type Config struct {
	Token            string
	DefaultChannelID string
	ForcedLang       string
	LangFile         string
	Timezone         string // raw SNAPBOT_TZ value, kept for warnings
	Location         *time.Location
	TZValid          bool
	DateFormat       string // optional Go layout, overrides language defaults
}

func Load() *Config {
	cfg := &Config{
		Token:            os.Getenv("SNAPBOT_TOKEN"),
		DefaultChannelID: strings.TrimSpace(os.Getenv("SNAPBOT_CHANNEL_ID")),
		ForcedLang:       strings.ToLower(strings.TrimSpace(os.Getenv("SNAPBOT_LANG"))),
		LangFile:         getEnv("SNAPBOT_LANG_FILE", "lang.json"),
		Timezone:         strings.TrimSpace(getEnv("SNAPBOT_TZ", "UTC")),
		DateFormat:       os.Getenv("SNAPBOT_DATEFMT"),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("invalid SNAPBOT_TZ, falling back to UTC", "tz", cfg.Timezone)
		cfg.Location = time.UTC
		cfg.TZValid = false
	} else {
		cfg.Location = loc
		cfg.TZValid = true
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
