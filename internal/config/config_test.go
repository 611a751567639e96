package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SNAPBOT_TOKEN", "SNAPBOT_CHANNEL_ID", "SNAPBOT_LANG",
		"SNAPBOT_LANG_FILE", "SNAPBOT_TZ", "SNAPBOT_DATEFMT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Empty(t, cfg.Token)
	assert.Equal(t, "lang.json", cfg.LangFile)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.True(t, cfg.TZValid)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoad_ValidTimezone(t *testing.T) {
	t.Setenv("SNAPBOT_TZ", "Europe/Berlin")

	cfg := Load()

	assert.True(t, cfg.TZValid)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
}

func TestLoad_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	t.Setenv("SNAPBOT_TZ", "Mars/Olympus")

	cfg := Load()

	assert.False(t, cfg.TZValid)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "Mars/Olympus", cfg.Timezone)
}

func TestLoad_ForcedLangNormalized(t *testing.T) {
	t.Setenv("SNAPBOT_LANG", " DE ")

	cfg := Load()

	assert.Equal(t, "de", cfg.ForcedLang)
}
