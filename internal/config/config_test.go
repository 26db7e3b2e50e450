package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_PATH", path)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_PATH", "TELEGRAM_TOKEN", "DATABASE_URL", "TIMEZONE", "SESSION_TTL_MINUTES", "DEBUG"} {
		t.Setenv(key, "")
	}
}

func TestLoadFromFileWithDefaults(t *testing.T) {
	clearEnv(t)
	writeConfig(t, "telegram_token: file-token\n")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.TelegramToken)
	assert.Equal(t, "reminder_bot.db", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	writeConfig(t, "telegram_token: file-token\ndatabase_url: file.db\n")
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("DATABASE_URL", "env.db")
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.TelegramToken)
	assert.Equal(t, "env.db", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL())
	assert.True(t, cfg.Debug)
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	writeConfig(t, "telegram_token: [")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidTimezone(t *testing.T) {
	clearEnv(t)
	writeConfig(t, "telegram_token: file-token\n")
	t.Setenv("TIMEZONE", "Nope/Nowhere")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nope/Nowhere")

	t.Setenv("TIMEZONE", "Europe/Moscow")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", cfg.Location().String())
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := Config{Timezone: "Nope/Nowhere"}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "Europe/Moscow"
	loc := cfg.Location()
	require.NotNil(t, loc)
	assert.Equal(t, "Europe/Moscow", loc.String())
}
