package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
	}
}

var managedKeys = []string{
	"TELEGRAM_BOT_TOKEN", "DB_DRIVER", "MYSQL_DSN", "SQLITE_PATH", "REPLICATE_API_TOKEN",
	"REPLICATE_BASE_URL", "CALLBACK_BASE_URL", "REQUIRED_CHANNELS", "INITIAL_CREDITS",
	"REFERRAL_BONUS", "HTTP_TIMEOUT_SECONDS", "S3_REGION", "S3_ACCESS_KEY", "S3_SECRET_KEY",
	"S3_BUCKET", "S3_PUBLIC_BASE_URL", "S3_PREFIX", "REDIS_ADDR", "NATS_URL",
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t, managedKeys...)
	path := writeEnvFile(t, `
TELEGRAM_BOT_TOKEN=bot-token
REPLICATE_API_TOKEN=r8_token
CALLBACK_BASE_URL=https://hooks.example.com/replicate
REQUIRED_CHANNELS=@first, https://t.me/second/ ,first
INITIAL_CREDITS=90
REFERRAL_BONUS=15
HTTP_TIMEOUT_SECONDS=5
S3_REGION=eu-central-1
S3_ACCESS_KEY=ak
S3_SECRET_KEY=sk
S3_BUCKET=voices
S3_PUBLIC_BASE_URL=https://cdn.example.com
`)
	t.Setenv("CONFIG_ENV_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bot-token", cfg.BotToken)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, filepath.Join("sessions", "voicebot.db"), cfg.SQLitePath)
	assert.Equal(t, "https://api.replicate.com", cfg.ReplicateBaseURL)
	assert.Equal(t, defaultModelVersion, cfg.ReplicateModelVersion)
	assert.Equal(t, []string{"@first", "@second"}, cfg.RequiredChannels)
	assert.Equal(t, 90, cfg.InitialCredits)
	assert.Equal(t, 15, cfg.ReferralBonus)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "audio", cfg.S3Prefix)
}

func TestLoadReportsMissingVariables(t *testing.T) {
	clearEnv(t, managedKeys...)
	t.Setenv("CONFIG_ENV_PATH", writeEnvFile(t, "DB_DRIVER=mysql\n"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
	assert.Contains(t, err.Error(), "MYSQL_DSN")
	assert.Contains(t, err.Error(), "CALLBACK_BASE_URL")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	clearEnv(t, managedKeys...)
	t.Setenv("CONFIG_ENV_PATH", writeEnvFile(t, "DB_DRIVER=oracle\n"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	const fallback = "https://api.replicate.com"
	assert.Equal(t, fallback, normalizeBaseURL("", fallback))
	assert.Equal(t, "https://api.replicate.com", normalizeBaseURL("api.replicate.com", fallback))
	assert.Equal(t, "http://127.0.0.1:9000", normalizeBaseURL("http://127.0.0.1:9000/", fallback))
}

func TestParseChannels(t *testing.T) {
	t.Parallel()

	assert.Empty(t, parseChannels(""))
	assert.Equal(t, []string{"@a", "@b"}, parseChannels("a, t.me/b ,@a"))
}
