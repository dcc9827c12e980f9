package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_PORT", "LOG_LEVEL", "STORE_BACKEND", "MONGODB_URI", "MONGODB_DB_NAME", "MONGODB_COLLECTION",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOCK_BACKEND", "LOCK_TTL",
		"WHATSAPP_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "META_VERIFY_TOKEN", "WHATSAPP_BASE_URL",
		"WHATSAPP_API_VERSION", "WHATSAPP_MANAGER_ID", "GOOGLE_SHEETS_CREDENTIALS_PATH",
		"GOOGLE_SHEET_DATABASE_ID", "REPORT_CRON_SCHEDULE", "TIMEZONE", "ANTHROPIC_API_KEY",
		"ASSIST_TIMEOUT", "REVIEW_THRESHOLD",
	} {
		// Setenv registers the restore; Unsetenv lets the env file fill the key.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, LockLocal, cfg.Lock.Backend)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "0 20 * * 5", cfg.Reporting.CronSchedule)
	assert.Equal(t, 0.5, cfg.Review.Threshold)
	assert.False(t, cfg.WhatsApp.Enabled())
	assert.False(t, cfg.Sheets.Enabled())
	assert.False(t, cfg.AI.Enabled())
}

func TestLoad_FromEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_BACKEND=redis\nREDIS_ADDR=localhost:6379\nREDIS_DB=2\nLOCK_BACKEND=redis\nLOCK_TTL=3s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, 3*time.Second, cfg.Lock.TTL)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"mongo without uri", map[string]string{"STORE_BACKEND": "mongo"}},
		{"redis without addr", map[string]string{"STORE_BACKEND": "redis"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "sqlite"}},
		{"redis lock without addr", map[string]string{"LOCK_BACKEND": "redis"}},
		{"bad duration", map[string]string{"LOCK_TTL": "soon"}},
		{"bad redis db", map[string]string{"REDIS_DB": "one"}},
		{"half sheets config", map[string]string{"GOOGLE_SHEET_DATABASE_ID": "abc"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"threshold out of range", map[string]string{"REVIEW_THRESHOLD": "1.5"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
