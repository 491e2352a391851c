package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 72*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 720*time.Hour, cfg.ArchiveTTL)
	assert.Equal(t, "trivia_score_events", cfg.ScoreQueueName)
	assert.Equal(t, []string{"localhost:*"}, cfg.WSOriginPatterns)
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlushInterval())
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("WS_ORIGIN_PATTERNS", "example.com,*.example.com")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"example.com", "*.example.com"}, cfg.WSOriginPatterns)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.Production())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "parse env:")

	t.Setenv("SESSION_TTL", "0s")
	_, err = Load()
	assert.ErrorContains(t, err, "SESSION_TTL")
}

func TestPostgresURL(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://u:p@db:5432/x"}
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.PostgresURL())

	cfg = Config{
		PostgresUser:     "quiz",
		PostgresPassword: "s3cret",
		PGHost:           "db",
		PGPort:           "5433",
		PGDatabase:       "trivia",
	}
	assert.Equal(t, "postgres://quiz:s3cret@db:5433/trivia", cfg.PostgresURL())
}
