package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`

	DatabaseURL      string `env:"DATABASE_URL"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PGHost           string `env:"PG_HOST" envDefault:"localhost"`
	PGPort           string `env:"PG_PORT" envDefault:"5432"`
	PGDatabase       string `env:"PG_DATABASE" envDefault:"trivia"`

	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	ScoreQueueName string `env:"SCORE_QUEUE_NAME" envDefault:"trivia_score_events"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"72h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	ArchiveTTL    time.Duration `env:"ARCHIVE_TTL" envDefault:"720h"`

	WSOriginPatterns   []string `env:"WS_ORIGIN_PATTERNS" envSeparator:"," envDefault:"localhost:*"`
	TokenPublicKeyPath string   `env:"TOKEN_PUBLIC_KEY_PATH"`

	HistorianBatchSize int `env:"HISTORIAN_BATCH_SIZE" envDefault:"100"`
	HistorianFlushMS   int `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.HistorianBatchSize <= 0 {
		return Config{}, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", cfg.HistorianBatchSize)
	}
	return cfg, nil
}

// PostgresURL returns DATABASE_URL, or a URL assembled from the PG_* variables.
func (c Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   c.PGHost + ":" + c.PGPort,
		Path:   "/" + c.PGDatabase,
	}
	return u.String()
}

// HistorianFlushInterval is HISTORIAN_FLUSH_MS as a duration.
func (c Config) HistorianFlushInterval() time.Duration {
	return time.Duration(c.HistorianFlushMS) * time.Millisecond
}

// Production reports whether APP_ENV selects production behaviour (JSON logs).
func (c Config) Production() bool {
	return c.AppEnv == "production"
}
