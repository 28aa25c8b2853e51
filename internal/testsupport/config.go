package testsupport

import (
	"path/filepath"
	"testing"

	"beacon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Subject.ID = "subject-test"
	cfg.Subject.Name = "Test Subject"
	cfg.Subject.Country = "DE"
	cfg.Coord.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxAttempts overrides the queue retry budget on the test config.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.MaxAttempts = n
	}
}

// WithSMS enables the SMS channel with a test recipient.
func WithSMS(recipient string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.SMS.Enabled = true
		cfg.SMS.Recipient = recipient
	}
}
