package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration shared by the agent and the server.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	AudioDir string `toml:"audio_dir"`
}

// Subject identifies the field subject operating this agent.
type Subject struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Country string `toml:"country"`
}

// Server contains the agent's view of the coordination server.
type Server struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SMS contains configuration for the SMS fallback channel.
type SMS struct {
	Enabled   bool   `toml:"enabled"`
	Recipient string `toml:"recipient"`
}

// Queue contains configuration for the durable outbound queue.
type Queue struct {
	MaxAttempts          int `toml:"max_attempts"`
	FlushIntervalSeconds int `toml:"flush_interval_seconds"`
}

// Panic contains configuration for emergency sessions.
type Panic struct {
	AudioMaxSeconds int `toml:"audio_max_seconds"`
	AudioMinFreeMB  int `toml:"audio_min_free_mb"`
}

// Coord contains configuration for the coordination server process.
type Coord struct {
	Bind                   string `toml:"bind"`
	APIToken               string `toml:"api_token"`
	BatteryCriticalPercent int    `toml:"battery_critical_percent"`
	SnapshotEscalations    int    `toml:"snapshot_escalations"`
	SnapshotActivity       int    `toml:"snapshot_activity"`
	NtfyTopic              string `toml:"ntfy_topic"`
	NtfyTimeoutSeconds     int    `toml:"ntfy_timeout_seconds"`
}

// Escalation contains staleness thresholds for the missed check-in scanner.
type Escalation struct {
	NormalThresholdMinutes int `toml:"normal_threshold_minutes"`
	CrisisThresholdMinutes int `toml:"crisis_threshold_minutes"`
	ScanIntervalSeconds    int `toml:"scan_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for beacon.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and audio capture directories
//   - Subject: identity of the field subject running the agent
//   - Server: coordination server endpoint for the network channel
//   - SMS: fallback SMS channel settings
//   - Queue: outbound queue retry budget and flush cadence
//   - Panic: audio capture bounds for emergency sessions
//   - Coord: coordination server bind address and thresholds
//   - Escalation: missed check-in scanner thresholds per operation mode
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Subject    Subject    `toml:"subject"`
	Server     Server     `toml:"server"`
	SMS        SMS        `toml:"sms"`
	Queue      Queue      `toml:"queue"`
	Panic      Panic      `toml:"panic"`
	Coord      Coord      `toml:"coord"`
	Escalation Escalation `toml:"escalation"`
	Logging    Logging    `toml:"logging"`
}

// SampleConfig returns the annotated sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/beacon/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("beacon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for agent and server operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.AudioDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the path of the agent's durable queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "outbox.db")
}

// CoordDBPath returns the path of the coordination server database.
func (c *Config) CoordDBPath() string {
	return filepath.Join(c.Paths.DataDir, "coord.db")
}

// SocketPath returns the agent IPC socket path.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "beacond.sock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
