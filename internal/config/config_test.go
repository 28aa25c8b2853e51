package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"beacon/internal/config"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Queue.MaxAttempts != 3 {
		t.Fatalf("unexpected default max attempts: %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Escalation.CrisisThresholdMinutes > cfg.Escalation.NormalThresholdMinutes {
		t.Fatal("crisis threshold must not exceed normal threshold")
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[subject]
id = " subject-1 "
country = "de"

[server]
base_url = "https://coord.example.org/"

[queue]
max_attempts = 5
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Subject.ID != "subject-1" {
		t.Fatalf("subject id not trimmed: %q", cfg.Subject.ID)
	}
	if cfg.Subject.Country != "DE" {
		t.Fatalf("country not uppercased: %q", cfg.Subject.Country)
	}
	if cfg.Server.BaseURL != "https://coord.example.org" {
		t.Fatalf("base url not trimmed: %q", cfg.Server.BaseURL)
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Fatalf("queue override ignored: %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Queue.FlushIntervalSeconds != 30 {
		t.Fatalf("expected default flush interval, got %d", cfg.Queue.FlushIntervalSeconds)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		want     string
	}{
		{
			name:     "bad server url",
			contents: "[server]\nbase_url = \"not a url\"\n",
			want:     "server.base_url",
		},
		{
			name:     "sms without recipient",
			contents: "[sms]\nenabled = true\n",
			want:     "sms.recipient",
		},
		{
			name:     "inverted thresholds",
			contents: "[escalation]\nnormal_threshold_minutes = 10\ncrisis_threshold_minutes = 60\n",
			want:     "crisis_threshold_minutes",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.contents), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.AudioDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}
