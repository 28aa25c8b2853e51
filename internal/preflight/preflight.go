// Package preflight verifies agent prerequisites before a run: directory
// access, free space for audio capture, and coordination server reachability.
package preflight

import (
	"context"

	"beacon/internal/config"
)

// Result captures the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Audio directory", cfg.Paths.AudioDir),
		CheckFreeSpace("Audio capture space", cfg.Paths.AudioDir, uint64(cfg.Panic.AudioMinFreeMB)),
	}
	if cfg.Server.BaseURL != "" {
		results = append(results, CheckServer(ctx, cfg.Server.BaseURL))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
