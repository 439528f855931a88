package preflight

import (
	"context"

	"streampack/internal/config"
	"streampack/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Uploads directory", cfg.Paths.UploadsDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckFreeSpace("Uploads free space", cfg.Paths.UploadsDir, MinFreeBytes(cfg)))

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, FromDependency(status))
	}

	if cfg.Events.Backend != config.EventsNone {
		results = append(results, CheckEvents(ctx, cfg.Events))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the doctor command use this.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, deps.MediaRequirements(cfg))
}

// FromDependency converts a binary status into a preflight result.
func FromDependency(status deps.Status) Result {
	result := Result{Name: status.Name, Passed: status.Available || status.Optional}
	switch {
	case status.Available && status.Version != "":
		result.Detail = status.Version
	case status.Available:
		result.Detail = status.Command
	default:
		result.Detail = status.Detail
	}
	if !status.Available && status.Optional {
		result.Detail += " (optional)"
	}
	return result
}

// MinFreeBytes converts the configured free-space floor to bytes.
func MinFreeBytes(cfg *config.Config) uint64 {
	if cfg.Workflow.MinFreeMiB <= 0 {
		return 0
	}
	return uint64(cfg.Workflow.MinFreeMiB) << 20
}
