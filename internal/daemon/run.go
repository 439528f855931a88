package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"streampack/internal/config"
	"streampack/internal/events"
	"streampack/internal/jobs"
	"streampack/internal/logging"
	"streampack/internal/pipeline"
	"streampack/internal/preflight"
	"streampack/internal/workflow"
)

// PIDFileName is written under the log directory while the daemon runs.
const PIDFileName = "streampack.pid"

// Run starts the daemon and blocks until SIGINT/SIGTERM or ctx is cancelled.
// Running jobs finish before Run returns.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logPreflight(signalCtx, logger, cfg)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	raw, err := events.New(cfg.Events)
	if err != nil {
		_ = store.Close()
		return err
	}
	publisher := events.NewLogged(raw, cfg.Events.Backend, logger)
	defer publisher.Close()

	orchestrator, err := pipeline.NewFromConfig(cfg, store, publisher, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build pipeline: %w", err)
	}
	logger.Info("ladder policy selected", logging.String("policy", orchestrator.Policy().String()))

	manager := workflow.NewManagerFromConfig(cfg, store, orchestrator, logger)
	d, err := New(cfg, store, manager, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check api_bind, the lock file, and job store access"),
		)
		return err
	}

	// Only the lock holder owns the PID file.
	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		logging.WarnWithContext(logger, "failed to write pid file", "pid_file_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
		)
	} else {
		defer os.Remove(pidPath)
	}

	<-signalCtx.Done()
	logger.Info("streampack daemon shutting down; waiting for running jobs")
	return nil
}

// logPreflight records readiness checks. Failures are logged, not fatal: a
// missing ffmpeg fails jobs with a clear message rather than blocking uploads.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run streampack doctor"),
			logging.String(logging.FieldImpact, "jobs may fail until resolved"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
