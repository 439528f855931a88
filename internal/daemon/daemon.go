package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"streampack/internal/api"
	"streampack/internal/config"
	"streampack/internal/jobs"
	"streampack/internal/logging"
	"streampack/internal/staging"
	"streampack/internal/workflow"
)

// Daemon coordinates background processing and the HTTP API, and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    jobs.Store
	workflow *workflow.Manager
	http     *httpServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Address      string
	StoreBackend string
	LockFilePath string
	Workflow     workflow.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store jobs.Store, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := filepath.Join(cfg.Paths.LogDir, "streampack.lock")
	handler := api.New(cfg, store, wf, logger).Handler()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		http:     newHTTPServer(cfg.Paths.APIBind, handler, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers interrupted jobs, and launches the
// workers and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another streampack daemon instance is already running")
	}

	if n, err := d.workflow.Recover(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	} else if n > 0 {
		d.logger.Info("recovered interrupted jobs", logging.Int("count", n))
	}
	d.reclaimDisk(ctx)

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.http.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("streampack daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.http.address()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// reclaimDisk drops partial uploads, stale preprocessing temp directories,
// and job directories with no record. Nothing is running yet, so no job is
// active.
func (d *Daemon) reclaimDisk(ctx context.Context) {
	uploads := d.cfg.Paths.UploadsDir
	maxAge := time.Duration(d.cfg.Preprocess.StaleTempMaxAgeH) * time.Hour

	results := []staging.CleanResult{
		staging.CleanIncoming(ctx, uploads, maxAge, d.logger),
		staging.CleanStaleTemp(ctx, uploads, d.cfg.Preprocess.TempDirName, maxAge, nil, d.logger),
	}
	if known, err := staging.KnownIDs(ctx, d.store); err != nil {
		logging.WarnWithContext(d.logger, "skipping orphan cleanup", "staging_cleanup_skipped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job store access"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	} else {
		results = append(results, staging.CleanOrphaned(ctx, uploads, known, d.logger))
	}

	removed, failed := 0, 0
	for _, res := range results {
		removed += len(res.Removed)
		failed += len(res.Errors)
	}
	if removed > 0 || failed > 0 {
		d.logger.Info("uploads cleanup finished",
			logging.Int("removed", removed),
			logging.Int("errors", failed),
			logging.String(logging.FieldEventType, "staging_cleanup_summary"),
		)
	}
}

// Stop stops the HTTP API and background processing, waiting for running
// jobs, then releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.http.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("streampack daemon stopped")
}

// Close stops the daemon and releases the job store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.http.address(),
		StoreBackend: d.cfg.Store.Backend,
		LockFilePath: d.lockPath,
		Workflow:     d.workflow.Status(),
	}
}
