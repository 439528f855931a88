package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"streampack/internal/jobs"
	"streampack/internal/logging"
)

// Start launches the workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		logger := m.logger.With(logging.Int("worker", i))
		go m.runWorker(runCtx, logger)
	}
	m.logger.Info("workflow started", logging.Int("workers", m.workers), logging.Duration("poll_interval", m.pollInterval))
	return nil
}

// Stop stops claiming jobs and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

func (m *Manager) runWorker(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.claimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}
		m.runJob(ctx, logger, job)
	}
}

// claimNext claims the oldest pending job. Claims are serialized so two
// workers never race for the same record.
func (m *Manager) claimNext(ctx context.Context) (*jobs.Job, error) {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()

	pending, err := m.store.List(ctx, jobs.StatusPending)
	if err != nil {
		return nil, err
	}
	for _, job := range pending {
		if err := m.runner.Claim(ctx, job); err != nil {
			if errors.Is(err, jobs.ErrConflict) || errors.Is(err, jobs.ErrInvalidTransition) {
				continue
			}
			return nil, err
		}
		return job, nil
	}
	return nil, nil
}

func (m *Manager) runJob(ctx context.Context, logger *slog.Logger, job *jobs.Job) {
	m.track(job.ID)
	logger.Info("job claimed",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
		logging.String(logging.FieldEventType, "job_claimed"),
	)
	// In-flight external processes are never cancelled by shutdown.
	err := m.runner.Run(context.WithoutCancel(ctx), job)
	m.untrack(job.ID, err)
	if err != nil {
		m.setLastError(err)
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "job_claim_failed"),
		logging.String(logging.FieldErrorHint, "check job store access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorBackoff):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}
