package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"streampack/internal/config"
	"streampack/internal/jobs"
	"streampack/internal/logging"
)

// Runner claims and executes jobs. pipeline.Orchestrator satisfies it.
type Runner interface {
	Claim(ctx context.Context, job *jobs.Job) error
	Run(ctx context.Context, job *jobs.Job) error
}

// Manager coordinates background job execution.
type Manager struct {
	store        jobs.Store
	runner       Runner
	logger       *slog.Logger
	workers      int
	pollInterval time.Duration
	errorBackoff time.Duration

	claimMu sync.Mutex
	wake    chan struct{}

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[string]time.Time
	lastErr error
	done    int
	failed  int
}

// NewManager constructs a manager with workers goroutines.
func NewManager(store jobs.Store, runner Runner, workers int, pollInterval time.Duration, logger *slog.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Manager{
		store:        store,
		runner:       runner,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		workers:      workers,
		pollInterval: pollInterval,
		errorBackoff: pollInterval,
		wake:         make(chan struct{}, workers),
		active:       make(map[string]time.Time),
	}
}

// NewManagerFromConfig sizes the manager from the workflow section.
func NewManagerFromConfig(cfg *config.Config, store jobs.Store, runner Runner, logger *slog.Logger) *Manager {
	return NewManager(store, runner, cfg.Workflow.MaxConcurrentJobs, cfg.PollInterval(), logger)
}

// Recover fails jobs left processing by a previous run.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	recovered, err := jobs.RecoverInterrupted(ctx, m.store)
	for _, job := range recovered {
		logging.WarnWithContext(m.logger, "job interrupted by restart marked failed", "job_recovered",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldErrorHint, "re-upload the video to retry"),
			logging.String(logging.FieldImpact, "job will not complete"),
		)
	}
	return len(recovered), err
}

// Notify wakes idle workers so a new upload starts without waiting for a poll.
func (m *Manager) Notify() {
	for i := 0; i < m.workers; i++ {
		select {
		case m.wake <- struct{}{}:
		default:
			return
		}
	}
}

// Status summarizes manager state.
type Status struct {
	Running    bool
	Workers    int
	ActiveJobs []string
	Done       int
	Failed     int
	LastError  string
}

// Status returns a snapshot of manager state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	status := Status{
		Running:    m.running,
		Workers:    m.workers,
		ActiveJobs: ids,
		Done:       m.done,
		Failed:     m.failed,
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) track(id string) {
	m.mu.Lock()
	m.active[id] = time.Now()
	m.mu.Unlock()
}

func (m *Manager) untrack(id string, err error) {
	m.mu.Lock()
	delete(m.active, id)
	if err != nil {
		m.failed++
	} else {
		m.done++
	}
	m.mu.Unlock()
}

var errAlreadyRunning = errors.New("workflow already running")
