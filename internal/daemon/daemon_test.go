package daemon_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"streampack/internal/config"
	"streampack/internal/daemon"
	"streampack/internal/jobs"
	"streampack/internal/logging"
	"streampack/internal/workflow"
)

type idleRunner struct{}

func (idleRunner) Claim(context.Context, *jobs.Job) error { return jobs.ErrConflict }
func (idleRunner) Run(context.Context, *jobs.Job) error   { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.UploadsDir = filepath.Join(base, "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.MaxConcurrentJobs = 1
	cfg.Workflow.PollInterval = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, jobs.Store) {
	t.Helper()
	store, err := jobs.OpenFileStore(cfg.Paths.UploadsDir)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	mgr := workflow.NewManagerFromConfig(cfg, store, idleRunner{}, logging.NewNop())
	d, err := daemon.New(cfg, store, mgr, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	d, _ := newDaemon(t, cfg)
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon and workflow running, got %+v", status)
	}
	if status.Address == "" {
		t.Fatal("expected a bound address")
	}

	resp, err := http.Get("http://" + status.Address + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", resp.StatusCode, body)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testConfig(t)
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)
	t.Cleanup(func() {
		_ = first.Close()
		_ = second.Close()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonStartRecoversAndCleans(t *testing.T) {
	cfg := testConfig(t)
	cfg.Preprocess.StaleTempMaxAgeH = 1
	d, store := newDaemon(t, cfg)
	t.Cleanup(func() { _ = d.Close() })
	ctx := context.Background()

	stuck := jobs.New("stuck", "stuck.mov")
	if err := store.Create(ctx, stuck); err != nil {
		t.Fatal(err)
	}
	if err := jobs.Transition(ctx, store, stuck, (*jobs.Job).Start); err != nil {
		t.Fatal(err)
	}
	staleTemp := filepath.Join(store.Dir(stuck.ID), cfg.Preprocess.TempDirName)
	if err := os.MkdirAll(staleTemp, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(staleTemp, old, old); err != nil {
		t.Fatal(err)
	}
	orphan := filepath.Join(cfg.Paths.UploadsDir, uuid.NewString())
	if err := os.MkdirAll(orphan, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, err := store.Get(ctx, stuck.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != jobs.StatusError || got.ErrorMessage != jobs.InterruptedMessage {
		t.Fatalf("stuck job not recovered: %+v", got)
	}
	if _, err := os.Stat(staleTemp); !os.IsNotExist(err) {
		t.Fatal("stale temp directory should be removed")
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatal("orphaned job directory should be removed")
	}
	if _, err := os.Stat(store.Dir(stuck.ID)); err != nil {
		t.Fatal("recorded job directory must remain")
	}
}

func TestRunLeavesRunningInstancePIDFile(t *testing.T) {
	cfg := testConfig(t)
	first, _ := newDaemon(t, cfg)
	t.Cleanup(func() { _ = first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	pidPath := filepath.Join(cfg.Paths.LogDir, daemon.PIDFileName)
	if err := os.WriteFile(pidPath, []byte("4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := daemon.Run(context.Background(), cfg, logging.NewNop()); err == nil {
		t.Fatal("expected lock contention error")
	}
	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("pid file removed by losing instance: %v", err)
	}
	if string(data) != "4242\n" {
		t.Fatalf("pid file = %q, want running instance pid", data)
	}
}

func TestRunWritesAndRemovesPIDFile(t *testing.T) {
	cfg := testConfig(t)
	pidPath := filepath.Join(cfg.Paths.LogDir, daemon.PIDFileName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- daemon.Run(ctx, cfg, logging.NewNop()) }()

	want := strconv.Itoa(os.Getpid()) + "\n"
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(pidPath)
		if err == nil && string(data) == want {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pid file not written: %q err=%v", data, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed on exit: %v", err)
	}
}
