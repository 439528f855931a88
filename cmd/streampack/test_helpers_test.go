package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streampack/internal/config"
	"streampack/internal/jobs"
)

type cliTestEnv struct {
	baseDir    string
	uploadsDir string
	logDir     string
	configPath string
	ffmpeg     string
	ffprobe    string
}

type envOption func(*testing.T, *cliTestEnv)

// withFFprobe replaces the default ffprobe stub body.
func withFFprobe(body string) envOption {
	return func(t *testing.T, env *cliTestEnv) {
		env.ffprobe = writeStub(t, env.baseDir, "ffprobe", body)
	}
}

// withFFmpegPath points ffmpeg_binary at path without writing a stub.
func withFFmpegPath(path string) envOption {
	return func(_ *testing.T, env *cliTestEnv) {
		env.ffmpeg = path
	}
}

func setupCLITestEnv(t *testing.T, opts ...envOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	env := &cliTestEnv{
		baseDir:    base,
		uploadsDir: filepath.Join(base, "uploads"),
		logDir:     filepath.Join(base, "logs"),
		configPath: filepath.Join(base, "streampack.toml"),
	}
	env.ffmpeg = writeStub(t, base, "ffmpeg", `echo "ffmpeg version 7.1-test"`)
	env.ffprobe = writeStub(t, base, "ffprobe", `echo "ffprobe version 7.1-test"`)
	for _, opt := range opts {
		opt(t, env)
	}

	content := fmt.Sprintf(`[paths]
uploads_dir = %q
log_dir = %q

[transcoder]
ffmpeg_binary = %q
ffprobe_binary = %q

[workflow]
min_free_mib = 1

[store]
backend = "file"
`, env.uploadsDir, env.logDir, env.ffmpeg, env.ffprobe)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write %s stub: %v", name, err)
	}
	return path
}

func (env *cliTestEnv) openStore(t *testing.T) jobs.Store {
	t.Helper()
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedJob persists a job and walks it to status.
func (env *cliTestEnv) seedJob(t *testing.T, title string, status jobs.Status) *jobs.Job {
	t.Helper()
	store := env.openStore(t)
	ctx := context.Background()
	job := jobs.New(title, title+".mp4")
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if status == jobs.StatusPending {
		return job
	}
	err := jobs.Transition(ctx, store, job, func(j *jobs.Job) error {
		if err := j.Start(); err != nil {
			return err
		}
		switch status {
		case jobs.StatusDone:
			return j.Complete(jobs.LogFileName, "thumbnail.jpg", "manifest.mpd")
		case jobs.StatusError:
			return j.Fail("ffmpeg exited with status 1", jobs.LogFileName)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	return job
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
