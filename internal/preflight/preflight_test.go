package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streampack/internal/config"
	"streampack/internal/deps"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestFreeSpace(t *testing.T) {
	dir := t.TempDir()
	free, err := FreeBytes(dir)
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	if free == 0 {
		t.Skip("temp filesystem reports no free space")
	}

	if err := EnsureFreeSpace(dir, 1); err != nil {
		t.Fatalf("EnsureFreeSpace(1): %v", err)
	}
	if err := EnsureFreeSpace(dir, 0); err != nil {
		t.Fatalf("EnsureFreeSpace(0): %v", err)
	}
	err = EnsureFreeSpace(dir, ^uint64(0))
	if !errors.Is(err, ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}

	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure for impossible floor")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestFromDependency(t *testing.T) {
	tests := []struct {
		name   string
		status deps.Status
		passed bool
		detail string
	}{
		{"versioned", deps.Status{Name: "FFmpeg", Available: true, Version: "ffmpeg version 7.1"}, true, "ffmpeg version 7.1"},
		{"no version", deps.Status{Name: "FFmpeg", Command: "/usr/bin/ffmpeg", Available: true}, true, "/usr/bin/ffmpeg"},
		{"missing", deps.Status{Name: "FFprobe", Detail: `binary "ffprobe" not found`}, false, `binary "ffprobe" not found`},
		{"optional", deps.Status{Name: "extra", Optional: true, Detail: "gone"}, true, "gone (optional)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDependency(tt.status)
			if got.Passed != tt.passed || got.Detail != tt.detail {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestRunAllReportsMissingBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.UploadsDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Workflow.MinFreeMiB = 0
	cfg.Transcoder.FFmpegBinary = "streampack-missing-ffmpeg"
	cfg.Transcoder.FFprobeBinary = "streampack-missing-ffprobe"

	results := RunAll(context.Background(), &cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	failed := Failed(results)
	if len(failed) != 2 {
		t.Fatalf("expected 2 failures, got %+v", failed)
	}
	if failed[0].Name != "FFmpeg" || failed[1].Name != "FFprobe" {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestCheckEventsDisabled(t *testing.T) {
	result := CheckEvents(context.Background(), config.Events{Backend: config.EventsNone})
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckEventsUnreachableKafka(t *testing.T) {
	result := CheckEvents(context.Background(), config.Events{
		Backend:      config.EventsKafka,
		KafkaBrokers: []string{"127.0.0.1:1"},
		KafkaTopic:   "jobs",
	})
	if result.Passed {
		t.Fatalf("expected unreachable broker to fail, got %+v", result)
	}
}
