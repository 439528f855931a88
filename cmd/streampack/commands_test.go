package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streampack/internal/jobs"
	"streampack/internal/ladder"
	"streampack/internal/pipeline"
)

func TestLadderCommandTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"ladder", "3840", "2160"}, env.configPath)
	if err != nil {
		t.Fatalf("ladder: %v", err)
	}
	requireContains(t, out,
		"extended/v2",
		"3840x2160",
		"2560x1440",
		"1920x1080",
		"1280x720",
		"640x360",
		"12 Mbps",
		"192 kbps",
	)
	if strings.Contains(out, "426x240") {
		t.Fatalf("tier below the floor rendered:\n%s", out)
	}
}

func TestLadderCommandRotationJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"ladder", "1920", "1080", "--rotation", "90", "--policy", "basic", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("ladder: %v", err)
	}
	var got ladderOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.Policy != "basic/v1" {
		t.Fatalf("policy = %q, want basic/v1", got.Policy)
	}
	if got.DisplayWidth != 1080 || got.DisplayHeight != 1920 || got.RotationDegrees != 90 {
		t.Fatalf("unexpected geometry: %+v", got)
	}
	if len(got.Representations) == 0 {
		t.Fatal("empty ladder")
	}
	top := got.Representations[0]
	if top.Width != 1080 || top.Height != 1920 {
		t.Fatalf("top rendition = %dx%d, want 1080x1920", top.Width, top.Height)
	}
	for _, rep := range got.Representations {
		if rep.Width%2 != 0 || rep.Height%2 != 0 {
			t.Fatalf("odd dimensions in %+v", rep)
		}
		if rep.Height <= rep.Width {
			t.Fatalf("portrait source produced landscape rendition %+v", rep)
		}
	}
}

func TestLadderCommandArgs(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"ladder", "1920"}, env.configPath); err == nil {
		t.Fatal("expected error for a single dimension")
	}
	if _, _, err := runCLI(t, []string{"ladder", "wide", "1080"}, env.configPath); err == nil {
		t.Fatal("expected error for a non-numeric width")
	}
	if _, _, err := runCLI(t, []string{"ladder", "0", "1080"}, env.configPath); err == nil {
		t.Fatal("expected error for a zero width")
	}
}

func TestProbeCommand(t *testing.T) {
	env := setupCLITestEnv(t, withFFprobe(`cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","width":1080,"height":1920,"side_data_list":[{"side_data_type":"Display Matrix","rotation":-90}]}]}
JSON`))

	out, _, err := runCLI(t, []string{"probe", "/tmp/phone.mov", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	var got probeOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.DisplayWidth != 1920 || got.DisplayHeight != 1080 || got.RotationDegrees != 270 {
		t.Fatalf("unexpected probe output: %+v", got)
	}
	if got.AspectRatio != "16/9" {
		t.Fatalf("aspect = %q, want 16/9", got.AspectRatio)
	}

	out, _, err = runCLI(t, []string{"probe", "/tmp/phone.mov"}, env.configPath)
	if err != nil {
		t.Fatalf("probe table: %v", err)
	}
	requireContains(t, out, "1080x1920", "1920x1080", "270", "16/9")
}

func TestJobsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	done := env.seedJob(t, "Alpha", jobs.StatusDone)
	failed := env.seedJob(t, "Beta", jobs.StatusError)
	env.seedJob(t, "Gamma", jobs.StatusPending)

	out, _, err := runCLI(t, []string{"jobs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "Alpha", "Beta", "Gamma", "Done", "Error", "Pending", "3 jobs")

	out, _, err = runCLI(t, []string{"jobs", "list", "--status", "error", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list --status error: %v", err)
	}
	var listed []jobs.Job
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(listed) != 1 || listed[0].ID != failed.ID {
		t.Fatalf("status filter returned %+v", listed)
	}

	if _, _, err := runCLI(t, []string{"jobs", "list", "--status", "queued"}, env.configPath); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	out, _, err = runCLI(t, []string{"jobs", "show", done.ID}, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "== Alpha ==", done.ID, "[OK] Done", "manifest.mpd")

	logPath := filepath.Join(env.uploadsDir, failed.ID, jobs.LogFileName)
	if err := os.WriteFile(logPath, []byte("Error during DASH conversion: boom\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err = runCLI(t, []string{"jobs", "show", failed.ID, "--log"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs show --log: %v", err)
	}
	requireContains(t, out, "[ERROR] ffmpeg exited with status 1", "Processing log", "Error during DASH conversion: boom")
}

func TestJobsListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"jobs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "No jobs found")

	out, _, err = runCLI(t, []string{"jobs", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list --json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}
}

func TestJobsShowUnknown(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"jobs", "show", "../etc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
	_, _, err := runCLI(t, []string{"jobs", "show", "6f1c1a52-0a4e-4f5e-9a55-2f0d3c1b7e11"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), jobs.ErrNotFound.Error()) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStorageCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	job := env.seedJob(t, "Alpha", jobs.StatusDone)
	if err := os.WriteFile(filepath.Join(env.uploadsDir, job.ID, "manifest.mpd"), make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	out, _, err := runCLI(t, []string{"storage"}, env.configPath)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	requireContains(t, out, job.ID, "1 directories", "Free space:")
}

func TestDoctorPassesWithStubbedTools(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "== Environment ==", "[OK] ffmpeg version 7.1-test", "All checks passed")
}

func TestDoctorReportsMissingFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t, withFFmpegPath("/nonexistent/ffmpeg"))

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatalf("expected doctor to fail:\n%s", out)
	}
	requireContains(t, out, "[ERROR]")
	if !strings.Contains(err.Error(), "checks failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProcessRecordsFailure(t *testing.T) {
	env := setupCLITestEnv(t, withFFprobe(`echo "phone.mov: Invalid data found when processing input" >&2; exit 1`))
	source := filepath.Join(env.baseDir, "phone.mov")
	if err := os.WriteFile(source, []byte("not a video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, _, err := runCLI(t, []string{"process", source, "--title", "Holiday"}, env.configPath)
	if err == nil {
		t.Fatalf("expected process to fail:\n%s", out)
	}
	requireContains(t, out, "[ERROR] Error", "processing.log")

	list, listErr := env.openStore(t).List(t.Context())
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(list) != 1 {
		t.Fatalf("expected one job, got %d", len(list))
	}
	job := list[0]
	if job.Status != jobs.StatusError || job.Title != "Holiday" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if _, err := os.Stat(filepath.Join(env.uploadsDir, job.ID, job.OriginalName())); err != nil {
		t.Fatalf("source not staged in job dir: %v", err)
	}
}

func TestClaimLocalYieldsToDaemon(t *testing.T) {
	store, err := jobs.OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	ctx := t.Context()
	job := jobs.New("Clip", "clip.mov")
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	orch := pipeline.New(store, nil, nil, nil, ladder.Basic(), nil, pipeline.Options{}, nil)

	daemonCopy, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := jobs.Transition(ctx, store, daemonCopy, (*jobs.Job).Start); err != nil {
		t.Fatalf("daemon claim: %v", err)
	}

	claimed, err := claimLocal(ctx, orch, job)
	if err != nil {
		t.Fatalf("claimLocal: %v", err)
	}
	if claimed {
		t.Fatal("expected the daemon to own the job")
	}
	if job.Status != jobs.StatusPending {
		t.Fatalf("local copy status = %s, want unchanged pending", job.Status)
	}

	fresh := jobs.New("Other", "other.mov")
	if err := store.Create(ctx, fresh); err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err = claimLocal(ctx, orch, fresh)
	if err != nil || !claimed {
		t.Fatalf("claimLocal fresh = %v, %v", claimed, err)
	}
	if fresh.Status != jobs.StatusProcessing {
		t.Fatalf("fresh status = %s", fresh.Status)
	}
}

func TestProcessRejectsUnsupportedExtension(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(env.baseDir, "clip.avi")
	if err := os.WriteFile(source, []byte("x"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if _, _, err := runCLI(t, []string{"process", source}, env.configPath); err == nil {
		t.Fatal("expected unsupported extension to fail")
	}
}

func TestLogsCommandJobLog(t *testing.T) {
	env := setupCLITestEnv(t)
	job := env.seedJob(t, "Alpha", jobs.StatusError)
	logPath := filepath.Join(env.uploadsDir, job.ID, jobs.LogFileName)
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--job", job.ID, "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected output %q", out)
	}

	if _, _, err := runCLI(t, []string{"logs", "--job", "nope"}, env.configPath); err == nil {
		t.Fatal("expected invalid job id to fail")
	}
}
