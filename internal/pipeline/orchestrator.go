package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"streampack/internal/config"
	"streampack/internal/events"
	"streampack/internal/jobs"
	"streampack/internal/ladder"
	"streampack/internal/logging"
	"streampack/internal/metrics"
	"streampack/internal/preprocess"
	"streampack/internal/probe"
	"streampack/internal/thumbnail"
	"streampack/internal/transcoder"
)

const debugMP4Name = "debug_converted.mp4"

// Cleaner is the preprocessing capability.
type Cleaner interface {
	EnsureClean(ctx context.Context, path string) preprocess.Result
	Cleanup(res preprocess.Result) error
}

// Prober reads source geometry.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.VideoProperties, error)
}

// MediaTool produces the thumbnail and package.
type MediaTool interface {
	Thumbnail(ctx context.Context, input, output, offset string) error
	Package(ctx context.Context, input, outputDir string, l ladder.Ladder) (string, error)
	DebugMP4(ctx context.Context, input, output string) error
}

// Options tune the orchestrator.
type Options struct {
	ThumbnailOffset   string
	ThumbnailMaxWidth int
	TempDirName       string
	DebugMP4          bool
}

// OptionsFromConfig extracts orchestrator options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ThumbnailOffset:   cfg.Transcoder.ThumbnailOffset,
		ThumbnailMaxWidth: cfg.Transcoder.ThumbnailMaxWidth,
		TempDirName:       cfg.Preprocess.TempDirName,
		DebugMP4:          cfg.Debug.ConvertMP4,
	}
}

// Orchestrator is the sole driver of job transitions after creation.
type Orchestrator struct {
	store     jobs.Store
	cleaner   Cleaner
	prober    Prober
	media     MediaTool
	policy    ladder.Policy
	publisher events.Publisher
	opts      Options
	logger    *slog.Logger
}

// New constructs an Orchestrator. A nil publisher discards events.
func New(store jobs.Store, cleaner Cleaner, prober Prober, media MediaTool, policy ladder.Policy, publisher events.Publisher, opts Options, logger *slog.Logger) *Orchestrator {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.TempDirName == "" {
		opts.TempDirName = "temp"
	}
	return &Orchestrator{
		store:     store,
		cleaner:   cleaner,
		prober:    prober,
		media:     media,
		policy:    policy,
		publisher: publisher,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// NewFromConfig wires the default collaborators from configuration.
func NewFromConfig(cfg *config.Config, store jobs.Store, publisher events.Publisher, logger *slog.Logger) (*Orchestrator, error) {
	policy, err := ladder.FromConfig(cfg.Ladder)
	if err != nil {
		return nil, err
	}
	tool := transcoder.New(transcoder.OptionsFromConfig(cfg), logger)
	cleaner := preprocess.New(preprocess.OptionsFromConfig(cfg), tool, logger)
	prober := probe.New(cfg.FFprobeBinary(), logger)
	return New(store, cleaner, prober, tool, policy, publisher, OptionsFromConfig(cfg), logger), nil
}

// Policy returns the ladder policy in use.
func (o *Orchestrator) Policy() ladder.Policy {
	return o.policy
}

// Claim persists pending -> processing.
func (o *Orchestrator) Claim(ctx context.Context, job *jobs.Job) error {
	return o.transition(ctx, job, (*jobs.Job).Start)
}

// Process claims a pending job and runs it to a terminal state.
func (o *Orchestrator) Process(ctx context.Context, job *jobs.Job) error {
	if err := o.Claim(ctx, job); err != nil {
		return err
	}
	return o.Run(ctx, job)
}

// Run executes a processing job. The returned error is the step failure that
// put the job into error, or a persistence failure.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.Job) error {
	if job.Status != jobs.StatusProcessing {
		return fmt.Errorf("%w: run requires %s, job is %s", jobs.ErrInvalidTransition, jobs.StatusProcessing, job.Status)
	}
	ctx = logging.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)
	dir := o.store.Dir(job.ID)
	plog := NewProcessingLog(filepath.Join(dir, jobs.LogFileName))

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()
	started := time.Now()
	logger.Info("processing job", logging.String("title", job.Title), logging.String("source", job.SourceName))
	o.note(logger, plog, "Processing %q (%s) started at %s", job.Title, job.ID, started.UTC().Format(time.RFC3339))

	thumbRef, manifestRef, stepErr := o.steps(ctx, logger, plog, job, dir)
	if stepErr != nil {
		message := FailureMessage(stepErr)
		o.note(logger, plog, "\nError during DASH conversion: %s", message)
		if err := o.transition(ctx, job, func(j *jobs.Job) error { return j.Fail(message, jobs.LogFileName) }); err != nil {
			return errors.Join(stepErr, err)
		}
		metrics.ObserveJob(string(jobs.StatusError), started)
		logger.Error("job failed",
			logging.String("failure_kind", FailureKind(stepErr)),
			logging.Error(stepErr),
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, "see "+plog.Path()),
		)
		return stepErr
	}

	if err := o.transition(ctx, job, func(j *jobs.Job) error {
		return j.Complete(jobs.LogFileName, thumbRef, manifestRef)
	}); err != nil {
		return err
	}
	metrics.ObserveJob(string(jobs.StatusDone), started)
	logger.Info("job done",
		logging.String("manifest", manifestRef),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "job_done"),
	)
	return nil
}

func (o *Orchestrator) steps(ctx context.Context, logger *slog.Logger, plog *ProcessingLog, job *jobs.Job, dir string) (string, string, error) {
	original := filepath.Join(dir, job.OriginalName())
	if _, err := os.Stat(original); err != nil {
		return "", "", fmt.Errorf("source upload missing: %w", err)
	}

	// A: preprocessing never fails the job.
	stepLogger := logging.WithContext(logging.WithStep(ctx, "preprocess"), o.logger)
	o.note(stepLogger, plog, "Checking streams of %s...", filepath.Base(original))
	clean := o.cleaner.EnsureClean(ctx, original)
	defer o.cleanup(stepLogger, clean, dir)
	switch {
	case len(clean.Stripped) > 0:
		o.note(stepLogger, plog, "Stripped data tracks %v into %s", clean.Stripped, filepath.Base(clean.Path))
	case clean.Reason != "":
		o.note(stepLogger, plog, "Preprocessing skipped, using original: %s", clean.Reason)
	default:
		o.note(stepLogger, plog, "No problematic streams found")
	}

	// B
	o.note(logger, plog, "Probing %s...", filepath.Base(clean.Path))
	props, err := o.prober.Probe(ctx, clean.Path)
	if err != nil {
		return "", "", err
	}
	o.note(logger, plog, "Video properties: physical %dx%d, rotation %d, display %dx%d (AR: %s)",
		props.PhysicalWidth, props.PhysicalHeight, props.RotationDegrees,
		props.DisplayWidth, props.DisplayHeight, props.AspectRatio().RatString())

	// C
	reps := o.policy.Generate(props.DisplayWidth, props.DisplayHeight, props.AspectRatio())
	if limited := o.policy.ForRotation(props.RotationDegrees, reps); len(limited) != len(reps) {
		o.note(logger, plog, "Rotated source: limiting ladder to top %d of %d representations", len(limited), len(reps))
		reps = limited
	}
	if len(reps) == 0 {
		return "", "", errors.New("ladder generation produced no representations")
	}
	metrics.LadderRepresentations.Observe(float64(len(reps)))
	o.note(logger, plog, "Ladder policy %s: %s", o.policy, reps)

	// D
	thumbPath := filepath.Join(dir, jobs.ThumbnailFileName)
	o.note(logger, plog, "Extracting thumbnail at %s...", o.opts.ThumbnailOffset)
	if err := o.media.Thumbnail(ctx, clean.Path, thumbPath, o.opts.ThumbnailOffset); err != nil {
		o.note(logger, plog, "Thumbnail extraction failed")
		return "", "", packagingError("thumbnail", err)
	}
	thumbRef := jobs.ThumbnailFileName
	if info, err := thumbnail.Normalize(thumbPath, o.opts.ThumbnailMaxWidth); errors.Is(err, fs.ErrNotExist) {
		// Clips shorter than the offset yield no frame.
		thumbRef = ""
		o.note(logger, plog, "No thumbnail frame at %s, continuing without thumbnail", o.opts.ThumbnailOffset)
		logging.WarnWithContext(logger, "thumbnail frame not written", "thumbnail_missing",
			logging.String(logging.FieldErrorHint, "lower transcoder.thumbnail_offset for short clips"),
			logging.String(logging.FieldImpact, "job has no thumbnail"),
		)
	} else if err != nil {
		logging.WarnWithContext(logger, "thumbnail post-processing failed; keeping raw frame", "thumbnail_normalize_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect thumbnail.jpg"),
			logging.String(logging.FieldImpact, "thumbnail keeps source size"),
		)
	} else {
		o.note(logger, plog, "Thumbnail written: %s (%dx%d)", jobs.ThumbnailFileName, info.Width, info.Height)
	}

	o.note(logger, plog, "Starting DASH packaging of %d representations...", len(reps))
	manifest, err := o.media.Package(ctx, clean.Path, dir, reps)
	if err != nil {
		o.note(logger, plog, "DASH packaging failed")
		return "", "", packagingError("dash", err)
	}
	o.note(logger, plog, "DASH packaging completed")

	if o.opts.DebugMP4 {
		o.note(logger, plog, "Creating debug MP4...")
		if err := o.media.DebugMP4(ctx, clean.Path, filepath.Join(dir, debugMP4Name)); err != nil {
			o.note(logger, plog, "Debug MP4 failed: %s", FailureMessage(err))
		} else {
			o.note(logger, plog, "Debug MP4 written: %s", debugMP4Name)
		}
	}

	o.summary(logger, plog, job, dir, props, reps)
	return thumbRef, filepath.Base(manifest), nil
}

func (o *Orchestrator) summary(logger *slog.Logger, plog *ProcessingLog, job *jobs.Job, dir string, props probe.VideoProperties, reps ladder.Ladder) {
	lines := []string{
		"",
		fmt.Sprintf("DASH files generated from %s:", job.OriginalName()),
		fmt.Sprintf("Source: %dx%d (AR: %s)", props.DisplayWidth, props.DisplayHeight, props.AspectRatio().RatString()),
		"Representations:",
	}
	for _, rep := range reps {
		lines = append(lines, "  "+rep.String())
	}
	lines = append(lines, "Generated files:")
	entries, err := os.ReadDir(dir)
	if err == nil {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || entry.Name() == jobs.MetaFileName || entry.Name()[0] == '.' {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, "  "+name)
		}
	}
	if err := plog.Lines(lines...); err != nil {
		logger.Warn("processing log write failed", logging.Error(err))
	}
}

func (o *Orchestrator) cleanup(logger *slog.Logger, clean preprocess.Result, dir string) {
	if err := o.cleaner.Cleanup(clean); err != nil {
		logger.Warn("preprocessing cleanup failed", logging.Error(err))
	}
	// Non-empty directories stay.
	_ = os.Remove(filepath.Join(dir, o.opts.TempDirName))
}

// note writes a progress line to the processing log and mirrors it at debug level.
func (o *Orchestrator) note(logger *slog.Logger, plog *ProcessingLog, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	logger.Debug(line)
	if err := plog.Lines(line); err != nil {
		logger.Warn("processing log write failed", logging.Error(err))
	}
}

func (o *Orchestrator) transition(ctx context.Context, job *jobs.Job, apply func(*jobs.Job) error) error {
	if err := jobs.Transition(ctx, o.store, job, apply); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}
	_ = o.publisher.Publish(ctx, events.FromJob(job))
	return nil
}
