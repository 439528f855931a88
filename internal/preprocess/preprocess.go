// Package preprocess strips auxiliary data tracks that break DASH packaging.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"streampack/internal/config"
	"streampack/internal/logging"
	"streampack/internal/media/ffprobe"
	"streampack/internal/metrics"
)

const (
	cleanedPrefix = "cleaned_"
	// DebugPrefix marks retained preprocessing copies that are never removed.
	DebugPrefix = "debug_preprocessed_"
)

// Remuxer produces a copy of input holding only the primary video and audio.
type Remuxer interface {
	Remux(ctx context.Context, input, output string, preserveMetadata bool) error
}

// Options configure a Preprocessor.
type Options struct {
	FFprobeBinary    string
	ProblematicTags  []string
	TempDirName      string
	RetainDebugCopy  bool
	PreserveMetadata bool
	Disabled         bool
}

// OptionsFromConfig extracts preprocessing options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FFprobeBinary:    cfg.FFprobeBinary(),
		ProblematicTags:  cfg.Preprocess.ProblematicTags,
		TempDirName:      cfg.Preprocess.TempDirName,
		RetainDebugCopy:  cfg.Preprocess.RetainDebugCopy,
		PreserveMetadata: cfg.Transcoder.PreserveMetadataOnCopy,
		Disabled:         !cfg.Preprocess.Enabled,
	}
}

// Result is the outcome of EnsureClean. Temporary is set when Path is a
// preprocessing artifact that Cleanup should remove.
type Result struct {
	Path      string
	Temporary bool
	Stripped  []string
	// Reason explains a fallback to the original path.
	Reason string
}

// Preprocessor decides whether a source needs its data tracks removed.
type Preprocessor struct {
	opts   Options
	remux  Remuxer
	logger *slog.Logger
}

// New constructs a Preprocessor.
func New(opts Options, remux Remuxer, logger *slog.Logger) *Preprocessor {
	if strings.TrimSpace(opts.TempDirName) == "" {
		opts.TempDirName = "temp"
	}
	if len(opts.ProblematicTags) == 0 {
		opts.ProblematicTags = []string{"mebx"}
	}
	return &Preprocessor{
		opts:   opts,
		remux:  remux,
		logger: logging.NewComponentLogger(logger, "preprocess"),
	}
}

// EnsureClean returns a path safe to package. The original path comes back
// unchanged when no problematic stream exists and whenever inspection or the
// remux fails. Failures are logged, never returned.
func (p *Preprocessor) EnsureClean(ctx context.Context, path string) Result {
	logger := logging.WithContext(ctx, p.logger)
	original := Result{Path: path}
	if p.opts.Disabled {
		return original
	}

	result, err := ffprobe.Inspect(ctx, p.opts.FFprobeBinary, path, ffprobe.WithoutFormat())
	if err != nil {
		metrics.PreprocessTotal.WithLabelValues("fallback").Inc()
		logging.WarnWithContext(logger, "stream inspection failed; using original", "preprocess_inspect_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that ffprobe can read the upload"),
			logging.String(logging.FieldImpact, "data tracks are not stripped"),
		)
		original.Reason = fmt.Sprintf("inspect: %v", err)
		return original
	}

	offending := p.problematicStreams(result)
	if len(offending) == 0 {
		metrics.PreprocessTotal.WithLabelValues("clean").Inc()
		return original
	}

	target, temporary, err := p.targetPath(path)
	if err != nil {
		metrics.PreprocessTotal.WithLabelValues("fallback").Inc()
		logging.WarnWithContext(logger, "cannot prepare preprocessing output; using original", "preprocess_prepare_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the job directory"),
			logging.String(logging.FieldImpact, "data tracks are not stripped"),
		)
		original.Reason = err.Error()
		return original
	}

	logger.Info("stripping data tracks",
		logging.String("path", path),
		logging.String("output", target),
		logging.String("tracks", strings.Join(offending, ",")),
	)
	if err := p.remux.Remux(ctx, path, target, p.opts.PreserveMetadata); err != nil {
		metrics.PreprocessTotal.WithLabelValues("fallback").Inc()
		if temporary {
			_ = os.Remove(target)
		}
		logging.WarnWithContext(logger, "data track removal failed; using original", "preprocess_remux_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the upload with ffprobe -show_streams"),
			logging.String(logging.FieldImpact, "packaging runs against the unmodified upload"),
		)
		original.Reason = fmt.Sprintf("remux: %v", err)
		return original
	}

	metrics.PreprocessTotal.WithLabelValues("stripped").Inc()
	return Result{Path: target, Temporary: temporary, Stripped: offending}
}

// Cleanup removes a temporary preprocessing artifact and attempts to remove
// its directory. A non-empty directory is left in place.
func (p *Preprocessor) Cleanup(res Result) error {
	if !res.Temporary || res.Path == "" {
		return nil
	}
	if err := os.Remove(res.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove preprocessing output: %w", err)
	}
	dir := filepath.Dir(res.Path)
	if filepath.Base(dir) == p.opts.TempDirName {
		_ = os.Remove(dir)
	}
	return nil
}

func (p *Preprocessor) problematicStreams(result ffprobe.Result) []string {
	var offending []string
	for _, stream := range result.DataStreams() {
		tag := strings.ToLower(strings.TrimSpace(stream.CodecTag))
		if slices.Contains(p.opts.ProblematicTags, tag) {
			offending = append(offending, fmt.Sprintf("%d:%s", stream.Index, tag))
		}
	}
	return offending
}

func (p *Preprocessor) targetPath(path string) (string, bool, error) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if p.opts.RetainDebugCopy {
		return filepath.Join(dir, DebugPrefix+name), false, nil
	}
	tempDir := filepath.Join(dir, p.opts.TempDirName)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create temp dir: %w", err)
	}
	return filepath.Join(tempDir, cleanedPrefix+name), true, nil
}
