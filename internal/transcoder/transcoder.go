package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"streampack/internal/config"
	"streampack/internal/ladder"
	"streampack/internal/logging"
	"streampack/internal/metrics"
)

const (
	// ManifestName is the DASH manifest file name inside a package directory.
	ManifestName = "video.mpd"
	// InitSegmentTemplate names the per-representation initialization segment.
	InitSegmentTemplate = "init-$RepresentationID$.$ext$"
	// MediaSegmentTemplate names numbered media segments.
	MediaSegmentTemplate = "chunk-$RepresentationID$-$Number%05d$.$ext$"

	toolName = "ffmpeg"
)

// Options tune the ffmpeg invocations.
type Options struct {
	Binary         string
	VideoCodec     string
	AudioCodec     string
	Preset         string
	SegmentSeconds int
	Timeout        time.Duration
}

// OptionsFromConfig extracts transcoder options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Binary:         cfg.FFmpegBinary(),
		VideoCodec:     cfg.Transcoder.VideoCodec,
		AudioCodec:     cfg.Transcoder.AudioCodec,
		Preset:         cfg.Transcoder.Preset,
		SegmentSeconds: cfg.Transcoder.SegmentSeconds,
		Timeout:        cfg.CommandTimeout(),
	}
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Binary) == "" {
		o.Binary = "ffmpeg"
	}
	if strings.TrimSpace(o.VideoCodec) == "" {
		o.VideoCodec = "libx264"
	}
	if strings.TrimSpace(o.AudioCodec) == "" {
		o.AudioCodec = "aac"
	}
	if o.SegmentSeconds <= 0 {
		o.SegmentSeconds = 4
	}
	return o
}

// Transcoder runs ffmpeg.
type Transcoder struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a Transcoder.
func New(opts Options, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(logger, "transcoder"),
	}
}

// Thumbnail writes one frame taken offset into input to output.
func (t *Transcoder) Thumbnail(ctx context.Context, input, output, offset string) error {
	if strings.TrimSpace(offset) == "" {
		offset = "00:00:01"
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-ss", offset, "-i", input, "-frames:v", "1", "-q:v", "2", output}
	return t.run(ctx, "thumbnail", args)
}

// Remux stream-copies the first video track and, when present, the first
// audio track of input into output, dropping every other stream.
func (t *Transcoder) Remux(ctx context.Context, input, output string, preserveMetadata bool) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input,
		"-map", "0:v:0", "-map", "0:a:0?", "-c", "copy"}
	if preserveMetadata {
		args = append(args, "-map_metadata", "0")
	}
	args = append(args, output)
	return t.run(ctx, "remux", args)
}

// Package encodes input once per ladder entry and writes a DASH package into
// outputDir. It returns the manifest path.
func (t *Transcoder) Package(ctx context.Context, input, outputDir string, l ladder.Ladder) (string, error) {
	if len(l) == 0 {
		return "", errors.New("package: empty ladder")
	}
	manifest := filepath.Join(outputDir, ManifestName)
	if err := t.run(ctx, "package", PackageArgs(t.opts, input, manifest, l)); err != nil {
		return "", err
	}
	if _, err := os.Stat(manifest); err != nil {
		return "", &ToolError{Tool: toolName, Operation: "package", Err: fmt.Errorf("manifest not written: %w", err)}
	}
	return manifest, nil
}

// DebugMP4 transcodes input into a single MP4 for side-by-side comparison.
func (t *Transcoder) DebugMP4(ctx context.Context, input, output string) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input,
		"-c:v", t.opts.VideoCodec, "-preset", presetOr(t.opts.Preset), "-crf", "23",
		"-c:a", t.opts.AudioCodec, "-b:a", "128k", output}
	return t.run(ctx, "debug_mp4", args)
}

// PackageArgs builds the ffmpeg argument list for a DASH package.
func PackageArgs(opts Options, input, manifest string, l ladder.Ladder) []string {
	opts = opts.withDefaults()
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input}
	for i, rep := range l {
		idx := strconv.Itoa(i)
		args = append(args,
			"-map", "0:v:0",
			"-c:v:"+idx, opts.VideoCodec,
			"-b:v:"+idx, kbps(rep.VideoBitrate),
			"-s:v:"+idx, rep.Size(),
		)
		if opts.VideoCodec == "libx264" {
			args = append(args, "-profile:v:"+idx, "high")
		}
	}
	args = append(args,
		"-map", "0:a:0?",
		"-c:a", opts.AudioCodec,
		"-b:a", kbps(l[0].AudioBitrate),
	)
	if opts.Preset != "" {
		args = append(args, "-preset", opts.Preset)
	}
	segment := strconv.Itoa(opts.SegmentSeconds)
	args = append(args,
		"-force_key_frames", "expr:gte(t,n_forced*"+segment+")",
		"-f", "dash",
		"-seg_duration", segment,
		"-use_template", "1",
		"-use_timeline", "1",
		"-init_seg_name", InitSegmentTemplate,
		"-media_seg_name", MediaSegmentTemplate,
		manifest,
	)
	return args
}

func (t *Transcoder) run(ctx context.Context, operation string, args []string) error {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, t.logger)
	logger.Debug("running ffmpeg",
		logging.String("operation", operation),
		logging.String("command", t.opts.Binary+" "+strings.Join(args, " ")),
	)

	started := time.Now()
	cmd := exec.CommandContext(ctx, t.opts.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	metrics.ObserveTool(toolName, operation, started, err)
	if err != nil {
		toolErr := &ToolError{Tool: toolName, Operation: operation, Err: err, Stderr: trimStderr(stderr.String())}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			toolErr.Err = fmt.Errorf("timed out after %s: %w", t.opts.Timeout, err)
		}
		logger.Debug("ffmpeg failed",
			logging.String("operation", operation),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		return toolErr
	}
	logger.Debug("ffmpeg finished",
		logging.String("operation", operation),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func kbps(bps int64) string {
	return strconv.FormatInt(bps/1000, 10) + "k"
}

func presetOr(preset string) string {
	if strings.TrimSpace(preset) == "" {
		return "medium"
	}
	return preset
}
