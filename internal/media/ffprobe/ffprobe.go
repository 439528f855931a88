package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrMalformedOutput reports ffprobe output that is not the expected JSON document.
var ErrMalformedOutput = errors.New("malformed ffprobe output")

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	CodecTag     string            `json:"codec_tag_string"`
	Duration     string            `json:"duration"`
	BitRate      string            `json:"bit_rate"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	SampleRate   string            `json:"sample_rate"`
	Channels     int               `json:"channels"`
	Tags         map[string]string `json:"tags"`
	SideDataList []SideData        `json:"side_data_list"`
}

// SideData is one entry of a stream's side_data_list. Only the display matrix
// fields are decoded.
type SideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// CommandError reports a non-zero ffprobe exit together with its diagnostics.
type CommandError struct {
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffprobe inspect: %v", e.Err)
	}
	return fmt.Sprintf("ffprobe inspect: %v: %s", e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Option customizes an Inspect invocation.
type Option func(*inspectOptions)

type inspectOptions struct {
	selectStreams string
	showFormat    bool
}

// SelectStreams limits output to an ffprobe stream specifier such as "v:0".
func SelectStreams(spec string) Option {
	return func(o *inspectOptions) { o.selectStreams = strings.TrimSpace(spec) }
}

// WithoutFormat omits container-level metadata.
func WithoutFormat() Option {
	return func(o *inspectOptions) { o.showFormat = false }
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string, opts ...Option) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	options := inspectOptions{showFormat: true}
	for _, opt := range opts {
		opt(&options)
	}

	args := []string{"-v", "error", "-hide_banner", "-print_format", "json", "-show_streams"}
	if options.showFormat {
		args = append(args, "-show_format")
	}
	if options.selectStreams != "" {
		args = append(args, "-select_streams", options.selectStreams)
	}
	args = append(args, "--", path)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, &CommandError{Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w: %w", ErrMalformedOutput, err)
	}
	result.raw = append([]byte(nil), stdout.Bytes()...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// FirstVideoStream returns the first stream of type video.
func (r Result) FirstVideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

// DataStreams returns streams that are neither audio, video, nor subtitles.
func (r Result) DataStreams() []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "data") {
			out = append(out, stream)
		}
	}
	return out
}

func (r Result) countType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// Rotation returns the playback rotation in degrees. The display matrix side
// data wins over the legacy rotate tag. Zero when neither is present.
func (s Stream) Rotation() int {
	for _, side := range s.SideDataList {
		if side.Rotation != 0 {
			return int(math.Round(side.Rotation))
		}
	}
	if value, ok := s.Tags["rotate"]; ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return 0
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
