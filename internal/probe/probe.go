package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"streampack/internal/logging"
	"streampack/internal/media/ffprobe"
)

// ErrProbe marks failures to read geometry from a source.
var ErrProbe = errors.New("probe failed")

// Error describes why a source could not be probed. Stderr carries the
// ffprobe diagnostics when the tool itself failed.
type Error struct {
	Path   string
	Reason string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("probe %s: %s", e.Path, e.Reason)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProbe}
	}
	return []error{ErrProbe, e.Err}
}

// VideoProperties is the probed geometry of the first video stream.
type VideoProperties struct {
	PhysicalWidth      int
	PhysicalHeight     int
	DisplayWidth       int
	DisplayHeight      int
	RotationDegrees    int
	AspectRatioDecimal float64
	aspect             *big.Rat
}

// NewVideoProperties builds properties from physical dimensions and a rotation
// in degrees. Rotation is normalized into [0, 360).
func NewVideoProperties(width, height, rotation int) (VideoProperties, error) {
	if width <= 0 || height <= 0 {
		return VideoProperties{}, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	rotation = NormalizeRotation(rotation)
	displayWidth, displayHeight := width, height
	if rotation == 90 || rotation == 270 {
		displayWidth, displayHeight = height, width
	}
	aspect := big.NewRat(int64(displayWidth), int64(displayHeight))
	decimal, _ := aspect.Float64()
	return VideoProperties{
		PhysicalWidth:      width,
		PhysicalHeight:     height,
		DisplayWidth:       displayWidth,
		DisplayHeight:      displayHeight,
		RotationDegrees:    rotation,
		AspectRatioDecimal: decimal,
		aspect:             aspect,
	}, nil
}

// AspectRatio returns displayWidth/displayHeight as an exact rational. The
// returned value is a copy.
func (p VideoProperties) AspectRatio() *big.Rat {
	if p.aspect == nil {
		if p.DisplayHeight == 0 {
			return new(big.Rat)
		}
		return big.NewRat(int64(p.DisplayWidth), int64(p.DisplayHeight))
	}
	return new(big.Rat).Set(p.aspect)
}

// Rotated reports whether playback applies any rotation.
func (p VideoProperties) Rotated() bool {
	return p.RotationDegrees != 0
}

// NormalizeRotation maps any integer degree value into [0, 360).
func NormalizeRotation(degrees int) int {
	degrees %= 360
	if degrees < 0 {
		degrees += 360
	}
	return degrees
}

// Prober runs ffprobe against source files.
type Prober struct {
	binary string
	logger *slog.Logger
}

// New constructs a Prober for the given ffprobe binary.
func New(binary string, logger *slog.Logger) *Prober {
	return &Prober{
		binary: strings.TrimSpace(binary),
		logger: logging.NewComponentLogger(logger, "probe"),
	}
}

// Probe reads the first video stream of path. No retries are attempted.
func (p *Prober) Probe(ctx context.Context, path string) (VideoProperties, error) {
	result, err := ffprobe.Inspect(ctx, p.binary, path, ffprobe.SelectStreams("v:0"), ffprobe.WithoutFormat())
	if err != nil {
		probeErr := &Error{Path: path, Reason: "ffprobe failed", Err: err}
		var cmdErr *ffprobe.CommandError
		if errors.As(err, &cmdErr) {
			probeErr.Stderr = cmdErr.Stderr
		} else if errors.Is(err, ffprobe.ErrMalformedOutput) {
			probeErr.Reason = "unreadable ffprobe output"
		}
		return VideoProperties{}, probeErr
	}
	return p.fromResult(ctx, path, result)
}

// FromResult derives properties from an already decoded inspection.
func FromResult(path string, result ffprobe.Result) (VideoProperties, error) {
	stream, ok := result.FirstVideoStream()
	if !ok {
		return VideoProperties{}, &Error{Path: path, Reason: "no video stream found"}
	}
	props, err := NewVideoProperties(stream.Width, stream.Height, stream.Rotation())
	if err != nil {
		return VideoProperties{}, &Error{Path: path, Reason: "unusable video stream", Err: err}
	}
	return props, nil
}

func (p *Prober) fromResult(ctx context.Context, path string, result ffprobe.Result) (VideoProperties, error) {
	props, err := FromResult(path, result)
	if err != nil {
		return VideoProperties{}, err
	}
	logging.WithContext(ctx, p.logger).Debug("probed video geometry",
		logging.String("path", path),
		logging.Int("physical_width", props.PhysicalWidth),
		logging.Int("physical_height", props.PhysicalHeight),
		logging.Int("rotation", props.RotationDegrees),
		logging.String("aspect_ratio", props.AspectRatio().RatString()),
	)
	return props, nil
}
