package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"streampack/internal/probe"
	"streampack/internal/transcoder"
)

// ErrPackaging marks a failed thumbnail or DASH packaging step.
var ErrPackaging = errors.New("packaging failed")

func packagingError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPackaging, step, err)
}

// FailureMessage resolves the user-visible message for a failed job. Tool
// diagnostics win over wrapped error text.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var toolErr *transcoder.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Diagnostic()
	}
	var probeErr *probe.Error
	if errors.As(err, &probeErr) {
		return probeErr.Error()
	}
	return strings.TrimSpace(err.Error())
}

// FailureKind classifies err for logs and metrics labels.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, probe.ErrProbe):
		return "probe"
	case errors.Is(err, ErrPackaging):
		return "packaging"
	default:
		return "unknown"
	}
}
