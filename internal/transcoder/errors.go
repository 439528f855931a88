package transcoder

import (
	"fmt"
	"strings"
)

const maxStderrBytes = 4096

// ToolError reports a failed external tool invocation.
type ToolError struct {
	Tool      string
	Operation string
	Err       error
	Stderr    string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s %s: %v", e.Tool, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %s", e.Tool, e.Operation, e.Err, e.Stderr)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Diagnostic returns the tool's stderr when present, otherwise the error text.
func (e *ToolError) Diagnostic() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return e.Error()
}

// trimStderr keeps the tail of long diagnostics; ffmpeg prints the cause last.
func trimStderr(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) <= maxStderrBytes {
		return trimmed
	}
	tail := trimmed[len(trimmed)-maxStderrBytes:]
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return "..." + tail
}
