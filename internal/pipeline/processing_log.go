package pipeline

import (
	"fmt"
	"os"
	"strings"
)

// ProcessingLog appends human-readable progress to a job's log file. Every
// write opens, appends, and closes the file so readers see partial progress.
type ProcessingLog struct {
	path string
}

// NewProcessingLog returns a log writing to path.
func NewProcessingLog(path string) *ProcessingLog {
	return &ProcessingLog{path: path}
}

// Path returns the log file location.
func (l *ProcessingLog) Path() string {
	return l.path
}

// Printf appends one formatted line.
func (l *ProcessingLog) Printf(format string, args ...any) error {
	return l.Lines(fmt.Sprintf(format, args...))
}

// Lines appends each entry on its own line.
func (l *ProcessingLog) Lines(lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open processing log: %w", err)
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(strings.TrimRight(line, "\n"))
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write processing log: %w", err)
	}
	return f.Close()
}

// Read returns the log contents. A log that was never written yields an
// error matching fs.ErrNotExist.
func (l *ProcessingLog) Read() (string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "", fmt.Errorf("read processing log: %w", err)
	}
	return string(data), nil
}
