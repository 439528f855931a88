// Package staging reclaims disk space under the uploads root. The daemon runs
// it at startup to drop stale preprocessing temp directories, partial uploads,
// and job directories with no record.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streampack/internal/jobs"
	"streampack/internal/logging"
)

// IncomingPrefix names partially received uploads in the uploads root.
const IncomingPrefix = ".incoming-"

// CleanResult contains the outcome of a cleanup operation.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStaleTemp removes per-job preprocessing temp directories older than
// maxAge. Jobs in active are skipped regardless of age.
func CleanStaleTemp(ctx context.Context, uploadsDir, tempDirName string, maxAge time.Duration, active map[string]struct{}, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	uploadsDir = strings.TrimSpace(uploadsDir)
	tempDirName = strings.TrimSpace(tempDirName)
	if uploadsDir == "" || tempDirName == "" {
		return result
	}

	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: uploadsDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !jobs.ValidID(entry.Name()) {
			continue
		}
		if _, busy := active[entry.Name()]; busy {
			continue
		}

		tempPath := filepath.Join(uploadsDir, entry.Name(), tempDirName)
		info, err := os.Stat(tempPath)
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, CleanupError{Path: tempPath, Error: err})
			}
			continue
		}
		if !info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(tempPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: tempPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale temp directory", "staging_cleanup_failed",
				logging.String("path", tempPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check uploads_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, tempPath)
		if logger != nil {
			logger.Info("removed stale temp directory",
				logging.String("path", tempPath),
				logging.String(logging.FieldJobID, entry.Name()),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}

	return result
}

// CleanOrphaned removes job directories whose id has no record in known.
// Directories that are not named like job ids are left alone.
func CleanOrphaned(ctx context.Context, uploadsDir string, known map[string]struct{}, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	uploadsDir = strings.TrimSpace(uploadsDir)
	if uploadsDir == "" {
		return result
	}

	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: uploadsDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !jobs.ValidID(entry.Name()) {
			continue
		}
		if _, ok := known[entry.Name()]; ok {
			continue
		}

		dirPath := filepath.Join(uploadsDir, entry.Name())
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove orphaned job directory", "staging_cleanup_failed",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check uploads_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		if logger != nil {
			logger.Info("removed orphaned job directory",
				logging.String("path", dirPath),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}

	return result
}

// CleanIncoming removes partially received upload files older than maxAge.
// They are left behind only when the daemon dies mid-upload.
func CleanIncoming(ctx context.Context, uploadsDir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	uploadsDir = strings.TrimSpace(uploadsDir)
	if uploadsDir == "" {
		return result
	}
	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: uploadsDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), IncomingPrefix) {
			continue
		}
		filePath := filepath.Join(uploadsDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: filePath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filePath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: filePath, Error: err})
			continue
		}
		result.Removed = append(result.Removed, filePath)
		if logger != nil {
			logger.Info("removed partial upload",
				logging.String("path", filePath),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}

// KnownIDs lists every job id in the store.
func KnownIDs(ctx context.Context, store jobs.Store) (map[string]struct{}, error) {
	all, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(all))
	for _, job := range all {
		known[job.ID] = struct{}{}
	}
	return known, nil
}

// ListDirectories returns every job directory under the uploads root with
// its size on disk.
func ListDirectories(uploadsDir string) ([]DirInfo, error) {
	uploadsDir = strings.TrimSpace(uploadsDir)
	if uploadsDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() || !jobs.ValidID(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirPath := filepath.Join(uploadsDir, entry.Name())
		size, _ := dirSize(dirPath)

		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}

	return dirs, nil
}

// DirInfo contains metadata about a job directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
