package jobs

import (
	"context"
	"fmt"
	"path/filepath"

	"streampack/internal/config"
)

// Store persists job records.
type Store interface {
	// Create persists a new job and creates its directory.
	Create(ctx context.Context, job *Job) error
	// Get returns the current record.
	Get(ctx context.Context, id string) (*Job, error)
	// List returns jobs oldest first, optionally filtered by status.
	List(ctx context.Context, statuses ...Status) ([]*Job, error)
	// Update writes the full record when the stored status still equals prev.
	Update(ctx context.Context, job *Job, prev Status) error
	// Dir returns the job's package directory.
	Dir(id string) string
	Close() error
}

// Open returns the configured Store.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		return OpenSQLite(cfg.Store.SQLitePath, cfg.Paths.UploadsDir)
	case config.StoreFile, "":
		return OpenFileStore(cfg.Paths.UploadsDir)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// Transition applies to on job and persists it, guarded by the prior status.
// On a persistence failure the in-memory job is restored.
func Transition(ctx context.Context, store Store, job *Job, apply func(*Job) error) error {
	before := job.Clone()
	if err := apply(job); err != nil {
		return err
	}
	if err := store.Update(ctx, job, before.Status); err != nil {
		*job = *before
		return err
	}
	return nil
}

// RecoverInterrupted marks jobs left processing by a previous run as failed.
func RecoverInterrupted(ctx context.Context, store Store) ([]*Job, error) {
	stuck, err := store.List(ctx, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("list processing jobs: %w", err)
	}
	recovered := make([]*Job, 0, len(stuck))
	for _, job := range stuck {
		logRef := ""
		if job.LogRef == "" {
			logRef = LogFileName
		}
		if err := Transition(ctx, store, job, func(j *Job) error { return j.Fail(InterruptedMessage, logRef) }); err != nil {
			return recovered, fmt.Errorf("recover job %s: %w", job.ID, err)
		}
		recovered = append(recovered, job)
	}
	return recovered, nil
}

const (
	// MetaFileName is the per-job record written by FileStore.
	MetaFileName = "meta.json"
	// LogFileName is the per-job processing log.
	LogFileName = "processing.log"
	// ThumbnailFileName is the post-processed still.
	ThumbnailFileName = "thumbnail.jpg"
	// OriginalBaseName prefixes the stored upload; the extension is preserved.
	OriginalBaseName = "original"
)

func jobDir(root, id string) string {
	return filepath.Join(root, id)
}
