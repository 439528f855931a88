package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"

	"streampack/internal/fileutil"
)

const (
	lockFileName   = ".meta.lock"
	lockRetryDelay = 10 * time.Millisecond
)

// FileStore keeps one meta.json per job directory under root.
type FileStore struct {
	root string
}

// OpenFileStore prepares root for job directories.
func OpenFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("file store: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Dir returns the job's directory.
func (s *FileStore) Dir(id string) string {
	return jobDir(s.root, id)
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// Create writes the initial record. The job directory may already exist and
// hold the upload.
func (s *FileStore) Create(ctx context.Context, job *Job) error {
	if !ValidID(job.ID) {
		return fmt.Errorf("create job: invalid id %q", job.ID)
	}
	dir := s.Dir(job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	return s.withLock(ctx, job.ID, func() error {
		if _, err := os.Stat(s.metaPath(job.ID)); err == nil {
			return fmt.Errorf("create job %s: record already exists", job.ID)
		}
		return s.write(job)
	})
}

// Get reads the current record.
func (s *FileStore) Get(_ context.Context, id string) (*Job, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	return s.read(id)
}

// List scans root for job records. Directories without a readable meta.json
// are skipped.
func (s *FileStore) List(_ context.Context, statuses ...Status) ([]*Job, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read uploads dir: %w", err)
	}
	jobs := make([]*Job, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !ValidID(entry.Name()) {
			continue
		}
		job, err := s.read(entry.Name())
		if err != nil {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, job.Status) {
			continue
		}
		jobs = append(jobs, job)
	}
	sortJobs(jobs)
	return jobs, nil
}

// Update replaces the record when its stored status equals prev.
func (s *FileStore) Update(ctx context.Context, job *Job, prev Status) error {
	if !ValidID(job.ID) {
		return ErrNotFound
	}
	return s.withLock(ctx, job.ID, func() error {
		current, err := s.read(job.ID)
		if err != nil {
			return err
		}
		if current.Status != prev {
			return fmt.Errorf("%w: %s is %s, expected %s", ErrConflict, job.ID, current.Status, prev)
		}
		return s.write(job)
	})
}

func (s *FileStore) metaPath(id string) string {
	return filepath.Join(s.Dir(id), MetaFileName)
}

func (s *FileStore) read(id string) (*Job, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read job record: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job record %s: %w", id, err)
	}
	return &job, nil
}

func (s *FileStore) write(job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.metaPath(job.ID), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write job record: %w", err)
	}
	return nil
}

func (s *FileStore) withLock(ctx context.Context, id string, fn func() error) error {
	lock := flock.New(filepath.Join(s.Dir(id), lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock job record: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock job record %s: not acquired", id)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func sortJobs(jobs []*Job) {
	slices.SortFunc(jobs, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
