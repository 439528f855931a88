package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func factories() []storeFactory {
	return []storeFactory{
		{name: "file", open: func(t *testing.T) Store {
			store, err := OpenFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("OpenFileStore: %v", err)
			}
			return store
		}},
		{name: "sqlite", open: func(t *testing.T) Store {
			dir := t.TempDir()
			store, err := OpenSQLite(filepath.Join(dir, "jobs.db"), filepath.Join(dir, "uploads"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		}},
	}
}

func TestStoreLifecycle(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := f.open(t)

			job := New("Holiday", "holiday.mov")
			if err := store.Create(ctx, job); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if info, err := os.Stat(store.Dir(job.ID)); err != nil || !info.IsDir() {
				t.Fatalf("job dir missing: %v", err)
			}

			if err := Transition(ctx, store, job, (*Job).Start); err != nil {
				t.Fatalf("start: %v", err)
			}
			if err := Transition(ctx, store, job, func(j *Job) error {
				return j.Complete(LogFileName, ThumbnailFileName, "video.mpd")
			}); err != nil {
				t.Fatalf("complete: %v", err)
			}

			got, err := store.Get(ctx, job.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != StatusDone || got.ManifestRef != "video.mpd" || got.Title != "Holiday" || got.SourceName != "holiday.mov" {
				t.Fatalf("unexpected record %+v", got)
			}
			if !got.CreatedAt.Equal(job.CreatedAt) {
				t.Fatalf("created changed: %v vs %v", got.CreatedAt, job.CreatedAt)
			}
		})
	}
}

func TestStoreRejectsStaleWrite(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := f.open(t)
			job := New("clip", "clip.mp4")
			if err := store.Create(ctx, job); err != nil {
				t.Fatalf("Create: %v", err)
			}
			first := job.Clone()
			second := job.Clone()
			if err := Transition(ctx, store, first, (*Job).Start); err != nil {
				t.Fatalf("first claim: %v", err)
			}
			err := Transition(ctx, store, second, (*Job).Start)
			if !errors.Is(err, ErrConflict) {
				t.Fatalf("second claim should conflict, got %v", err)
			}
			if second.Status != StatusPending {
				t.Fatalf("failed transition should restore in-memory status, got %s", second.Status)
			}
		})
	}
}

func TestStoreListOrderAndFilter(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := f.open(t)
			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			ids := make([]string, 3)
			for i := range ids {
				job := New("job", "clip.mp4")
				job.CreatedAt = base.Add(time.Duration(2-i) * time.Millisecond * 100)
				if err := store.Create(ctx, job); err != nil {
					t.Fatalf("Create: %v", err)
				}
				ids[i] = job.ID
			}
			all, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
				t.Fatalf("jobs not oldest first: %v", all)
			}

			_ = Transition(ctx, store, all[0], (*Job).Start)
			pending, err := store.List(ctx, StatusPending)
			if err != nil {
				t.Fatalf("List pending: %v", err)
			}
			if len(pending) != 2 {
				t.Fatalf("pending = %d, want 2", len(pending))
			}
		})
	}
}

func TestStoreGetUnknown(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			for _, id := range []string{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", "../../etc/passwd"} {
				if _, err := store.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
					t.Fatalf("Get(%q) = %v, want ErrNotFound", id, err)
				}
			}
		})
	}
}

func TestRecoverInterrupted(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := f.open(t)
			stuck := New("stuck", "a.mov")
			waiting := New("waiting", "b.mov")
			for _, job := range []*Job{stuck, waiting} {
				if err := store.Create(ctx, job); err != nil {
					t.Fatalf("Create: %v", err)
				}
			}
			if err := Transition(ctx, store, stuck, (*Job).Start); err != nil {
				t.Fatalf("start: %v", err)
			}

			recovered, err := RecoverInterrupted(ctx, store)
			if err != nil || len(recovered) != 1 {
				t.Fatalf("RecoverInterrupted = %d, %v", len(recovered), err)
			}
			got, _ := store.Get(ctx, stuck.ID)
			if got.Status != StatusError || got.ErrorMessage != InterruptedMessage {
				t.Fatalf("stuck job = %+v", got)
			}
			still, _ := store.Get(ctx, waiting.ID)
			if still.Status != StatusPending {
				t.Fatalf("pending job touched: %+v", still)
			}
		})
	}
}

func TestFileStoreWritesAtomically(t *testing.T) {
	ctx := context.Background()
	store, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	job := New("clip", "clip.mp4")
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	readErrs := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		path := filepath.Join(store.Dir(job.ID), MetaFileName)
		for {
			select {
			case <-stop:
				return
			default:
			}
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var decoded Job
			if err := json.Unmarshal(data, &decoded); err != nil {
				select {
				case readErrs <- err:
				default:
				}
				return
			}
		}
	}()

	_ = Transition(ctx, store, job, (*Job).Start)
	_ = Transition(ctx, store, job, func(j *Job) error { return j.Complete(LogFileName, ThumbnailFileName, "video.mpd") })
	close(stop)
	wg.Wait()

	select {
	case err := <-readErrs:
		t.Fatalf("reader observed a torn record: %v", err)
	default:
	}

	entries, err := os.ReadDir(store.Dir(job.ID))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Fatalf("temporary file left behind: %s", entry.Name())
		}
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(job.ID), MetaFileName))
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	for _, key := range []string{`"id"`, `"title"`, `"created"`, `"status": "done"`, `"manifest"`, `"thumbnail"`, `"log"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("meta.json missing %s:\n%s", key, data)
		}
	}
}
