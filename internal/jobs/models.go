package jobs

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"streampack/internal/textutil"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// MaxTitleBytes bounds a stored title.
const MaxTitleBytes = 1024

// InterruptedMessage is the error recorded for jobs found processing at startup.
const InterruptedMessage = "interrupted by daemon restart"

var (
	// ErrInvalidTransition rejects any move outside pending -> processing -> done|error.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound reports an unknown job identifier.
	ErrNotFound = errors.New("job not found")
	// ErrConflict reports a guarded write whose expected status no longer matches.
	ErrConflict = errors.New("job status changed concurrently")
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusDone, StatusError},
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusDone, StatusError}
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range AllStatuses() {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is the persisted record for one uploaded video.
type Job struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created"`
	UpdatedAt    time.Time `json:"updated"`
	Status       Status    `json:"status"`
	SourceName   string    `json:"source"`
	LogRef       string    `json:"log,omitempty"`
	ThumbnailRef string    `json:"thumbnail,omitempty"`
	ManifestRef  string    `json:"manifest,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
}

// New returns a pending job with a fresh identifier.
func New(title, sourceName string) *Job {
	now := time.Now().UTC()
	title = textutil.Truncate(textutil.CleanTitle(title), MaxTitleBytes)
	if title == "" {
		title = "Untitled"
	}
	return &Job{
		ID:         uuid.NewString(),
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
		Status:     StatusPending,
		SourceName: sourceName,
	}
}

// Transition moves the job to status to.
func (j *Job) Transition(to Status) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Start moves a pending job to processing.
func (j *Job) Start() error {
	return j.Transition(StatusProcessing)
}

// Complete moves a processing job to done with its artifact references.
func (j *Job) Complete(logRef, thumbnailRef, manifestRef string) error {
	if err := j.Transition(StatusDone); err != nil {
		return err
	}
	j.LogRef = logRef
	j.ThumbnailRef = thumbnailRef
	j.ManifestRef = manifestRef
	j.ErrorMessage = ""
	return nil
}

// Fail moves a processing job to error with a user-visible message.
func (j *Job) Fail(message, logRef string) error {
	if err := j.Transition(StatusError); err != nil {
		return err
	}
	j.ErrorMessage = strings.TrimSpace(message)
	if logRef != "" {
		j.LogRef = logRef
	}
	return nil
}

// OriginalName is the stored upload's file name inside the job directory.
func (j *Job) OriginalName() string {
	return OriginalBaseName + strings.ToLower(filepath.Ext(j.SourceName))
}

// Clone returns a copy safe to mutate.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	return &cp
}

// ValidID reports whether id is a job identifier. Identifiers are used as
// directory names, so anything that is not a UUID is rejected.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// uploadExtensions are the container formats accepted for upload.
var uploadExtensions = map[string]struct{}{
	".mov": {},
	".mp4": {},
	".mkv": {},
}

// AllowedUpload reports whether name has an accepted video extension.
func AllowedUpload(name string) bool {
	_, ok := uploadExtensions[strings.ToLower(filepath.Ext(strings.TrimSpace(name)))]
	return ok
}
