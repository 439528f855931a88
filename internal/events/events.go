// Package events publishes job state transitions to external subscribers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"streampack/internal/config"
	"streampack/internal/jobs"
	"streampack/internal/logging"
	"streampack/internal/metrics"
)

// Event is the wire form of one transition.
type Event struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
	Title  string      `json:"title"`
	Error  string      `json:"error,omitempty"`
	At     time.Time   `json:"at"`
}

// FromJob snapshots job as an event.
func FromJob(job *jobs.Job) Event {
	at := job.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Event{
		JobID:  job.ID,
		Status: job.Status,
		Title:  job.Title,
		Error:  job.ErrorMessage,
		At:     at,
	}
}

// Marshal encodes the event as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Publish failures never affect job state.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }

// Fanout delivers to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the configured publisher.
func New(cfg config.Events) (Publisher, error) {
	switch cfg.Backend {
	case config.EventsNone, "":
		return Nop{}, nil
	case config.EventsRedis:
		return NewRedis(cfg), nil
	case config.EventsKafka:
		return NewKafka(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported events backend %q", cfg.Backend)
	}
}

// Logged wraps a publisher so failures are logged and counted instead of returned.
type Logged struct {
	Publisher Publisher
	Backend   string
	Logger    *slog.Logger
}

// NewLogged wraps p.
func NewLogged(p Publisher, backend string, logger *slog.Logger) *Logged {
	if p == nil {
		p = Nop{}
	}
	return &Logged{Publisher: p, Backend: backend, Logger: logging.NewComponentLogger(logger, "events")}
}

func (l *Logged) Publish(ctx context.Context, ev Event) error {
	if _, ok := l.Publisher.(Nop); ok {
		return nil
	}
	if err := l.Publisher.Publish(ctx, ev); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(l.Backend, "error").Inc()
		logging.WarnWithContext(l.Logger, "job event not delivered", "event_publish_failed",
			logging.String(logging.FieldJobID, ev.JobID),
			logging.String("status", string(ev.Status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the events backend connection"),
			logging.String(logging.FieldImpact, "subscribers miss this transition"),
		)
		return nil
	}
	metrics.EventsPublishedTotal.WithLabelValues(l.Backend, "success").Inc()
	return nil
}

func (l *Logged) Close() error { return l.Publisher.Close() }
