package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"streampack/internal/config"
	"streampack/internal/jobs"
)

type recorder struct {
	events []Event
	err    error
	closed bool
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestEventJSONShape(t *testing.T) {
	job := jobs.New("Clip", "clip.mov")
	job.UpdatedAt = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	data, err := FromJob(job).Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"job_id", "status", "title", "at"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing %q in %s", key, data)
		}
	}
	if _, ok := decoded["error"]; ok {
		t.Fatalf("empty error should be omitted: %s", data)
	}
	if decoded["status"] != "pending" || decoded["at"] != "2026-03-04T05:06:07Z" {
		t.Fatalf("unexpected payload %s", data)
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("broker down")}
	fan := Fanout{ok, bad}
	err := fan.Publish(context.Background(), Event{JobID: "a"})
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.events) != 1 || len(bad.events) != 1 {
		t.Fatal("every publisher should receive the event")
	}
	if err := fan.Close(); err != nil || !ok.closed || !bad.closed {
		t.Fatalf("Close: %v", err)
	}
}

func TestLoggedSwallowsFailures(t *testing.T) {
	bad := &recorder{err: errors.New("timeout")}
	logged := NewLogged(bad, "redis", nil)
	if err := logged.Publish(context.Background(), Event{JobID: "a", Status: jobs.StatusDone}); err != nil {
		t.Fatalf("Logged.Publish returned %v", err)
	}
	if len(bad.events) != 1 {
		t.Fatal("event not forwarded")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	p, err := New(config.Events{Backend: config.EventsNone})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.(Nop); !ok {
		t.Fatalf("expected Nop, got %T", p)
	}
	k, err := New(config.Events{Backend: config.EventsKafka, KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"})
	if err != nil {
		t.Fatalf("New kafka: %v", err)
	}
	if _, ok := k.(*Kafka); !ok {
		t.Fatalf("expected *Kafka, got %T", k)
	}
	_ = k.Close()
	r, err := New(config.Events{Backend: config.EventsRedis, RedisAddr: "localhost:6379"})
	if err != nil {
		t.Fatalf("New redis: %v", err)
	}
	if _, ok := r.(*Redis); !ok {
		t.Fatalf("expected *Redis, got %T", r)
	}
	_ = r.Close()
	if _, err := New(config.Events{Backend: "nats"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestKafkaMessageKeyedByJob(t *testing.T) {
	msg, err := kafkaMessage(Event{JobID: "job-1", Status: jobs.StatusError, Error: "boom"})
	if err != nil {
		t.Fatalf("kafkaMessage: %v", err)
	}
	if string(msg.Key) != "job-1" || !strings.Contains(string(msg.Value), `"error":"boom"`) {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "error" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}

func TestRedisKey(t *testing.T) {
	if got := RedisKey("abc"); got != "streampack:job:abc" {
		t.Fatalf("RedisKey = %q", got)
	}
}
