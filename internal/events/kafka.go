package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"streampack/internal/config"
)

// Kafka writes events to a topic keyed by job id, so one job's transitions
// stay ordered within a partition.
type Kafka struct {
	writer  *kafka.Writer
	brokers []string
}

// NewKafka builds a writer for the configured brokers and topic.
func NewKafka(cfg config.Events) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}, brokers: cfg.KafkaBrokers}
}

func kafkaMessage(ev Event) (kafka.Message, error) {
	payload, err := ev.Marshal()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.JobID),
		Value: payload,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(ev.Status)},
		},
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	msg, err := kafkaMessage(ev)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

// Ping dials the first reachable broker.
func (k *Kafka) Ping(ctx context.Context) error {
	var errs []error
	for _, broker := range k.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return conn.Close()
	}
	if len(errs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	return fmt.Errorf("kafka unreachable: %w", errors.Join(errs...))
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
