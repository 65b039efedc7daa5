// Package eventmirror optionally republishes terminal experiment and
// conversation events onto a Kafka topic for downstream consumers (a
// dashboard, an alerting job) that would rather subscribe than poll the
// filesystem. The events.jsonl ledger under each conversation and
// experiment directory (spec.md §6.2) remains the sole authoritative
// record; the mirror is best-effort: each event is published once, and a
// failed publish is not retried, so a consumer can miss events —
// consumers that need the ground truth reconcile against the ledger, per
// spec.md §1's delivery Non-goal. A scheduler that never configures a
// Mirror behaves exactly as before.
package eventmirror

import (
	"context"
	"fmt"
	"strings"

	kafka "github.com/segmentio/kafka-go"

	"pidgin/internal/eventlog"
)

// Writer is the subset of *kafka.Writer the mirror depends on, so tests can
// substitute a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Mirror publishes eventlog.Event records to a Kafka topic.
type Mirror struct {
	writer Writer
	topic  string
}

// NewFromBrokers builds a Mirror writing to topic on the given
// comma-separated broker list, mirroring the teacher's
// NewProducerFromBrokers broker-list parsing.
func NewFromBrokers(brokers, topic string) (*Mirror, error) {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil, fmt.Errorf("eventmirror: brokers cannot be empty")
	}
	if topic = strings.TrimSpace(topic); topic == "" {
		return nil, fmt.Errorf("eventmirror: topic cannot be empty")
	}
	list := strings.Split(brokers, ",")
	for i, b := range list {
		list[i] = strings.TrimSpace(b)
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(list...),
		Balancer: &kafka.LeastBytes{},
	}
	return New(w, topic), nil
}

// New wraps an already-constructed Writer, letting tests inject a fake.
func New(w Writer, topic string) *Mirror {
	return &Mirror{writer: w, topic: topic}
}

// Close releases the underlying writer.
func (m *Mirror) Close() error { return m.writer.Close() }

// Publish mirrors one event, keyed by experimentID so a topic with multiple
// partitions keeps one experiment's events ordered relative to each other.
// A publish failure is logged by the caller and otherwise ignored: losing a
// mirrored copy never blocks or fails the conversation or experiment that
// produced it.
func (m *Mirror) Publish(ctx context.Context, experimentID string, ev eventlog.Event) error {
	payload, err := ev.MarshalJSON()
	if err != nil {
		return fmt.Errorf("eventmirror: marshal %s: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Topic: m.topic,
		Key:   []byte(experimentID),
		Value: payload,
	}
	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("eventmirror: publish %s for %s: %w", ev.Type, experimentID, err)
	}
	return nil
}
