package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"tunnel_hmi/internal/events"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per zone keyed by the zone id, so a
// zone's history stays on one partition.
type KafkaPublisher struct {
	w MessageWriter
}

var _ Sink = (*KafkaPublisher)(nil)

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// NewKafkaWriter builds a hash-balanced synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) PublishBatch(ctx context.Context, b events.Batch) error {
	ids, payloads, err := zonePayloads(b)
	if err != nil {
		return err
	}
	msgs := make([]kafka.Message, 0, len(ids))
	for i, id := range ids {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.Itoa(id)),
			Value: payloads[i],
			Time:  b.SampledAt,
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
