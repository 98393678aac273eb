// Package kafka publishes event frame records to a Kafka topic as JSON
// messages, keyed by frame id.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

// MessageWriter is the slice of *kafka.Writer the sink depends on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink writes each record's merged field map as one message.
type Sink struct {
	writer MessageWriter
	site   string
}

// New creates a Sink for the configured brokers and topic.
func New(cfg config.KafkaConfig, site string) *Sink {
	return &Sink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.LeastBytes{},
		},
		site: site,
	}
}

// NewWithWriter wires an explicit writer. Used in tests.
func NewWithWriter(w MessageWriter, site string) *Sink {
	return &Sink{writer: w, site: site}
}

// Init is a no-op; topics are provisioned out of band.
func (s *Sink) Init(_ context.Context) error { return nil }

// Write publishes the batch, one message per record.
func (s *Sink) Write(ctx context.Context, records []model.FlatRecord) error {
	if len(records) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		fields := rec.Fields()
		fields["site"] = s.site
		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("kafka sink: marshal frame %s: %w", rec.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(rec.ID), Value: data})
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka sink: write: %w", err)
	}
	return nil
}

// Close shuts the underlying writer down.
func (s *Sink) Close() error { return s.writer.Close() }
