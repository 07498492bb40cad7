// Package kafka publishes a completed run's delay records to a topic so
// dashboard backends can ingest the snapshot without polling the CSV. It
// only ever runs after the dataset file is durably written.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/emberline/evac-delay-etl/internal/config"
	"github.com/emberline/evac-delay-etl/internal/domain"
)

// Publisher produces delay-record messages to the configured topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the snapshot topic.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    100,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishSnapshot serializes every record and writes them in one batched
// call, keyed by event ID so re-published snapshots compact per fire.
func (p *Publisher) PublishSnapshot(ctx context.Context, runID string, records []domain.DelayRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(runID, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: publish snapshot: %w", err)
	}
	p.logger.Info("snapshot published", "run_id", runID, "records", len(records))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(runID string, rec domain.DelayRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("kafka: serialize delay record %s: %w", rec.GeoEventID, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.GeoEventID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "generated_at", Value: []byte(domain.Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}
