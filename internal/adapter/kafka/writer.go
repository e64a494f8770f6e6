package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-report/internal/config"
	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/present"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes loaded earthquake records to a Kafka topic.
// It implements screen.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes one message per record and writes them in a single
// WriteMessages call. Records with the same detail URL land on the same partition.
func (w *Writer) Publish(ctx context.Context, fetchedAt time.Time, quakes []domain.Earthquake) error {
	if len(quakes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(quakes))
	for i := range quakes {
		msg, err := serializeToMessage(quakes[i], fetchedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write earthquakes: %w", err)
	}
	w.logger.Debug("earthquakes published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Earthquake into a Kafka message keyed by its detail URL.
func serializeToMessage(eq domain.Earthquake, fetchedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(eq)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(eq.DetailURL()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "magnitude_bucket", Value: []byte(present.Bucket(eq.Magnitude()).String())},
			{Key: "fetched_at", Value: []byte(fetchedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
