package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-report-etl/internal/config"
	"github.com/couchcryptid/covid-report-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafkago.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces the country rows of the most recent report date to a
// Kafka topic, one message per country keyed by region.
// It implements pipeline.ResultSink.
type Publisher struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return NewPublisherWithWriter(w, logger)
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger}
}

func (p *Publisher) Name() string { return "kafka" }

// Publish writes every country row of the last indexed date in a single
// WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, res *domain.IngestionResult) error {
	dateKey, msgs, err := latestMessages(res)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write country rows: %w", err)
	}
	p.logger.Info("published latest country rows", "messages", len(msgs), "date_key", dateKey)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// latestMessages selects the country rows dated on the last ordinal of the index.
func latestMessages(res *domain.IngestionResult) (string, []kafkago.Message, error) {
	last := res.Dates.Last()
	if last < 0 {
		return "", nil, nil
	}
	key, err := res.Dates.Key(last)
	if err != nil {
		return "", nil, err
	}

	var msgs []kafkago.Message
	for _, row := range res.Countries.Rows() {
		if row.DateKey != key {
			continue
		}
		msg, err := serializeToMessage(row, res.BuiltAt)
		if err != nil {
			return "", nil, err
		}
		msgs = append(msgs, msg)
	}
	return key, msgs, nil
}

// serializeToMessage marshals a country Observation into a Kafka message.
func serializeToMessage(obs domain.Observation, builtAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(obs.Region),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "date_key", Value: []byte(obs.DateKey)},
			{Key: "built_at", Value: []byte(builtAt.Format(time.RFC3339))},
		},
	}, nil
}
