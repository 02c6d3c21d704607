// Package broker publishes finished briefings to Kafka.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/podsmith/backend/internal/models"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes briefings keyed by their ID so re-publishes land on one partition.
type Publisher struct {
	w   MessageWriter
	log *slog.Logger
	now func() time.Time
}

// NewPublisher builds a publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
	return NewPublisherWithWriter(w, logger)
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{w: w, log: logger, now: time.Now}
}

// Publish serializes doc and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, doc *models.Briefing) error {
	if doc == nil || doc.ID == "" {
		return errors.New("briefing without id")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal briefing: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(doc.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content_type", Value: []byte("application/json")},
			{Key: "published_at", Value: []byte(p.now().UTC().Format(time.RFC3339))},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish briefing %s: %w", doc.ID, err)
	}

	p.log.Debug("published briefing", slog.String("id", doc.ID), slog.Int("bytes", len(payload)))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
