package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/podsmith/backend/internal/config"
	"github.com/podsmith/backend/internal/dedupe"
	"github.com/podsmith/backend/internal/elasticsearch"
	"github.com/podsmith/backend/internal/logger"
	"github.com/podsmith/backend/internal/models"
)

type briefingIndexer interface {
	IndexBriefing(ctx context.Context, doc *models.Briefing) error
}

type dlqWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	_ = godotenv.Load()

	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := esClient.EnsureIndex(initCtx); err != nil {
		log.Warn("ensure index failed, relying on dynamic mapping", slog.Any("err", err))
	}
	cancel()

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlq := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlq.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, cache, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			// Commit only once the DLQ has the message; otherwise it is reprocessed on restart.
			if err := sendToDLQ(ctx, log, dlq, msg, err, time.Second); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info("context canceled during DLQ retry")
					return
				}
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage archives one published briefing. Briefings already archived
// within the cache TTL are skipped.
func processMessage(ctx context.Context, log *slog.Logger, indexer briefingIndexer, cache *dedupe.Cache, msg kafka.Message) error {
	var doc models.Briefing
	if err := json.Unmarshal(msg.Value, &doc); err != nil {
		return fmt.Errorf("decode briefing: %w", err)
	}

	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		doc.ID = strings.TrimSpace(string(msg.Key))
	}
	if doc.ID == "" {
		return errors.New("briefing without id")
	}

	if cache.Contains(doc.ID) {
		log.Debug("duplicate briefing", slog.String("id", doc.ID))
		return nil
	}

	if doc.Settings.GeneratedAt.IsZero() {
		doc.Settings.GeneratedAt = msg.Time.UTC()
		if doc.Settings.GeneratedAt.IsZero() {
			doc.Settings.GeneratedAt = time.Now().UTC()
		}
	}

	if err := indexer.IndexBriefing(ctx, &doc); err != nil {
		return err
	}

	cache.Add(doc.ID)
	log.Info("archived briefing",
		slog.String("id", doc.ID),
		slog.Int("categories", len(doc.Articles)),
		slog.Int("results", doc.Settings.ResultsReported),
	)
	return nil
}

// sendToDLQ writes msg with error context, retrying with exponential backoff.
func sendToDLQ(ctx context.Context, log *slog.Logger, w dlqWriter, msg kafka.Message, cause error, baseBackoff time.Duration) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	)
	dlqMsg := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if lastErr = w.WriteMessages(ctx, dlqMsg); lastErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		backoff := baseBackoff * time.Duration(1<<uint(attempt))
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("dlq write: %w", lastErr)
}
