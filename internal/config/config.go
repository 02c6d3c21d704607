package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Kafka names the brokers and the topic briefings are published on.
type Kafka struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// NewsAPI configures the article search client.
type NewsAPI struct {
	NewsAPIKey      string
	NewsAPIBaseURL  string
	NewsAPITimeout  time.Duration
	NewsAPIPageSize int
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Kafka
	NewsAPI
	BindAddr        string
	CatalogPath     string
	DedupeThreshold float64
	DedupeWarnAbove int
	PublishEnabled  bool
	ArchiveEnabled  bool
	DefaultPage     int
	MaxPage         int
	RequestTimeout  time.Duration
}

// Worker holds configuration for the Kafka -> Elasticsearch archiver.
type Worker struct {
	Common
	Kafka
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "briefings"),
	}
}

func loadKafka() (Kafka, error) {
	k := Kafka{
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "briefings"),
	}
	if len(k.KafkaBrokers) == 0 {
		return Kafka{}, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	return k, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	kafka, err := loadKafka()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common: loadCommon(),
		Kafka:  kafka,
		NewsAPI: NewsAPI{
			NewsAPIKey:      getEnv("NEWSAPI_KEY", ""),
			NewsAPIBaseURL:  getEnv("NEWSAPI_BASE_URL", "https://newsapi.org"),
			NewsAPITimeout:  getDuration("NEWSAPI_TIMEOUT", "30s"),
			NewsAPIPageSize: getInt("NEWSAPI_PAGE_SIZE", 100),
		},
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		CatalogPath:     getEnv("CATALOG_PATH", ""),
		DedupeThreshold: getFloat("DEDUPE_THRESHOLD", 0.9),
		DedupeWarnAbove: getInt("DEDUPE_WARN_ABOVE", 2000),
		PublishEnabled:  getBool("PUBLISH_ENABLED", true),
		ArchiveEnabled:  getBool("ARCHIVE_ENABLED", true),
		DefaultPage:     getInt("API_PAGE_SIZE", 20),
		MaxPage:         getInt("API_MAX_PAGE_SIZE", 100),
		RequestTimeout:  getDuration("API_REQUEST_TIMEOUT", "45s"),
	}

	if c.NewsAPIKey == "" {
		return nil, fmt.Errorf("NEWSAPI_KEY is required")
	}
	if c.NewsAPIPageSize <= 0 || c.NewsAPIPageSize > 100 {
		return nil, fmt.Errorf("NEWSAPI_PAGE_SIZE must be between 1 and 100")
	}
	if c.DedupeThreshold <= 0 || c.DedupeThreshold > 1 {
		return nil, fmt.Errorf("DEDUPE_THRESHOLD must be in (0, 1]")
	}
	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if c.RequestTimeout <= c.NewsAPITimeout {
		return nil, fmt.Errorf("API_REQUEST_TIMEOUT must exceed NEWSAPI_TIMEOUT")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	kafka, err := loadKafka()
	if err != nil {
		return nil, err
	}

	c := &Worker{
		Common:         loadCommon(),
		Kafka:          kafka,
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "briefing-archiver"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
