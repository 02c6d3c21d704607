package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/podsmith/backend/internal/config"
)

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "briefings", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "briefings", cfg.KafkaTopic)
	require.Equal(t, "briefing-archiver", cfg.KafkaConsumer)
	require.Equal(t, 24*time.Hour, cfg.DedupeTTL)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093,")
	t.Setenv("KAFKA_TOPIC", "custom_topic")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
}

func TestLoadWorkerRejectsInvalid(t *testing.T) {
	t.Setenv("WORKER_BATCH_SIZE", "0")
	_, err := config.LoadWorker()
	require.Error(t, err)

	t.Setenv("WORKER_BATCH_SIZE", "1")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err = config.LoadWorker()
	require.Error(t, err)
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("NEWSAPI_KEY", "secret")
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")
	t.Setenv("DEDUPE_THRESHOLD", "0.85")
	t.Setenv("NEWSAPI_TIMEOUT", "10s")
	t.Setenv("PUBLISH_ENABLED", "false")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
	require.Equal(t, "secret", cfg.NewsAPIKey)
	require.Equal(t, "https://newsapi.org", cfg.NewsAPIBaseURL)
	require.Equal(t, 10*time.Second, cfg.NewsAPITimeout)
	require.Equal(t, 100, cfg.NewsAPIPageSize)
	require.Equal(t, 0.85, cfg.DedupeThreshold)
	require.Equal(t, 2000, cfg.DedupeWarnAbove)
	require.False(t, cfg.PublishEnabled)
	require.True(t, cfg.ArchiveEnabled)
}

func TestLoadAPIValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing key", env: map[string]string{"NEWSAPI_KEY": ""}},
		{name: "threshold too high", env: map[string]string{"DEDUPE_THRESHOLD": "1.5"}},
		{name: "threshold zero", env: map[string]string{"DEDUPE_THRESHOLD": "0"}},
		{name: "page size", env: map[string]string{"NEWSAPI_PAGE_SIZE": "500"}},
		{name: "page exceeds max", env: map[string]string{"API_PAGE_SIZE": "50", "API_MAX_PAGE_SIZE": "10"}},
		{name: "request timeout too short", env: map[string]string{"API_REQUEST_TIMEOUT": "5s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NEWSAPI_KEY", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadAPI()
			require.Error(t, err)
		})
	}
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}

func TestLoadRetentionInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("RETENTION_CRON", "soon")
	t.Setenv("RETENTION_MAX_AGE", "")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.Interval)
	require.Equal(t, 720*time.Hour, cfg.MaxAge)
}
