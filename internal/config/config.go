package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and the worker.
type Config struct {
	Port string

	AuthToken          string
	CORSAllowedOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int

	CozeAPIKey          string
	CozeWorkflowID      string
	CozeBaseURL         string
	CozeAPIMode         string
	CozeRunTimeoutMS    int
	CozeStreamTimeoutMS int

	DocumentWebhookURL    string
	DocumentExportBaseURL string
	DocumentTimeoutMS     int

	S3Bucket          string
	S3Prefix          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool
	S3PublicBaseURL   string

	BlobDir           string
	BlobPublicBaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	DatabaseURL string

	QueueBatchingEnabled     bool
	QueueBatchSize           int
	QueueBatchFlushMS        int
	QueueBatchFlushTimeoutMS int
	QueueBatchQueueCapacity  int
	QueueBatchMaxInFlight    int

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken:          getEnv("API_AUTH_TOKEN", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "*"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CozeAPIKey:          getEnv("COZE_API_KEY", ""),
		CozeWorkflowID:      getEnv("COZE_WORKFLOW_ID", ""),
		CozeBaseURL:         getEnv("COZE_BASE_URL", "https://api.coze.cn"),
		CozeAPIMode:         getEnv("COZE_API_MODE", "stream"),
		CozeRunTimeoutMS:    getEnvInt("COZE_RUN_TIMEOUT_MS", 30000),
		CozeStreamTimeoutMS: getEnvInt("COZE_STREAM_TIMEOUT_MS", 120000),

		DocumentWebhookURL:    getEnv("DOCUMENT_WEBHOOK_URL", ""),
		DocumentExportBaseURL: getEnv("DOCUMENT_EXPORT_BASE_URL", "https://docs.google.com/document"),
		DocumentTimeoutMS:     getEnvInt("DOCUMENT_TIMEOUT_MS", 30000),

		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", "documents"),
		S3Region:          getEnv("S3_REGION", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3ForcePathStyle:  getEnvBool("S3_FORCE_PATH_STYLE", false),
		S3PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),

		BlobDir:           getEnv("BLOB_DIR", ""),
		BlobPublicBaseURL: getEnv("BLOB_PUBLIC_BASE_URL", "/files"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "workflow_tasks"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "workflow_tasks_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "workflow_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "worker-1"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		QueueBatchingEnabled:     getEnvBool("QUEUE_BATCHING_ENABLED", false),
		QueueBatchSize:           getEnvInt("QUEUE_BATCH_SIZE", 32),
		QueueBatchFlushMS:        getEnvInt("QUEUE_BATCH_FLUSH_MS", 25),
		QueueBatchFlushTimeoutMS: getEnvInt("QUEUE_BATCH_FLUSH_TIMEOUT_MS", 3000),
		QueueBatchQueueCapacity:  getEnvInt("QUEUE_BATCH_QUEUE_CAPACITY", 2048),
		QueueBatchMaxInFlight:    getEnvInt("QUEUE_BATCH_MAX_IN_FLIGHT", 4),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvList(key, fallback string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
