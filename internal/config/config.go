package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	MongoURI            string
	MongoDatabase       string
	JWTSecret           string
	CronSecret          string
	RabbitMQURL         string
	RabbitMQWorkerMode  string
	CorsAllowedOrigins  []string
	WSHeartbeatInterval time.Duration

	AnalyticsTimezone     string
	AnalyticsQueryTimeout time.Duration
	AnalyticsCacheTTL     time.Duration
	AnalyticsFanoutLimit  int
	ChatResponseWindow    time.Duration
	ChurnLookbackMonths   int
	SchemaProbeTTL        time.Duration
	DocstoreBreakerWindow time.Duration
	RateLimitRequests     int
	RateLimitWindow       time.Duration

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
}

func Load() Config {
	cfg := Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8090"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		MongoURI:            getEnvFirst([]string{"MONGODB_URI", "MONGO_URL"}, ""),
		MongoDatabase:       getEnv("MONGODB_DATABASE", "bizops"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		CronSecret:          getEnv("CRON_SECRET", ""),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode:  getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		CorsAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),

		AnalyticsTimezone:     getEnv("ANALYTICS_TIMEZONE", "UTC"),
		AnalyticsQueryTimeout: getEnvDuration("ANALYTICS_QUERY_TIMEOUT", 15*time.Second),
		AnalyticsCacheTTL:     getEnvDuration("ANALYTICS_CACHE_TTL", 5*time.Minute),
		AnalyticsFanoutLimit:  int(getEnvInt64("ANALYTICS_FANOUT_LIMIT", 4)),
		ChatResponseWindow:    getEnvDuration("CHAT_RESPONSE_WINDOW", 5*time.Minute),
		ChurnLookbackMonths:   int(getEnvInt64("CHURN_LOOKBACK_MONTHS", 2)),
		SchemaProbeTTL:        getEnvDuration("SCHEMA_PROBE_TTL", 10*time.Minute),
		DocstoreBreakerWindow: getEnvDuration("DOCSTORE_BREAKER_TIMEOUT", 30*time.Second),
		RateLimitRequests:     int(getEnvInt64("ANALYTICS_RATE_LIMIT", 120)),
		RateLimitWindow:       getEnvDuration("ANALYTICS_RATE_WINDOW", time.Minute),

		// Object store (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStorePublicBaseURL:   getEnvFirst([]string{"OBJECT_STORE_PUBLIC_BASE_URL", "R2_PUBLIC_BASE_URL"}, ""),
		ObjectStoreStorageClass:    getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
	}

	if cfg.AnalyticsFanoutLimit <= 0 {
		cfg.AnalyticsFanoutLimit = 4
	}
	if cfg.ChurnLookbackMonths <= 0 {
		cfg.ChurnLookbackMonths = 2
	}
	if cfg.ChatResponseWindow <= 0 {
		cfg.ChatResponseWindow = 5 * time.Minute
	}

	// Back-compat: allow R2_ACCOUNT_ID -> endpoint
	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(os.Getenv("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg
}

// ObjectStoreEnabled reports whether report exports can be uploaded.
func (c Config) ObjectStoreEnabled() bool {
	return c.ObjectStoreEndpoint != "" && c.ObjectStoreBucket != ""
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
