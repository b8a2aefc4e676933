package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "HTTP_ADDR", "ANALYTICS_CACHE_TTL", "ANALYTICS_FANOUT_LIMIT", "CHURN_LOOKBACK_MONTHS", "OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT", "R2_ACCOUNT_ID", "OBJECT_STORE_BUCKET", "R2_BUCKET"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8090", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.AnalyticsCacheTTL)
	assert.Equal(t, 4, cfg.AnalyticsFanoutLimit)
	assert.Equal(t, 2, cfg.ChurnLookbackMonths)
	assert.False(t, cfg.ObjectStoreEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANALYTICS_CACHE_TTL", "90s")
	t.Setenv("ANALYTICS_FANOUT_LIMIT", "-3")
	t.Setenv("CHAT_RESPONSE_WINDOW", "not-a-duration")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	t.Setenv("OBJECT_STORE_ENDPOINT", "")
	t.Setenv("R2_S3_ENDPOINT", "")
	t.Setenv("R2_ACCOUNT_ID", "acct")
	t.Setenv("R2_BUCKET", "exports")

	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.AnalyticsCacheTTL)
	assert.Equal(t, 4, cfg.AnalyticsFanoutLimit)
	assert.Equal(t, 5*time.Minute, cfg.ChatResponseWindow)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CorsAllowedOrigins)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", cfg.ObjectStoreEndpoint)
	assert.True(t, cfg.ObjectStoreEnabled())
}
