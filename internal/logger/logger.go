package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "bizops-analytics"

func New(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "development" || env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": serviceName}
	return cfg.Build()
}

// ForBusiness scopes a logger to one tenant.
func ForBusiness(log *zap.Logger, businessID string) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log.With(zap.String("businessId", businessID))
}
