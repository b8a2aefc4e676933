package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizops-analytics/internal/app"
	"bizops-analytics/internal/cache"
	"bizops-analytics/internal/config"
	httpapi "bizops-analytics/internal/http"
	"bizops-analytics/internal/http/handlers"
	"bizops-analytics/internal/logger"
	"bizops-analytics/internal/queue"
	"bizops-analytics/internal/storage"
	"bizops-analytics/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	rt, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer rt.Close(context.Background())

	metricCache := cache.NewTTL("analytics", 500)
	wsServer := ws.New(rt.Analytics, log, cfg)

	h := &handlers.Handler{
		Analytics: rt.Analytics,
		Cache:     metricCache,
		Logger:    log,
		Config:    cfg,
		Location:  rt.Location,
	}

	if cfg.ObjectStoreEnabled() {
		store, err := storage.NewObjectStore(ctx, storage.ConfigFrom(cfg))
		if err != nil {
			log.Warn("object store unavailable; reports will be streamed", zap.Error(err))
		} else {
			h.Reports = store
			log.Info("report exports enabled", zap.String("bucket", cfg.ObjectStoreBucket))
		}
	}

	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err == nil {
			if err = queue.EnsureInvalidationTopology(qc); err != nil {
				_ = qc.Close()
			}
		}
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq setup failed", zap.Error(err))
			}
			log.Warn("rabbitmq setup failed; continuing without invalidation worker", zap.Error(err))
		} else {
			defer qc.Close()
			if cfg.RabbitMQWorkerMode == "daemon" {
				log.Info("invalidation worker enabled", zap.String("queue", queue.InvalidateQueue))
				go func() {
					handler := queue.InvalidationHandler(metricCache, wsServer, log)
					if err := qc.ConsumeWithRetry(ctx, queue.InvalidateQueue, handler, 5, 5*time.Second); err != nil && ctx.Err() == nil {
						log.Error("consumer stopped", zap.Error(err))
					}
				}()
			} else {
				log.Info("invalidation worker disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
			}
		}
	} else {
		log.Info("invalidation worker disabled (RABBITMQ_URL is empty)")
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(h, log, cfg, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("analytics api ready", zap.String("base", "/api/analytics"))
		log.Info("analytics ws ready", zap.String("base", "/ws/analytics"))
		log.Info("analytics service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopWorkers()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
