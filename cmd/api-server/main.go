// cmd/api-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"finserv-workers/internal/api"
	commonaws "finserv-workers/internal/common/aws"
	"finserv-workers/internal/common/config"
	"finserv-workers/internal/common/database"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/queue"
	"finserv-workers/internal/store"
	"finserv-workers/internal/template"
	"finserv-workers/internal/workers/export"
	"finserv-workers/internal/workers/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting API server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		zapLog.Fatal("postgres ping failed", zap.Error(err))
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis init failed", zap.Error(err))
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		zapLog.Fatal("redis ping failed", zap.Error(err))
	}

	notifStore := store.NewNotificationStore(pg.DB)
	exportStore := store.NewExportStore(pg.DB)
	templateStore := store.NewTemplateStore(pg.DB)
	auditStore := store.NewAuditStore(pg.DB)
	metricsStore := store.NewMetricsStore(pg.DB)
	renderer := template.NewRenderer(templateStore)

	notifQueue := queue.New(rdb.Client, queue.NotificationsQueue)
	notifService := notification.NewService(notifStore, templateStore, auditStore, renderer, notifQueue, log)

	// The API only mints presigned URLs; uploads happen in the worker.
	s3Client, err := commonaws.NewS3Client(ctx, cfg.Storage.Region)
	if err != nil {
		zapLog.Fatal("s3 client init failed", zap.Error(err))
	}
	exportCfg := export.LoadConfig(cfg.Storage.Bucket, cfg.Storage.PresignTTLSeconds, cfg.Workers.Export.TimeoutMS)
	exportQueue := queue.New(rdb.Client, queue.ExportsQueue)
	exportService := export.NewService(exportStore, pg.DB, s3Client, auditStore, exportQueue, exportCfg, log)

	router := api.SetupRouter(&api.Dependencies{
		Notifications: notifService,
		Exports:       exportService,
		Metrics:       metricsStore,
		Logger:        log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr}
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		zapLog.Info("metrics server listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		zapLog.Info("API server listening", zap.String("addr", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("api server shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("API server stopped")
}
