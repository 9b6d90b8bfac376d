// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"finserv-workers/internal/channels"
	commonaws "finserv-workers/internal/common/aws"
	"finserv-workers/internal/common/config"
	"finserv-workers/internal/common/database"
	commonhttp "finserv-workers/internal/common/http"
	"finserv-workers/internal/common/logger"
	"finserv-workers/internal/common/observability"
	"finserv-workers/internal/queue"
	"finserv-workers/internal/store"
	"finserv-workers/internal/template"
	"finserv-workers/internal/workers/aggregate"
	"finserv-workers/internal/workers/export"
	"finserv-workers/internal/workers/notification"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores and renderer ---
	notifStore := store.NewNotificationStore(pg.DB)
	exportStore := store.NewExportStore(pg.DB)
	templateStore := store.NewTemplateStore(pg.DB)
	auditStore := store.NewAuditStore(pg.DB)
	metricsStore := store.NewMetricsStore(pg.DB)
	renderer := template.NewRenderer(templateStore)

	// --- Channel senders. Disabled channels get a nil provider client and
	// report themselves unconfigured at send time. ---
	var emailSender, smsSender, whatsappSender channels.Sender

	if cfg.Channels.Email.Enabled {
		sesClient, err := commonaws.NewSESClient(ctx, cfg.Channels.AWS.Region, cfg.Channels.Email.FromEmail)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		emailSender = channels.NewEmailSender(sesClient, log)
	} else {
		emailSender = channels.NewEmailSender(nil, log)
	}

	if cfg.Channels.SMS.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.Channels.AWS.Region, cfg.Channels.SMS.SenderID)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		smsSender = channels.NewSMSSender(snsClient, log)
	} else {
		smsSender = channels.NewSMSSender(nil, log)
	}

	waTimeout := time.Duration(cfg.Channels.WhatsApp.TimeoutMS) * time.Millisecond
	whatsappSender = channels.NewWhatsAppSender(
		commonhttp.NewClient(waTimeout),
		cfg.Channels.WhatsApp.APIURL,
		cfg.Channels.WhatsApp.APIToken,
		log,
	)

	policy := queue.RetryPolicy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Queue.BaseDelayMS) * time.Millisecond,
		Multiplier:  cfg.Queue.Multiplier,
	}
	pollInterval := time.Duration(cfg.Queue.PollIntervalMS) * time.Millisecond

	var wg sync.WaitGroup

	// --- Notification consumer ---
	if cfg.Workers.Notification.Enabled {
		notifCfg := notification.LoadConfig(cfg.Workers.Notification.TimeoutMS)
		handler := notification.NewHandler(
			notifStore, auditStore, renderer,
			emailSender, smsSender, whatsappSender,
			log,
		)
		consumer := queue.NewConsumer(rdb.Client, queue.ConsumerConfig{
			Queue:        queue.NotificationsQueue,
			Handler:      handler,
			Policy:       policy,
			Concurrency:  cfg.Workers.Notification.Concurrency,
			TaskTimeout:  notifCfg.Timeout,
			PollInterval: pollInterval,
		}, log, obs)

		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	// --- Export consumer ---
	if cfg.Workers.Export.Enabled {
		s3Client, err := commonaws.NewS3Client(ctx, cfg.Storage.Region)
		if err != nil {
			zapLog.Fatal("s3 client init failed", zap.Error(err))
		}

		exportCfg := export.LoadConfig(cfg.Storage.Bucket, cfg.Storage.PresignTTLSeconds, cfg.Workers.Export.TimeoutMS)
		exportQueue := queue.New(rdb.Client, queue.ExportsQueue)
		exportService := export.NewService(exportStore, pg.DB, s3Client, auditStore, exportQueue, exportCfg, log)
		handler := export.NewHandler(exportService, log)

		consumer := queue.NewConsumer(rdb.Client, queue.ConsumerConfig{
			Queue:        queue.ExportsQueue,
			Handler:      handler,
			Policy:       policy,
			Concurrency:  cfg.Workers.Export.Concurrency,
			TaskTimeout:  exportCfg.Timeout,
			PollInterval: pollInterval,
		}, log, obs)

		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	// --- Daily metrics aggregation ---
	if cfg.Workers.Aggregate.Enabled {
		scheduler := aggregate.NewScheduler(
			aggregate.NewService(pg.DB, metricsStore, log),
			cfg.Workers.Aggregate.RunAt,
			log,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	}

	// --- Metrics and pprof endpoint ---
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr}
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		zapLog.Info("metrics server listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	zapLog.Info("Worker manager started")

	<-ctx.Done()
	zapLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("metrics server shutdown failed", zap.Error(err))
	}

	wg.Wait()
	zapLog.Info("Worker manager stopped")
}
