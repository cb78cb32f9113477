package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/config"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/mqhandler"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/repository"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/service"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/db"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/logger"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mq"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/outbox"
	redisclient "github.com/MStee09/BoltFreightCSP-sub004/pkg/redis"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/util"
)

const (
	stallSweepInterval = 24 * time.Hour
	digestRunInterval  = 24 * time.Hour
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting worker service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, 24*time.Hour, log)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// Init RabbitMQ publisher (outbox dispatch + DLQ)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init repositories and services
	userRepo := repository.NewUserRepository(dbConn)
	digestRepo := repository.NewDigestRepository(dbConn)
	pipelineRepo := repository.NewPipelineRepository(dbConn)
	mailStore := repository.NewMailStore(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	receiver := service.NewInboundReceiver(mailStore.Threads(), mailStore.Activities(), mailStore, log)
	stallDetector := service.NewStallDetector(mailStore, cfg.Jobs.StallThresholdDays, log)
	digestAggregator := service.NewDigestAggregator(
		digestRepo, pipelineRepo, userRepo,
		cfg.Jobs.ExpiryHorizonDays, cfg.Jobs.ExpiryUrgentDays, cfg.Jobs.StallThresholdDays,
		log,
	)

	// Outbox dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	go dispatcher.Start(ctx)

	// Consumer for email.inbound events
	inboundHandler := mqhandler.NewEmailInboundHandler(receiver, deduper, retryCounter, publisher, log)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, "email.inbound.correlate.q", mq.KeyEmailInbound, log)
	if err != nil {
		log.Fatal("failed to init inbound consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(inboundHandler.Handle)
	go func() {
		log.Info("Starting inbound consumer")
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("inbound consumer failed", zap.Error(err))
		}
	}()

	// Periodic jobs
	go runPeriodic(ctx, stallSweepInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := stallDetector.Sweep(jobCtx); err != nil {
			log.Error("Scheduled stall sweep failed", zap.Error(err))
		}
	})
	go runPeriodic(ctx, digestRunInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
		defer cancel()
		if _, _, err := digestAggregator.GenerateAll(jobCtx, time.Now()); err != nil {
			log.Error("Scheduled digest run failed", zap.Error(err))
		}
	})

	// Health / metrics endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbConn.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	httpSrv := &http.Server{Addr: cfg.Server.WorkerPort, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("worker HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("Worker is ready to process messages")

	<-ctx.Done()
	log.Info("Shutdown signal received, stopping worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("worker HTTP shutdown failed", zap.Error(err))
	}
}

func runPeriodic(ctx context.Context, interval time.Duration, job func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	job()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job()
		}
	}
}
