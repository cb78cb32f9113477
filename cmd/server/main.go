package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/config"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/api"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/repository"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/service"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/circuitbreaker"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/db"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/logger"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mailer"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	// 2. Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// 3. Init repositories
	userRepo := repository.NewUserRepository(dbConn)
	credRepo := repository.NewCredentialRepository(dbConn)
	digestRepo := repository.NewDigestRepository(dbConn)
	pipelineRepo := repository.NewPipelineRepository(dbConn)
	mailStore := repository.NewMailStore(dbConn)

	// 4. Init SMTP transport with circuit breaker
	transport := mailer.NewSMTPTransport(
		cfg.SMTP.Host,
		cfg.SMTP.TLSVerify,
		time.Duration(cfg.SMTP.TimeoutMS)*time.Millisecond,
		log,
	)
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())

	// 5. Init services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret)
	supervisor := service.NewReconnectSupervisor(log)
	sender := service.NewOutboundSender(credRepo, mailStore.Threads(), mailStore, transport, breaker, log)
	receiver := service.NewInboundReceiver(mailStore.Threads(), mailStore.Activities(), mailStore, log)
	stallDetector := service.NewStallDetector(mailStore, cfg.Jobs.StallThresholdDays, log)
	digestAggregator := service.NewDigestAggregator(
		digestRepo, pipelineRepo, userRepo,
		cfg.Jobs.ExpiryHorizonDays, cfg.Jobs.ExpiryUrgentDays, cfg.Jobs.StallThresholdDays,
		log,
	)

	// 6. Init handlers
	authHandler := api.NewAuthHandler(authService)
	emailHandler := api.NewEmailHandler(sender, supervisor, mailStore.Activities(), log)
	inboundHandler := api.NewInboundHandler(receiver, log)
	jobsHandler := api.NewJobsHandler(stallDetector, digestAggregator, log)
	credentialHandler := api.NewCredentialHandler(credRepo, supervisor, log)

	// 7. Init router
	router := api.NewRouter(
		authHandler,
		emailHandler,
		inboundHandler,
		jobsHandler,
		credentialHandler,
		dbConn,
		cfg.JWT.Secret,
	)

	// 8. Run server
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}
}
