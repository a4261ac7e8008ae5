package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/facturalink/dte-backend/config"
	"github.com/facturalink/dte-backend/internal/app/controller"
	"github.com/facturalink/dte-backend/internal/app/repository"
	"github.com/facturalink/dte-backend/internal/app/service"
	"github.com/facturalink/dte-backend/internal/db"
	"github.com/facturalink/dte-backend/internal/middleware"
	"github.com/facturalink/dte-backend/internal/queue"
	"github.com/facturalink/dte-backend/internal/router"
	"github.com/facturalink/dte-backend/internal/scheduler"
	"github.com/facturalink/dte-backend/internal/storage"
	"github.com/facturalink/dte-backend/internal/websocket"
	"github.com/facturalink/dte-backend/internal/worker"
	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/facturalink/dte-backend/pkg/redis"
	"github.com/facturalink/dte-backend/pkg/tokenstore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting FacturaLink DTE Backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Initialize Redis (queue backend and token blacklist)
	if err := redis.Init(&cfg.Redis); err != nil {
		logger.Fatal("Failed to initialize Redis", err)
	}
	defer func() {
		if err := redis.Close(); err != nil {
			logger.Error("Failed to close Redis connection", err)
		}
	}()

	// Hacienda reception client
	haciendaCfg := hacienda.Config{
		TestBaseURL:       cfg.Hacienda.TestBaseURL,
		ProductionBaseURL: cfg.Hacienda.ProductionBaseURL,
		AuthTimeout:       cfg.Hacienda.AuthTimeout,
		SubmitTimeout:     cfg.Hacienda.SubmitTimeout,
		QueryTimeout:      cfg.Hacienda.QueryTimeout,
	}
	haciendaClient, err := hacienda.NewClient(haciendaCfg)
	if err != nil {
		logger.Fatal("Failed to create Hacienda client", err)
	}

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db.GetDB())
	documentRepo := repository.NewDocumentRepository(db.GetDB())
	transmissionRepo := repository.NewTransmissionRepository(db.GetDB())
	complianceRepo := repository.NewComplianceRepository(db.GetDB())
	onboardingRepo := repository.NewOnboardingRepository(db.GetDB())
	recurrenceRepo := repository.NewRecurrenceRepository(db.GetDB())

	// Token cache shared by all workers
	credProvider := service.NewAuthorityCredentialProvider(tenantRepo)
	tokens := tokenstore.New(haciendaClient, credProvider, tokenstore.TTLs{
		Test:       cfg.Hacienda.TestTokenTTL,
		Production: cfg.Hacienda.ProductionTokenTTL,
	})

	// Transmission queue on Redis
	retryPolicy := queue.RetryPolicy{
		MaxAttempts:       cfg.Queue.MaxAttempts,
		BackoffBase:       cfg.Queue.BackoffBase,
		BackoffMultiplier: cfg.Queue.BackoffMultiplier,
	}
	transmissionQueue := queue.NewRedisQueue(redis.GetClient(), cfg.Queue.DocumentLockTTL, cfg.Queue.VisibilityTimeout, queue.RetentionPolicy{
		KeepCompleted: cfg.Queue.KeepCompleted,
		KeepFailed:    cfg.Queue.KeepFailed,
	})

	// Initialize services
	authService := service.NewAuthService(tenantRepo, cfg.JWT)
	documentService := service.NewDocumentService(documentRepo)
	complianceService := service.NewComplianceService(complianceRepo, onboardingRepo)
	onboardingService := service.NewOnboardingService(onboardingRepo, tenantRepo, complianceService)
	transmissionService := service.NewTransmissionService(documentRepo, transmissionRepo, tenantRepo, transmissionQueue, retryPolicy)
	recurrenceService := service.NewRecurrenceService(recurrenceRepo, documentService, transmissionService)
	reportService := service.NewReportService(documentRepo)

	// Event fan-out: websocket hub plus optional S3 archive
	hub := websocket.NewHub()
	go hub.Run()

	var archive storage.DocumentArchive
	if cfg.Archive.Enabled {
		archive = storage.NewS3Archive(
			cfg.Archive.Region,
			cfg.Archive.Bucket,
			cfg.Archive.AccessKeyID,
			cfg.Archive.SecretAccessKey,
		)
	}
	events := service.NewTransmissionEvents(complianceService, hub, archive)

	// Transmission worker pool
	transmissionWorker := worker.New(
		transmissionQueue,
		documentRepo,
		transmissionRepo,
		tokens,
		haciendaClient,
		service.NewLogNotifier(),
		events,
		retryPolicy,
		cfg.Queue.PollInterval,
		cfg.Queue.WorkerCount,
	)
	transmissionWorker.Start()
	defer transmissionWorker.Stop()

	// Recurring-template scheduler
	recurrenceScheduler := scheduler.NewRecurrenceScheduler(recurrenceService)
	if err := recurrenceScheduler.Start(); err != nil {
		logger.Fatal("Failed to start recurrence scheduler", err)
	}
	defer recurrenceScheduler.Stop()

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	documentController := controller.NewDocumentController(documentService)
	transmissionController := controller.NewTransmissionController(transmissionService)
	complianceController := controller.NewComplianceController(complianceService)
	onboardingController := controller.NewOnboardingController(onboardingService)
	recurrenceController := controller.NewRecurrenceController(recurrenceService)
	reportController := controller.NewReportController(reportService)
	eventStreamController := controller.NewEventStreamController(hub, cfg.CORS.AllowedOrigins)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Setup router
	r := router.NewRouter(
		authController,
		documentController,
		transmissionController,
		complianceController,
		onboardingController,
		recurrenceController,
		reportController,
		eventStreamController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
