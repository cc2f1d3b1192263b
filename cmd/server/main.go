package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"travelsync/internal/app"
	"travelsync/internal/config"
	"travelsync/internal/handler"
	internalRedis "travelsync/internal/redis"
	"travelsync/internal/repository/postgres"
	"travelsync/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	otpStore := internalRedis.NewOTPStore(redisClient, cfg.Auth.OTPTTL)
	statusStore := internalRedis.NewSyncStatusStore(redisClient)

	// Initialize repositories.
	userRepo := postgres.NewUserRepository(db)
	tripRepo := postgres.NewTripRepository(db)
	locationRepo := postgres.NewLocationRepository(db)
	expenseRepo := postgres.NewExpenseRepository(db)
	conflictRepo := postgres.NewConflictRepository(db)
	revisionRepo := postgres.NewRevisionLogRepository(db)
	txRunner := postgres.NewTxRunner(db)

	// Initialize services.
	syncCfg := service.SyncConfig{
		MaxBatchSize: cfg.Sync.MaxBatchSize,
		LockTTL:      cfg.Sync.LockTTL,
		LockWait:     cfg.Sync.LockWait,
	}
	syncService := service.NewSyncService(tripRepo, expenseRepo, conflictRepo, revisionRepo, txRunner, lockStore, statusStore, syncCfg)
	conflictService := service.NewConflictService(tripRepo, expenseRepo, conflictRepo, txRunner, lockStore, syncCfg)
	statusService := service.NewStatusService(conflictRepo, statusStore)
	tripService := service.NewTripService(tripRepo, locationRepo, revisionRepo, txRunner, lockStore, syncService)
	expenseService := service.NewExpenseService(expenseRepo, revisionRepo, txRunner, lockStore, syncService)
	notifier := service.NewSMSNotifier()
	authService := service.NewAuthService(userRepo, otpStore, notifier, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Initialize handlers.
	authHandler := handler.NewAuthHandler(authService)
	syncHandler := handler.NewSyncHandler(syncService, statusService)
	conflictHandler := handler.NewConflictHandler(conflictService)
	tripHandler := handler.NewTripHandler(tripService)
	expenseHandler := handler.NewExpenseHandler(expenseService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		AuthHandler:     authHandler,
		SyncHandler:     syncHandler,
		ConflictHandler: conflictHandler,
		TripHandler:     tripHandler,
		ExpenseHandler:  expenseHandler,
		TokenValidator:  authService,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
