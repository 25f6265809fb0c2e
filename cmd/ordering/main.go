package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"

	cfg "github.com/quickbite/food-ordering-app/backend/config"
	"github.com/quickbite/food-ordering-app/backend/internal/gateway/clients"
	"github.com/quickbite/food-ordering-app/backend/internal/handlers"
	"github.com/quickbite/food-ordering-app/backend/internal/usecases"
	repository "github.com/quickbite/food-ordering-app/backend/internal/usecases/repository"
	"github.com/quickbite/food-ordering-app/backend/internal/workers"
	"github.com/quickbite/food-ordering-app/backend/pkg/cache"
	"github.com/quickbite/food-ordering-app/backend/pkg/database"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrationsPath := "./migrations"
	if workDir, err := os.Getwd(); err == nil {
		if _, err := os.Stat(filepath.Join(workDir, "migrations")); !os.IsNotExist(err) {
			migrationsPath = filepath.Join(workDir, "migrations")
		} else if _, err := os.Stat(filepath.Join(workDir, "..", "migrations")); !os.IsNotExist(err) {
			migrationsPath = filepath.Join(workDir, "..", "migrations")
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Info("Starting application with configuration",
		"environment", config.App.Environment,
		"debug", config.App.Debug,
		"server_port", config.HTTP.Port)

	// Connect to Database
	pg, err := database.New(config,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		database.Isolation(pgx.ReadCommitted),
	)
	if err != nil {
		logger.Error("postgres connection failed", slog.String("error", err.Error()))
		return
	}
	defer pg.Close()

	// Run database migrations
	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		log.Fatal(err)
	}
	logger.Info("Database migrations completed successfully")

	// Connect to Redis
	redisClient, err := cache.New(logger, config.Redis.RedisURL)
	if err != nil {
		logger.Error("redis connection failed", slog.String("error", err.Error()))
		return
	}
	defer redisClient.Close()

	// Create repositories
	ordersRepository := repository.NewOrdersRepository(logger, pg)
	menuRepository := repository.NewMenuRepository(logger, pg)
	webhookRepository := repository.NewWebhookAuditRepository(logger, pg)

	// Payment gateway client
	razorpayClient := clients.NewRazorpayClient(
		logger,
		config.Razorpay.KeyID,
		config.Razorpay.KeySecret,
		config.Razorpay.APIURL,
		config.Razorpay.Currency,
	)
	logger.Info("Payment gateway initialized", "enabled", razorpayClient.IsEnabled())

	// Create usecases
	idempotencyGuard := usecases.NewIdempotencyGuard(
		logger,
		redisClient,
		time.Duration(config.Idempotency.TTLSeconds)*time.Second,
		config.Idempotency.FailOpen,
	)

	orderService := usecases.NewOrderService(logger, ordersRepository, menuRepository, razorpayClient, idempotencyGuard)
	paymentService := usecases.NewPaymentService(logger, ordersRepository, config.Razorpay.KeySecret)
	webhookService := usecases.NewWebhookService(logger, ordersRepository, webhookRepository, pg.Transactor, config.Razorpay.WebhookSecret)
	menuService := usecases.NewMenuService(logger, menuRepository, redisClient)

	// Initialize and run workers
	initAndRunWorkers(ctx, logger, config, orderService)

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger, orderService, paymentService, webhookService, menuService, pg, redisClient)

	// Create router
	router := mux.NewRouter()
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(config.HTTP.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	})

	// Wrap router in CORS middleware
	handler := c.Handler(router)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	cancel()

	// Give 5 seconds to complete current requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

func initAndRunWorkers(
	ctx context.Context,
	logger *slog.Logger,
	config *cfg.Config,
	orderService *usecases.OrderService,
) {
	paymentExpirer := workers.NewPaymentExpirer(
		logger,
		orderService,
		time.Duration(config.Workers.PaymentExpiration)*time.Minute,
		time.Duration(config.Workers.PaymentSweepInterval)*time.Minute,
	)

	go func() {
		logger.Info("Starting payment expirer worker")
		paymentExpirer.Start(ctx)
	}()

	logger.Info("All workers initialized and started")
}
