package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-issuance/internal/api"
	"ms-issuance/internal/auth"
	"ms-issuance/internal/batch"
	"ms-issuance/internal/config"
	"ms-issuance/internal/database/migrations"
	"ms-issuance/internal/issuance"
	"ms-issuance/internal/kafka"
	"ms-issuance/internal/ledger"
	"ms-issuance/internal/logger"
	"ms-issuance/internal/templates"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Database.Username, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Ticket Issuance Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	if os.Getenv("AUTO_MIGRATE") == "true" {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.Run(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
		logger.Info("DATABASE", "Migrations applied")
	}

	db := ledger.NewDB(bunDB)
	templateStore := templates.NewStore(bunDB)

	issuer := issuance.NewService(db, cfg.Issuance.QRSize, cfg.Issuance.RenderDPI)
	issuer.Retries = cfg.Issuance.StorageRetries
	issuer.Backoff = cfg.Issuance.RetryBackoff

	scheduler := batch.NewScheduler(cfg.Issuance, issuer, db, templateStore).
		WithProgressCache(batch.NewRedisProgressCache(redisClient)).
		WithLogger(logger)

	ledgerService := ledger.NewService(db)
	ledgerService.Locks = ledger.NewScanLocks(redisClient, cfg.Issuance.ScanLockTTL)
	ledgerService.Logger = logger

	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		producer.TopicScanned = cfg.Kafka.Topics.TicketScanned
		producer.TopicJobs = cfg.Kafka.Topics.JobCompleted
		defer producer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.TicketScanned,
			cfg.Kafka.Topics.JobCompleted,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}

		scheduler.WithProducer(producer)
		ledgerService.Producer = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		logger.Warn("KAFKA", "Kafka disabled, domain events will not be published")
	}

	handler := api.NewHandler(scheduler, ledgerService, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// Issuance, progress, archive and analytics endpoints are called by the
	// organizer backend over the internal network.
	handler.RegisterRoutes(r)
	logger.Info("ROUTER", "Issuance routes registered under /api/issuance")

	// Scan endpoints face gate devices and require a scanner token.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		handler.RegisterScanRoutes(r)
	})
	logger.Info("ROUTER", "Scan routes registered under /api/scan")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Ticket Issuance Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Ticket Issuance Service shutdown complete")
	}
}
