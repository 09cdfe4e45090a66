package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"miniloan/internal/api"
	"miniloan/internal/batch"
	"miniloan/internal/config"
	"miniloan/internal/domain/loan"
	"miniloan/internal/domain/quote"
	"miniloan/internal/domain/rate"
	"miniloan/internal/domain/user"
	"miniloan/internal/event"
	"miniloan/internal/infrastructure/cache"
	"miniloan/internal/infrastructure/database/postgres"
	"miniloan/internal/infrastructure/logging"
	"miniloan/internal/infrastructure/monitoring"
	"miniloan/internal/notify"
	"miniloan/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// @title Mini Loan API
// @version 1.0
// @description Loan quotes, applications, approvals and repayments.

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.
func main() {
	cfg, logger := initializeApp()

	limits, err := cfg.Loan.Parse()
	if err != nil {
		logger.Error("Invalid loan configuration", "error", err)
		os.Exit(1)
	}

	dbPool := initializeDatabase(cfg, logger)
	defer closeDatabase(dbPool, logger)

	bus := event.NewBus(logger)
	defer subscribeSessionMetrics(bus)()

	rabbitConn := initializeBroker(cfg, bus, logger)
	if rabbitConn != nil {
		defer closeBroker(rabbitConn, logger)
	}

	redisClient := initializeRedis(cfg, logger)
	if redisClient != nil {
		defer closeRedis(redisClient, logger)
	}

	svc, loanService := initializeServices(cfg, limits, dbPool, redisClient, bus, logger)

	staleJob := batch.NewExpireStaleApplicationsJob(loanService, cfg.Batch.StaleApplicationAge, logger)
	cronScheduler := startBatchJobs(cfg, logger, staleJob)

	router, stopRouter := api.SetupRouter(svc, cfg, logger)
	defer stopRouter()

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

// subscribeSessionMetrics counts session starts and ends by role.
func subscribeSessionMetrics(bus *event.Bus) (unsubscribe func()) {
	record := func(_ context.Context, e event.Event) {
		payload, ok := e.Payload.(event.SessionEvent)
		if !ok {
			return
		}
		monitoring.RecordSessionEvent(string(e.Topic), payload.Role)
	}
	stopStarted := bus.Subscribe(event.TopicSessionStarted, record)
	stopEnded := bus.Subscribe(event.TopicSessionEnded, record)
	return func() {
		stopStarted()
		stopEnded()
	}
}

// initializeBroker forwards loan events to RabbitMQ when it is enabled. A
// broker that cannot be reached is logged and the API runs without it.
func initializeBroker(cfg *config.Config, bus *event.Bus, logger *slog.Logger) *amqp.Connection {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, loan events stay in process")
		return nil
	}

	logger.Info("Connecting to RabbitMQ", "host", cfg.RabbitMQ.Host, "port", cfg.RabbitMQ.Port)
	conn, err := amqp.Dial(cfg.RabbitMQ.URL())
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ, continuing without event forwarding", "error", err)
		return nil
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher, continuing without event forwarding", "error", err)
		_ = conn.Close()
		return nil
	}
	event.ForwardLoanEvents(bus, publisher, logger)
	return conn
}

func closeBroker(conn *amqp.Connection, logger *slog.Logger) {
	logger.Info("Closing RabbitMQ connection...")
	if err := conn.Close(); err != nil {
		logger.Error("Error closing RabbitMQ connection", "error", err)
	}
}

func initializeRedis(cfg *config.Config, logger *slog.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		logger.Info("Redis disabled, quotes are not cached and logout only expires with the token")
		return nil
	}
	client, err := cache.NewRedisClient(context.Background(), cfg.Redis, logger)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	logger.Info("Closing Redis client...")
	if err := client.Close(); err != nil {
		logger.Error("Error closing Redis client", "error", err)
	}
}

func initializeServices(
	cfg *config.Config,
	limits config.LoanLimits,
	dbPool *pgxpool.Pool,
	redisClient *redis.Client,
	bus *event.Bus,
	logger *slog.Logger,
) (api.Services, loan.LoanService) {
	logger.Info("Initializing application components...")

	var quoteCache quote.Cache = quote.NopCache{}
	var denylist session.Denylist = session.NopDenylist{}
	if redisClient != nil {
		quoteCache = cache.NewQuoteCache(redisClient, cfg.Redis.QuoteTTL, logger)
		denylist = cache.NewSessionDenylist(redisClient)
	}

	issuer, err := session.NewIssuer(cfg.Server.Auth.JWTSecret, cfg.Server.Auth.TokenTTL)
	if err != nil {
		logger.Error("Invalid auth configuration", "error", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(dbPool, logger)
	loanRepo := postgres.NewLoanRepository(dbPool, logger)

	userService := user.NewUserService(userRepo, notify.NewSMTPMailer(cfg.SMTP, logger), user.Options{
		AdminRegistrationKey: cfg.Server.Auth.AdminRegistrationKey,
		BcryptCost:           cfg.Server.Auth.BcryptCost,
	}, logger)

	quoteService := quote.NewService(rate.Default(), quote.Limits{
		MinPrincipal: limits.MinPrincipal,
		MaxPrincipal: limits.MaxPrincipal,
		MinTenure:    limits.MinTenureMonths,
		MaxTenure:    limits.MaxTenureMonths,
	}, limits.DefaultMonthlyIncome, quoteCache, logger)

	loanService := loan.NewLoanService(loanRepo, userService, quoteService, bus, limits.DefaultMonthlyIncome, logger)

	return api.Services{
		Quotes:    quoteService,
		Users:     userService,
		Loans:     loanService,
		Tokens:    issuer,
		Denylist:  denylist,
		Publisher: bus,
		Health:    dbPool.Ping,
	}, loanService
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.", "error", err)
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Application shutdown process complete.")
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, staleJob batch.Job) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.StaleApplicationSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 3 * * *"
		logger.Warn("Stale application schedule not configured, using default", "schedule", scheduleSpec)
	}
	if _, err := batch.Schedule(c, scheduleSpec, cfg.Batch.StaleApplicationTimeout, staleJob, logger); err != nil {
		logger.Error("Stale application job not scheduled", "error", err)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}
