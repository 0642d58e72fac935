// ==============================================================================
// SACCO LEDGER SERVICE - cmd/sacco/main.go
// ==============================================================================
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"sacco/internal/dividend"
	"sacco/internal/handler"
	"sacco/internal/investment"
	"sacco/internal/ledger"
	"sacco/internal/loan"
	"sacco/internal/middleware"
	"sacco/internal/notification"
	"sacco/internal/policy"
	"sacco/internal/repayment"
	"sacco/internal/repository/postgres"
	"sacco/internal/scheduler"
	"sacco/pkg/cache"
	"sacco/pkg/config"
	"sacco/pkg/logger"
	"sacco/pkg/mailer"
	"sacco/pkg/telemetry"
)

const serviceName = "sacco-ledger"

// redisPinger adapts the redis client to handler.Pinger.
type redisPinger struct{ client *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewWithLevel(serviceName, cfg.Log.Level)

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	if err := cfg.ValidatePolicy(); err != nil {
		log.Fatal("Invalid policy configuration", map[string]interface{}{"error": err.Error()})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal("Failed to initialise tracing", map[string]interface{}{"error": err.Error()})
	}

	// Database
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping database", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Database connected", nil)

	// Redis
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	redisClient := redisCache.Client()
	defer redisClient.Close()
	log.Info("Redis connected", nil)

	st := postgres.NewStore(db, 5*time.Second)
	policySource := policy.NewSettingsSource(st, policy.FromConfig(cfg.Policy))

	// Notifications
	var sender mailer.Sender
	if cfg.Email.Enabled {
		sender = mailer.New(mailer.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		})
	}
	directory := notification.NewStoreDirectory(st)
	notifier := notification.NewService(log, directory, directory, sender)
	dispatcher := notification.NewDispatcher(notifier, log, cfg.Email.Timeout)

	// Services
	ledgerService := ledger.NewService(st, redisCache, cfg.Redis.SummaryTTL, dispatcher, log)
	investmentService := investment.NewService(st, policySource, ledgerService, redisCache, cfg.Redis.SummaryTTL, dispatcher, log)
	loanService := loan.NewService(st, policySource, ledgerService, dispatcher, log)
	repaymentService := repayment.NewService(st, ledgerService, dispatcher, log)
	dividendService := dividend.NewService(st, policySource, investmentService, ledgerService, dispatcher, log)

	routes := handler.Routes{
		Investments: handler.NewInvestmentHandler(investmentService, log),
		Loans:       handler.NewLoanHandler(loanService, log),
		Repayments:  handler.NewRepaymentHandler(repaymentService, loanService, log),
		Ledger:      handler.NewLedgerHandler(ledgerService, log),
		Dividends:   handler.NewDividendHandler(dividendService, log),
		System: handler.NewSystemHandler(serviceName, map[string]handler.Pinger{
			"database": db,
			"redis":    redisPinger{client: redisClient},
		}, log),
	}

	// Middleware
	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer).
		WithBlacklist(middleware.NewRedisTokenBlacklist(redisClient))
	routes.System.WithRevoker(authMW)
	loggingMW := middleware.NewLoggingMiddleware(log)
	rateLimiter := middleware.NewRateLimiter(redisClient, 120, time.Minute)
	idempotencyMW := middleware.NewIdempotencyMiddleware(redisClient, 24*time.Hour, log)

	r := mux.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(loggingMW.Log)
	r.Use(middleware.Tracing)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.SecurityHeaders)

	routes.Register(r,
		authMW.Authenticate,
		middleware.TrackActor,
		rateLimiter.Limit,
		idempotencyMW.Require,
	)

	// Background jobs
	jobs := scheduler.NewScheduler(time.Second, log)
	if cfg.Scheduler.Enabled {
		for _, job := range []*scheduler.Job{
			{
				Name:     "loan-status-refresh",
				Interval: cfg.Scheduler.LoanStatusInterval,
				Run: func(ctx context.Context) error {
					_, err := loanService.RefreshStatuses(ctx, time.Now())
					return err
				},
			},
			{
				Name:     "recurring-transactions",
				Interval: cfg.Scheduler.RecurringInterval,
				Run: func(ctx context.Context) error {
					_, err := ledgerService.ExecuteDueRecurring(ctx, time.Now().UTC())
					return err
				},
			},
		} {
			if err := jobs.Schedule(job); err != nil {
				log.Fatal("Failed to schedule job", map[string]interface{}{"job": job.Name, "error": err.Error()})
			}
		}
		jobs.Start(ctx)
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", map[string]interface{}{"address": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}
	jobs.Stop()
	cancel()
	dispatcher.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Tracing shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server stopped", nil)
}
