// cmd/lifecycle-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"firmadoc-engine/internal/common/clock"
	"firmadoc-engine/internal/common/config"
	"firmadoc-engine/internal/common/database"
	"firmadoc-engine/internal/common/logger"
	"firmadoc-engine/internal/engine/lifecycle"
	"firmadoc-engine/internal/engine/otp"
	"firmadoc-engine/internal/engine/scheduler"
	"firmadoc-engine/internal/mail"
	pgstore "firmadoc-engine/internal/storage/postgres"
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
			delay *= 2 // Exponential backoff
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

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lifecycle engine...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if err := pgstore.EnsureSchema(ctx, pg.DB); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var rds *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rds, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return rds.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rds.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Mail Transport ---
	var mailer mail.Mailer
	switch cfg.Mail.Provider {
	case "ses":
		mailer, err = mail.NewSESMailer(ctx, cfg.Mail.SES.Region, cfg.Mail.From, log)
		if err != nil {
			zapLog.Fatal("ses mailer init failed", zap.Error(err))
		}
	default:
		mailer = mail.NewSMTPMailer(cfg.Mail.SMTP, cfg.Mail.From, log)
	}
	zapLog.Info("Mail transport initialized", zap.String("provider", cfg.Mail.Provider))

	// --- Wire the Engine ---
	clk := clock.New()

	docStore := pgstore.NewDocumentStore(pg.DB)
	jobStore := pgstore.NewJobStore(pg.DB)

	authenticator := otp.NewAuthenticator(
		otp.NewRedisStore(rds), clk, log,
		cfg.OTP.TTL, cfg.OTP.Digits,
	)

	sched := scheduler.New(jobStore, docStore, mailer, clk, log, cfg.Scheduler.WarningLead)

	engine := lifecycle.New(docStore, authenticator, sched, clk, log, lifecycle.Config{
		AcceptanceWindow: cfg.Lifecycle.AcceptanceWindow,
		ValidityWindow:   cfg.Lifecycle.ValidityWindow,
		OTPDigits:        cfg.OTP.Digits,
	})

	zapLog.Info("Engine wired",
		zap.Duration("acceptanceWindow", cfg.Lifecycle.AcceptanceWindow),
		zap.Duration("validityWindow", cfg.Lifecycle.ValidityWindow),
		zap.Duration("sweepInterval", cfg.Scheduler.SweepInterval),
	)

	// --- Background Loops ---
	runCtx, cancelLoops := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(cfg.Scheduler.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				res, err := sched.Tick(runCtx, clk.Now())
				if err != nil {
					zapLog.Error("notification sweep failed", zap.Error(err))
					continue
				}
				if res.Sent > 0 || res.Failed > 0 || res.Cancelled > 0 {
					zapLog.Info("notification sweep complete",
						zap.Int("sent", res.Sent),
						zap.Int("failed", res.Failed),
						zap.Int("cancelled", res.Cancelled),
						zap.Int("skipped", res.Skipped),
					)
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.Scheduler.ExpiryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				n, err := engine.ExpireDue(runCtx)
				if err != nil {
					zapLog.Error("expiry sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					zapLog.Info("documents expired", zap.Int("count", n))
				}
			}
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping loops...")
	cancelLoops()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Drain whatever is already due so restarts do not lose mail.
	if _, err := sched.Tick(shutdownCtx, clk.Now()); err != nil {
		zapLog.Error("final notification sweep failed", zap.Error(err))
	}

	zapLog.Info("Lifecycle engine stopped gracefully")
}
