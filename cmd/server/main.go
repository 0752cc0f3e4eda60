package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ernit/be-reimbursements/internal/config"
	"github.com/ernit/be-reimbursements/internal/database"
	"github.com/ernit/be-reimbursements/internal/handler"
	"github.com/ernit/be-reimbursements/internal/logger"
	"github.com/ernit/be-reimbursements/internal/middleware"
	"github.com/ernit/be-reimbursements/internal/notify"
	"github.com/ernit/be-reimbursements/internal/repository"
	"github.com/ernit/be-reimbursements/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", cfg.Service.LogLevel),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Reimbursements Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	sapCodeRepo := repository.NewSapCodeRepository(db)
	reimbursementRepo := repository.NewReimbursementRepository(db)
	stepsRepo := repository.NewApprovalStepsRepository(db)
	auditRepo := repository.NewApprovalAuditRepository(db)

	// Initialize notification stack
	var mailer notify.Mailer
	if cfg.SMTP.Host != "" {
		smtpMailer, err := notify.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create SMTP mailer")
		}
		mailer = smtpMailer
		log.Info().Str("smtp_host", cfg.SMTP.Host).Msg("Email notifications enabled")
	} else {
		mailer = noopMailer{log: log}
		log.Warn().Msg("SMTP not configured; email notifications disabled")
	}

	dispatcher := notify.NewDispatcher(mailer, cfg.SMTP.QueueSize, cfg.SMTP.SendTimeout, log.Logger)
	dispatcher.Start()
	defer dispatcher.Close()

	var events *notify.EventPublisher
	if cfg.NATS.URL != "" {
		events, err = notify.NewEventPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer events.Close()
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("Event publishing enabled")
	}

	notifier := notify.NewNotifier(dispatcher, events, log.Logger)

	// Initialize services
	approvalService := service.NewApprovalService(reimbursementRepo, stepsRepo, userRepo, auditRepo, notifier, log)
	reimbursementService := service.NewReimbursementService(reimbursementRepo, userRepo, sapCodeRepo, auditRepo, notifier, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(approvalService, reimbursementService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	httpHandler.Register(mux)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.Authenticate(sessionRepo)(h)
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS(cfg.Server.AllowedOrigins)(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Periodic expired-session sweep
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := sessionRepo.DeleteExpired(ctx); err != nil {
					log.Warn().Err(err).Msg("Session sweep failed")
				} else if n > 0 {
					log.Debug().Int64("deleted", n).Msg("Expired sessions removed")
				}
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

// noopMailer logs instead of sending when SMTP is not configured.
type noopMailer struct {
	log *logger.Logger
}

func (m noopMailer) Send(_ context.Context, email *notify.Email) error {
	m.log.Info().
		Str("to", email.To).
		Str("subject", email.Subject).
		Msg("Email suppressed (SMTP disabled)")
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
