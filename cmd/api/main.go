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

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/altbank/backoffice/internal/config"
	"github.com/altbank/backoffice/internal/handler"
	"github.com/altbank/backoffice/internal/integrations/ecb"
	"github.com/altbank/backoffice/internal/middleware"
	"github.com/altbank/backoffice/internal/notify"
	"github.com/altbank/backoffice/internal/repository"
	"github.com/altbank/backoffice/internal/service"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	var repo repository.Store
	switch cfg.Storage {
	case "memory":
		repo = repository.NewMemoryStore()
		logger.Warn("Using in-memory storage, all data is lost on shutdown")
	default:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		if err := repository.Migrate(db); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		repo = repository.NewPostgresStore(db)
	}

	// Initialize layers
	var notifier service.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSender(cfg, logger)
	} else {
		logger.Warn("SMTP_HOST not set, email notifications disabled")
	}
	svc := service.NewService(repo, logger, cfg, notifier)
	ecbClient := ecb.NewClient(cfg, logger)
	h := handler.NewHandler(svc, ecbClient, logger)

	// Setup router
	r := mux.NewRouter()
	h.RegisterPublic(r)
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	h.RegisterAuthenticated(authRouter)

	// card expiry sweep, nightly
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 2 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := svc.SweepExpiredCards(ctx); err != nil {
			logger.Errorf("Card expiry sweep failed: %v", err)
		}
	}); err != nil {
		logger.Fatalf("Failed to schedule card expiry sweep: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
	}
}
