package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chartform/internal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	cfg, err := internal.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(cfg, os.Stdout)
	if envErr != nil {
		logger.Warn("Warning: .env file not found or could not be loaded")
	}

	app, err := internal.NewApp(cfg, nil, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize app: %v", err)
	}
	if cfg.PageTokenSecret == "" {
		logger.Warn("PAGE_TOKEN_SECRET not set, using a per-process secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.Store().Run(ctx, cfg.FormSweepInterval)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"addr":        cfg.HTTPAddr,
		"backend_url": cfg.BackendURL,
	}).Info("Chart form server starting")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Fatalf("could not shut down server: %v", err)
		}
		logger.Info("Chart form server stopped")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("could not start server: %v", err)
		}
	}
}
