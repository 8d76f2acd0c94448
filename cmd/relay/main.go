// Checkout relay - creates hosted InfinitePay checkout links for the
// storefront and records paid orders as ClickUp tasks.
// Designed for Cloud Run deployment; durable state lives in the configured store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-relay/internal/clickup"
	"checkout-relay/internal/config"
	"checkout-relay/internal/confirm"
	"checkout-relay/internal/handler"
	"checkout-relay/internal/infinitepay"
	"checkout-relay/internal/metrics"
	"checkout-relay/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("store_backend", cfg.Store.Backend),
		slog.Bool("payment_configured", cfg.Providers.InfinitePayHandle != ""),
		slog.Bool("tasks_configured", cfg.Providers.ClickUpToken != "" && cfg.Providers.ClickUpListID != ""),
		slog.Bool("tls_fingerprint", cfg.Providers.ChromeFingerprint),
	)

	st, err := cfg.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	reg := metrics.NewRegistry()

	links := infinitepay.New(infinitepay.Config{
		Handle:        cfg.Providers.InfinitePayHandle,
		BaseURL:       cfg.Providers.InfinitePayAPIURL,
		DefaultOrigin: cfg.PublicBaseURL,
		SuccessPath:   cfg.SuccessPath,
		CancelPath:    cfg.CancelPath,
		Transport:     cfg.PaymentTransport(),
		Metrics:       reg,
		Logger:        logger,
	})

	tasks := clickup.New(clickup.Config{
		Token:        cfg.Providers.ClickUpToken,
		ListID:       cfg.Providers.ClickUpListID,
		WorkspaceID:  cfg.Providers.ClickUpWorkspaceID,
		BaseURL:      cfg.Providers.ClickUpAPIURL,
		TargetStatus: cfg.Providers.ClickUpTargetStatus,
		Priority:     cfg.Providers.ClickUpPriority,
		Tags:         cfg.Providers.ClickUpTags,
		Transport:    cfg.TaskTransport(),
		Metrics:      reg,
		Logger:       logger,
	})

	flow := confirm.New(confirm.Config{
		Store:      st,
		Tasks:      tasks,
		PendingTTL: cfg.Store.PendingTTL,
		Metrics:    reg,
		Logger:     logger,
	})

	h := handler.New(handler.Deps{
		Links:       links,
		Tasks:       tasks,
		Flow:        flow,
		Store:       st,
		Metrics:     reg,
		Logger:      logger,
		SuccessPath: cfg.SuccessPath,
		CancelPath:  cfg.CancelPath,
	})

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → CORS → handler
	// Recovery must be outermost to catch panics from logging middleware.
	// CORS answers preflights before the mux sees them.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.CORS(cfg.CORSAllowOrigin),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
