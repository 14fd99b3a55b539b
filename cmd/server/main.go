package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MegaGrindStone/chat-playground/internal/consumer"
	"github.com/MegaGrindStone/chat-playground/internal/handlers"
	"github.com/MegaGrindStone/chat-playground/internal/services"
	"github.com/joho/godotenv"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}

	cfgPath := flag.String("config", filepath.Join(cfgDir, "chatplayground", "config.yaml"), "path to the config file")
	flag.Parse()

	// Load .env file before reading the config, so its variables act as fallbacks
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if cfg.Upstream.APIKey == "" {
		logger.Warn("FIREWORKS_API_KEY not set, chat requests will fail")
	}

	fireworks := services.NewFireworks(cfg.Upstream.APIKey, cfg.Upstream.BaseURL, logger)
	proxy := handlers.NewProxy(fireworks, logger)

	client := consumer.NewClient(cfg.ProxyURL, nil, logger)
	catalog := services.NewModelCatalog(cfg.ModelsURL, logger)

	m, err := handlers.NewMain(client, catalog, logger)
	if err != nil {
		panic(err)
	}

	router, err := handlers.NewRouter(m, proxy, cfg.AllowedOrigins, logger)
	if err != nil {
		panic(err)
	}

	// WriteTimeout is left unset, responses stream for as long as the upstream does
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := m.Shutdown(ctx); err != nil {
			logger.Error("Failed to end streaming turns", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", slog.String("addr", srv.Addr), slog.String("proxyURL", cfg.ProxyURL))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}
