package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"genvrbatch/internal/batch"
	"genvrbatch/internal/catalog"
	"genvrbatch/internal/genvr"
	"genvrbatch/internal/http/handlers"
	"genvrbatch/internal/http/httpapi"
	"genvrbatch/internal/infra"
	"genvrbatch/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := genvr.NewClient(genvr.Options{
		APIKey:       cfg.APIKey,
		UID:          cfg.UID,
		BaseURL:      cfg.BaseURL,
		Logger:       &logger,
		PollInterval: cfg.PollInterval,
		MaxPollTime:  cfg.MaxPollTime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("batchd: failed to configure genvr client")
	}

	store, err := storage.NewFileStore(cfg.ResultsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("batchd: failed to configure results storage")
	}

	cat := catalog.New(client, logger)
	// Warm the catalog in the background; the API stays usable without it and
	// a frontend can retry via POST /v1/models/refresh.
	go func() {
		if err := cat.Refresh(ctx); err != nil {
			logger.Warn().Err(err).Msg("batchd: initial catalog refresh failed")
		}
	}()

	// Items that fail schema validation surface as failed batch items without
	// a remote call, the same way any other per-item error does.
	executor := batch.NewExecutor(catalog.NewValidatingRunner(cat, client), logger)
	manager := batch.NewManager(executor, logger)

	app := handlers.NewApp(manager, cat, store, logger, cfg.Concurrency)
	allowedOrigins := splitOrigins(os.Getenv("ALLOWED_ORIGINS"))
	router := httpapi.NewRouter(app, logger, allowedOrigins)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("batchd listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("batchd: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("batchd: failed to shutdown server")
	}
	logger.Info().Msg("batchd stopped")
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
