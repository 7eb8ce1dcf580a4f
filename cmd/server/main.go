package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colorpref/colorpref/internal/config"
	"github.com/colorpref/colorpref/internal/handlers"
	"github.com/colorpref/colorpref/internal/logging"
	"github.com/colorpref/colorpref/internal/model"
	"github.com/colorpref/colorpref/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("loading configuration failed")
	}
	logging.Init(cfg.Logging)

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("opening model store failed")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("closing model store failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := model.NewServer(ctx, st, cfg.Model, cfg.Training, cfg.Storage.ModelID)
	if err != nil {
		logging.Fatal().Err(err).Msg("initializing model failed")
	}

	router := handlers.NewRouter(handlers.NewHandler(srv), handlers.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		Timeout:     cfg.Server.Timeout,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", httpServer.Addr).
			Str("model_id", cfg.Storage.ModelID).
			Bool("model_restored", srv.Restored()).
			Msg("server starting")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	logging.Info().Msg("server stopped")
}
