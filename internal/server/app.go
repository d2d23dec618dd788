// Package server собирает все компоненты координации в HTTP-приложение:
// хранилище, доменные сервисы, обработчики и жизненный цикл сервера.
package server

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

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/noteflow/internal/config"
	"github.com/iudanet/noteflow/internal/server/handlers"
	"github.com/iudanet/noteflow/internal/server/poll"
	"github.com/iudanet/noteflow/internal/server/presence"
	"github.com/iudanet/noteflow/internal/server/session"
	"github.com/iudanet/noteflow/internal/server/storage/sqlite"
)

// presenceReapInterval период фоновой зачистки устаревших записей присутствия
const presenceReapInterval = 10 * time.Minute

// presenceRetention сколько держим неактивные записи до удаления
const presenceRetention = 24 * time.Hour

// Run инициализирует зависимости и крутит сервер до сигнала остановки.
// notifications может быть nil — тогда poll отдает пустые уведомления.
func Run(ctx context.Context, cfg *config.Config, version string, notifications poll.NotificationSource) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		"addr", cfg.App.Addr(),
		"db_path", cfg.Storage.Path,
		"log_level", cfg.App.LogLevel.String())

	store, err := sqlite.New(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	jwtConfig := handlers.JWTConfig{
		Secret:         []byte(cfg.Auth.JWTSecret),
		AccessTokenTTL: 15 * time.Minute,
	}

	sessionSvc := session.NewService(store, store, logger)
	presenceSvc := presence.NewService(store, cfg.Realtime.StalenessWindow, logger)
	aggregator := poll.NewAggregator(store, store, presenceSvc, notifications, poll.Config{
		PageSize:     cfg.Realtime.PollPageSize,
		OnlineWindow: cfg.Realtime.OnlineWindow,
		OnlineLimit:  cfg.Realtime.OnlineLimit,
	}, logger)

	router := NewRouter(logger, cfg, jwtConfig,
		handlers.NewRealtimeHandler(logger, aggregator, cfg.Realtime.DefaultLookback),
		handlers.NewSessionHandler(logger, sessionSvc),
		handlers.NewPresenceHandler(logger, presenceSvc),
		handlers.NewHealthHandler(logger, version),
	)

	httpServer := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "addr", cfg.App.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Фоновая зачистка устаревшего присутствия
	g.Go(func() error {
		ticker := time.NewTicker(presenceReapInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := presenceSvc.Reap(gCtx, presenceRetention); err != nil {
					logger.Warn("Presence reap failed", "error", err)
				}
			case <-gCtx.Done():
				return nil
			}
		}
	})

	// Graceful shutdown по сигналу или отмене контекста
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", "signal", sig.String())
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", "error", err)
		return err
	}

	logger.Info("Server stopped")
	return nil
}
