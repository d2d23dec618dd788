package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/noteflow/internal/config"
	"github.com/iudanet/noteflow/internal/server/handlers"
	"github.com/iudanet/noteflow/internal/server/middleware"
)

// NewRouter собирает chi-роутер со всеми маршрутами сервиса.
// Health check остается вне auth-группы для мониторинга.
func NewRouter(
	logger *slog.Logger,
	cfg *config.Config,
	jwtConfig handlers.JWTConfig,
	realtimeHandler *handlers.RealtimeHandler,
	sessionHandler *handlers.SessionHandler,
	presenceHandler *handlers.PresenceHandler,
	healthHandler *handlers.HealthHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware(logger))
	// Poll ходит каждые несколько секунд — не засоряем лог
	r.Use(middleware.LoggingWithSkip(logger, []string{"/api/v1/health", "/api/realtime/poll"}))
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Rate, cfg.RateLimit.Window, logger))

	r.Get("/api/v1/health", healthHandler.Health)

	// Все остальное — только с валидным Bearer токеном
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(logger, jwtConfig))

		r.Get("/api/realtime/poll", realtimeHandler.HandlePoll)

		r.Route("/api/v1/sessions", func(r chi.Router) {
			r.Post("/start", sessionHandler.HandleStart)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", sessionHandler.HandleGet)
				r.Post("/join", sessionHandler.HandleJoin)
				r.Post("/leave", sessionHandler.HandleLeave)
				r.Post("/end", sessionHandler.HandleEnd)
				r.Post("/edits", sessionHandler.HandleRecordEdit)
				r.Post("/conflicts", sessionHandler.HandleRecordConflict)
				r.Get("/fragments", sessionHandler.HandleFragments)
			})
		})

		r.Route("/api/v1/presence", func(r chi.Router) {
			r.Get("/", presenceHandler.HandleList)
			r.Post("/heartbeat", presenceHandler.HandleHeartbeat)
			r.Post("/leave", presenceHandler.HandleLeave)
		})
	})

	return r
}
