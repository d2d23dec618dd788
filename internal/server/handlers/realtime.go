package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/poll"
	"github.com/iudanet/noteflow/pkg/api"
)

// PollAggregator определяет интерфейс сборки дельты для poll-запроса
type PollAggregator interface {
	Poll(ctx context.Context, user models.ActivityUser, since time.Time) (*poll.Result, error)
}

// RealtimeHandler handles polling requests
type RealtimeHandler struct {
	logger     *slog.Logger
	aggregator PollAggregator
	// defaultLookback watermark по умолчанию, когда клиент его не передал
	defaultLookback time.Duration
	now             func() time.Time
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(logger *slog.Logger, aggregator PollAggregator, defaultLookback time.Duration) *RealtimeHandler {
	return &RealtimeHandler{
		logger:          logger,
		aggregator:      aggregator,
		defaultLookback: defaultLookback,
		now:             time.Now,
	}
}

// HandlePoll обрабатывает GET /api/realtime/poll?lastPollTime=<RFC3339>
// Возвращает события активности строго новее lastPollTime, сводку
// присутствия и уведомления. Timestamp ответа — watermark следующего запроса.
func (h *RealtimeHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		h.logger.Error("User not found in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	since := h.now().Add(-h.defaultLookback)
	if raw := r.URL.Query().Get("lastPollTime"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.logger.Warn("Invalid lastPollTime parameter", "lastPollTime", raw, "error", err)
			writeJSON(w, h.logger, http.StatusBadRequest, api.PollErrorResponse{
				Error:   "invalid lastPollTime parameter",
				Success: false,
			})
			return
		}
		since = parsed
	}

	result, err := h.aggregator.Poll(ctx, user, since)
	if err != nil {
		h.logger.Error("Failed to aggregate poll data", "error", err, "user_id", user.ID)
		// Ошибка в стандартном конверте: клиент не двигает watermark
		writeJSON(w, h.logger, http.StatusInternalServerError, api.PollErrorResponse{
			Error:   "failed to fetch updates",
			Success: false,
		})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.PollResponse{
		Timestamp: result.ServerTime,
		Success:   true,
		Data: api.PollData{
			Activities:    toAPIActivities(result.Activities),
			Notifications: toAPINotifications(result.Notifications),
			Presence: api.PresenceSummary{
				OnlineUsers: toAPIOnlineUsers(result.OnlineUsers),
				TotalOnline: result.TotalOnline,
			},
		},
	})

	h.logger.Debug("Poll completed",
		"user_id", user.ID,
		"activities", len(result.Activities),
		"online", result.TotalOnline)
}

func toAPIActivities(activities []*models.Activity) []api.Activity {
	out := make([]api.Activity, 0, len(activities))
	for _, a := range activities {
		item := api.Activity{
			ID:          a.ID,
			Type:        a.Type,
			Description: a.Description,
			CreatedAt:   a.CreatedAt,
		}
		if a.User != nil {
			item.User = &api.ActivityUser{ID: a.User.ID, Name: a.User.Name, Email: a.User.Email}
		}
		out = append(out, item)
	}
	return out
}

func toAPIOnlineUsers(users []*models.OnlineUser) []api.OnlineUser {
	out := make([]api.OnlineUser, 0, len(users))
	for _, u := range users {
		out = append(out, api.OnlineUser{
			ID:           u.ID,
			Name:         u.Name,
			Email:        u.Email,
			LastActiveAt: u.LastActiveAt,
		})
	}
	return out
}

func toAPINotifications(notifications []*models.Notification) []api.Notification {
	out := make([]api.Notification, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, api.Notification{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
