// Package poll собирает дельту для клиентов, которые не держат постоянное
// соединение: события активности после watermark, сводку присутствия и
// уведомления из внешней подсистемы.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/storage"
)

// NotificationSource подключает внешнюю подсистему уведомлений.
// Реализация может отсутствовать — тогда используется пустой источник.
type NotificationSource interface {
	// PendingNotifications возвращает уведомления пользователя новее заданной метки
	PendingNotifications(ctx context.Context, userID string, after time.Time) ([]*models.Notification, error)
}

// PresenceToucher обновляет глобальный heartbeat пользователя
type PresenceToucher interface {
	Touch(ctx context.Context, user models.ActivityUser) error
}

// Config holds aggregation limits and windows
type Config struct {
	// PageSize максимум событий активности в одном ответе
	PageSize int
	// OnlineWindow окно свежести для списка "кто онлайн"
	OnlineWindow time.Duration
	// OnlineLimit максимум пользователей в сводке присутствия
	OnlineLimit int
}

// Result представляет дельту, собранную для одного poll-запроса.
// ServerTime — кандидат на следующий watermark клиента: клиент никогда
// не двигает watermark своими часами.
type Result struct {
	ServerTime    time.Time
	Activities    []*models.Activity
	OnlineUsers   []*models.OnlineUser
	Notifications []*models.Notification
	TotalOnline   int
}

// Aggregator assembles delta views for polling clients
type Aggregator struct {
	activities    storage.ActivityStorage
	presence      storage.PresenceStorage
	toucher       PresenceToucher
	notifications NotificationSource
	logger        *slog.Logger
	now           func() time.Time
	cfg           Config
}

// NewAggregator creates a new poll aggregator.
// notifications может быть nil — тогда уведомления всегда пустые.
func NewAggregator(
	activities storage.ActivityStorage,
	presence storage.PresenceStorage,
	toucher PresenceToucher,
	notifications NotificationSource,
	cfg Config,
	logger *slog.Logger,
) *Aggregator {
	if notifications == nil {
		notifications = emptySource{}
	}

	return &Aggregator{
		activities:    activities,
		presence:      presence,
		toucher:       toucher,
		notifications: notifications,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Poll assembles the delta view for one client request.
// События активности выбираются строго после since: событие с created_at,
// равным watermark, уже было доставлено предыдущим ответом.
func (a *Aggregator) Poll(ctx context.Context, user models.ActivityUser, since time.Time) (*Result, error) {
	serverTime := a.now()

	// Сам poll — сигнал активности пользователя
	if err := a.toucher.Touch(ctx, user); err != nil {
		// Не фатально: дельту все равно можно собрать
		a.logger.Warn("Failed to touch presence", "user_id", user.ID, "error", err)
	}

	activities, err := a.activities.ListActivitiesAfter(ctx, since, a.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	onlineUsers, err := a.presence.ListOnlineUsers(ctx, serverTime.Add(-a.cfg.OnlineWindow), a.cfg.OnlineLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}

	notifications, err := a.notifications.PendingNotifications(ctx, user.ID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return &Result{
		ServerTime:    serverTime,
		Activities:    activities,
		OnlineUsers:   onlineUsers,
		TotalOnline:   len(onlineUsers),
		Notifications: notifications,
	}, nil
}

// emptySource источник уведомлений по умолчанию
type emptySource struct{}

func (emptySource) PendingNotifications(ctx context.Context, userID string, after time.Time) ([]*models.Notification, error) {
	return []*models.Notification{}, nil
}
