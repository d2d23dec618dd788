// Package presence отслеживает, кто сейчас смотрит или редактирует какой
// ресурс. Устаревание — фильтр на чтении: записи не удаляются, пока их
// явно не зачистит Reap.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/storage"
)

// Service handles presence tracking
type Service struct {
	storage storage.PresenceStorage
	logger  *slog.Logger
	now     func() time.Time
	// stalenessWindow окно свежести по умолчанию для ListActive
	stalenessWindow time.Duration
}

// NewService creates a new presence service
func NewService(st storage.PresenceStorage, stalenessWindow time.Duration, logger *slog.Logger) *Service {
	return &Service{
		storage:         st,
		stalenessWindow: stalenessWindow,
		logger:          logger,
		now:             time.Now,
	}
}

// UpsertParams задает heartbeat-сигнал присутствия
type UpsertParams struct {
	User         models.ActivityUser
	ResourceType string
	ResourceID   string
	Status       models.PresenceStatus
	Cursor       json.RawMessage
	Selection    json.RawMessage
	Metadata     json.RawMessage
}

// Upsert inserts or refreshes the unique (user, resourceType, resourceId)
// presence row, stamping last_seen with current server time.
func (s *Service) Upsert(ctx context.Context, params UpsertParams) (*models.PresenceRecord, error) {
	status := params.Status
	if status == "" {
		status = models.StatusViewing
	}

	record := &models.PresenceRecord{
		UserID:       params.User.ID,
		UserName:     params.User.Name,
		UserEmail:    params.User.Email,
		ResourceType: params.ResourceType,
		ResourceID:   params.ResourceID,
		IsActive:     true,
		LastSeen:     s.now(),
		Status:       status,
		Cursor:       params.Cursor,
		Selection:    params.Selection,
		Metadata:     params.Metadata,
	}

	if err := s.storage.UpsertPresence(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to upsert presence: %w", err)
	}

	return record, nil
}

// Touch обновляет глобальный heartbeat пользователя.
// Вызывается на каждый poll-запрос и питает список "кто онлайн".
func (s *Service) Touch(ctx context.Context, user models.ActivityUser) error {
	_, err := s.Upsert(ctx, UpsertParams{
		User:         user,
		ResourceType: models.ResourceTypeApp,
		ResourceID:   models.ResourceIDGlobal,
		Status:       models.StatusViewing,
	})
	return err
}

// ListActive returns non-stale active records for a resource.
// Нулевое window означает окно по умолчанию из конфигурации.
func (s *Service) ListActive(ctx context.Context, resourceType, resourceID string, window time.Duration) ([]*models.PresenceRecord, error) {
	if window <= 0 {
		window = s.stalenessWindow
	}

	records, err := s.storage.ListActivePresence(ctx, resourceType, resourceID, s.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to list active presence: %w", err)
	}

	return records, nil
}

// MarkInactive handles the explicit leave signal. Строка остается в
// хранилище с последними cursor/selection для быстрого возврата.
func (s *Service) MarkInactive(ctx context.Context, userID, resourceType, resourceID string) error {
	if err := s.storage.MarkPresenceInactive(ctx, userID, resourceType, resourceID); err != nil {
		return fmt.Errorf("failed to mark presence inactive: %w", err)
	}

	s.logger.Debug("Presence marked inactive",
		"user_id", userID,
		"resource_type", resourceType,
		"resource_id", resourceID)

	return nil
}

// Reap deletes inactive rows not seen for the retention period.
// Запускается внешним планировщиком ради экономии места; для корректности
// запросов чистка не нужна.
func (s *Service) Reap(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.storage.ReapStalePresence(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to reap presence: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("Reaped stale presence rows", "deleted", deleted)
	}

	return deleted, nil
}
