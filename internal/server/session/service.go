// Package session владеет жизненным циклом сессий совместного редактирования:
// идемпотентный старт, участники, агрегатные счетчики и привязанный журнал
// изменений. Обнаружение конфликтов сюда не входит — внешний merge-движок
// только сообщает о разрешенных конфликтах через RecordConflict.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/storage"
)

// Storage объединяет хранилища, нужные менеджеру сессий
type Storage interface {
	storage.SessionStorage
	storage.UpdateLogStorage
}

// Service handles collaboration session lifecycle
type Service struct {
	storage    Storage
	activities storage.ActivityStorage
	logger     *slog.Logger
	now        func() time.Time
	locks      *keyedMutex
}

// NewService creates a new session service
func NewService(st Storage, activities storage.ActivityStorage, logger *slog.Logger) *Service {
	return &Service{
		storage:    st,
		activities: activities,
		logger:     logger,
		now:        time.Now,
		locks:      newKeyedMutex(),
	}
}

// StartSession opens a collaboration session for a resource.
// Если активная сессия для ресурса уже существует, пользователь
// присоединяется к ней — второй активной сессии не возникает.
func (s *Service) StartSession(ctx context.Context, resourceID string, actor models.ActivityUser) (*models.Session, error) {
	unlock := s.locks.Lock("resource:" + resourceID)
	defer unlock()

	existing, err := s.storage.GetActiveSessionByResource(ctx, resourceID)
	if err == nil {
		// Идемпотентный старт: присоединяемся к существующей сессии
		return s.joinLocked(ctx, existing, actor)
	}
	if !errors.Is(err, storage.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to check active session: %w", err)
	}

	now := s.now()

	// Скользящее среднее наследуется от завершенных сессий ресурса
	avg, err := s.storage.AvgEndedDuration(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get avg duration: %w", err)
	}

	session := &models.Session{
		ID:                 uuid.New().String(),
		ResourceID:         resourceID,
		IsActive:           true,
		StartedAt:          now,
		LastActivity:       now,
		Participants:       []string{actor.ID},
		TotalParticipants:  1,
		AvgDurationSeconds: avg,
	}

	if err := s.storage.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Страховка мягкого инварианта: активная сессия на ресурс одна
	if err := s.storage.DeactivateResourceSessions(ctx, resourceID, session.ID, now); err != nil {
		return nil, fmt.Errorf("failed to deactivate stale sessions: %w", err)
	}

	s.logger.Info("Session started",
		"session_id", session.ID,
		"resource_id", resourceID,
		"user_id", actor.ID)

	s.recordActivity(ctx, models.ActivitySessionStarted,
		fmt.Sprintf("%s started a collaboration session on %s", actor.Name, resourceID), &actor)

	return session, nil
}

// Join adds the user to the session's participant set
func (s *Service) Join(ctx context.Context, sessionID string, actor models.ActivityUser) (*models.Session, error) {
	unlock := s.locks.Lock("session:" + sessionID)
	defer unlock()

	session, err := s.getActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return s.joinLocked(ctx, session, actor)
}

// joinLocked выполняет присоединение; вызывающий уже держит лок
func (s *Service) joinLocked(ctx context.Context, session *models.Session, actor models.ActivityUser) (*models.Session, error) {
	now := s.now()

	newParticipant, err := s.storage.AddParticipant(ctx, session.ID, actor.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}

	if newParticipant {
		// Пользователь впервые за жизнь сессии
		if err := s.storage.IncrementTotalParticipants(ctx, session.ID); err != nil {
			return nil, fmt.Errorf("failed to increment participants: %w", err)
		}
	}

	if err := s.storage.TouchSession(ctx, session.ID, now); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}

	if !session.HasParticipant(actor.ID) {
		s.recordActivity(ctx, models.ActivityUserJoined,
			fmt.Sprintf("%s joined the session on %s", actor.Name, session.ResourceID), &actor)
	}

	return s.storage.GetSession(ctx, session.ID)
}

// Leave removes the user from the participant set.
// Сессию это не завершает: решение о завершении принимает внешняя
// idle-timeout политика через EndSession.
func (s *Service) Leave(ctx context.Context, sessionID string, actor models.ActivityUser) error {
	unlock := s.locks.Lock("session:" + sessionID)
	defer unlock()

	session, err := s.getActive(ctx, sessionID)
	if err != nil {
		return err
	}

	now := s.now()

	if err := s.storage.MarkParticipantLeft(ctx, sessionID, actor.ID, now); err != nil {
		return fmt.Errorf("failed to mark participant left: %w", err)
	}

	if err := s.storage.TouchSession(ctx, sessionID, now); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	s.recordActivity(ctx, models.ActivityUserLeft,
		fmt.Sprintf("%s left the session on %s", actor.Name, session.ResourceID), &actor)

	return nil
}

// EndSession deactivates the session and recomputes the rolling average
// duration over ended sessions of the resource
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock("session:" + sessionID)
	defer unlock()

	session, err := s.getActive(ctx, sessionID)
	if err != nil {
		return err
	}

	now := s.now()

	if err := s.storage.EndSession(ctx, sessionID, now); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	// Среднее пересчитывается уже с учетом только что завершенной сессии
	avg, err := s.storage.AvgEndedDuration(ctx, session.ResourceID)
	if err != nil {
		return fmt.Errorf("failed to recompute avg duration: %w", err)
	}
	if err := s.storage.SetAvgDuration(ctx, sessionID, avg); err != nil {
		return fmt.Errorf("failed to store avg duration: %w", err)
	}

	s.logger.Info("Session ended",
		"session_id", sessionID,
		"resource_id", session.ResourceID,
		"duration_seconds", now.Sub(session.StartedAt).Seconds())

	s.recordActivity(ctx, models.ActivitySessionEnded,
		fmt.Sprintf("collaboration session on %s ended", session.ResourceID), nil)

	return nil
}

// RecordEdit appends an opaque fragment to the session's update log and
// bumps the edit counter. Возвращает порядковый номер фрагмента.
func (s *Service) RecordEdit(ctx context.Context, sessionID string, data []byte) (int64, error) {
	unlock := s.locks.Lock("session:" + sessionID)
	defer unlock()

	if _, err := s.getActive(ctx, sessionID); err != nil {
		return 0, err
	}

	now := s.now()

	seq, err := s.storage.AppendFragment(ctx, sessionID, data, now)
	if err != nil {
		return 0, fmt.Errorf("failed to append fragment: %w", err)
	}

	if err := s.storage.IncrementEdits(ctx, sessionID, now); err != nil {
		return 0, fmt.Errorf("failed to increment edits: %w", err)
	}

	return seq, nil
}

// RecordConflict bumps the conflict resolution counter.
// Вызывается внешним merge-движком после разрешения конкурентной правки.
func (s *Service) RecordConflict(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock("session:" + sessionID)
	defer unlock()

	if _, err := s.getActive(ctx, sessionID); err != nil {
		return err
	}

	if err := s.storage.IncrementConflicts(ctx, sessionID, s.now()); err != nil {
		return fmt.Errorf("failed to increment conflicts: %w", err)
	}

	return nil
}

// GetSession retrieves a session. Чтение доступно и для завершенных сессий.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.storage.GetSession(ctx, sessionID)
}

// Fragments returns the full ordered update log of a session.
// Воспроизведение последовательности детерминированно восстанавливает
// документ; чтение доступно и для завершенных сессий.
func (s *Service) Fragments(ctx context.Context, sessionID string) ([]*models.UpdateFragment, error) {
	if _, err := s.storage.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	return s.storage.ListFragments(ctx, sessionID)
}

// getActive загружает сессию и проверяет, что она еще активна
func (s *Service) getActive(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, storage.ErrSessionClosed
	}
	return session, nil
}

// recordActivity пишет событие в ленту активности.
// Ошибка записи не прерывает операцию — лента не является источником истины.
func (s *Service) recordActivity(ctx context.Context, activityType, description string, user *models.ActivityUser) {
	activity := &models.Activity{
		ID:          uuid.New().String(),
		Type:        activityType,
		Description: description,
		User:        user,
		CreatedAt:   s.now(),
	}

	if err := s.activities.InsertActivity(ctx, activity); err != nil {
		s.logger.Warn("Failed to record activity",
			"type", activityType,
			"error", err)
	}
}
