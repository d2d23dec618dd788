package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/storage"
	"github.com/iudanet/noteflow/pkg/api"
)

// SessionService определяет интерфейс менеджера сессий для HTTP-слоя
type SessionService interface {
	StartSession(ctx context.Context, resourceID string, actor models.ActivityUser) (*models.Session, error)
	Join(ctx context.Context, sessionID string, actor models.ActivityUser) (*models.Session, error)
	Leave(ctx context.Context, sessionID string, actor models.ActivityUser) error
	EndSession(ctx context.Context, sessionID string) error
	RecordEdit(ctx context.Context, sessionID string, data []byte) (int64, error)
	RecordConflict(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	Fragments(ctx context.Context, sessionID string) ([]*models.UpdateFragment, error)
}

// SessionHandler handles collaboration session requests
type SessionHandler struct {
	logger  *slog.Logger
	service SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(logger *slog.Logger, service SessionService) *SessionHandler {
	return &SessionHandler{
		logger:  logger,
		service: service,
	}
}

// HandleStart обрабатывает POST /api/v1/sessions/start
// Идемпотентный старт: при существующей активной сессии ресурса
// пользователь присоединяется к ней.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode start request", "error", err)
		writeJSON(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.ResourceID == "" {
		writeJSON(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Error: "resource_id is required"})
		return
	}

	session, err := h.service.StartSession(ctx, req.ResourceID, user)
	if err != nil {
		h.writeSessionError(w, err, "start session")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toAPISession(session))
}

// HandleJoin обрабатывает POST /api/v1/sessions/{sessionID}/join
func (h *SessionHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.service.Join(ctx, sessionID, user)
	if err != nil {
		h.writeSessionError(w, err, "join session")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toAPISession(session))
}

// HandleLeave обрабатывает POST /api/v1/sessions/{sessionID}/leave
// Уход последнего участника сессию не завершает: решение принимает
// внешняя idle-timeout политика.
func (h *SessionHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")

	if err := h.service.Leave(ctx, sessionID, user); err != nil {
		h.writeSessionError(w, err, "leave session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleEnd обрабатывает POST /api/v1/sessions/{sessionID}/end
func (h *SessionHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := chi.URLParam(r, "sessionID")

	if err := h.service.EndSession(ctx, sessionID); err != nil {
		h.writeSessionError(w, err, "end session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRecordEdit обрабатывает POST /api/v1/sessions/{sessionID}/edits
// Фрагмент непрозрачен: сервер только присваивает порядковый номер
func (h *SessionHandler) HandleRecordEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := chi.URLParam(r, "sessionID")

	var req api.RecordEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode edit request", "error", err)
		writeJSON(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Data) == 0 {
		writeJSON(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Error: "data is required"})
		return
	}

	seq, err := h.service.RecordEdit(ctx, sessionID, req.Data)
	if err != nil {
		h.writeSessionError(w, err, "record edit")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.RecordEditResponse{Seq: seq})
}

// HandleRecordConflict обрабатывает POST /api/v1/sessions/{sessionID}/conflicts
func (h *SessionHandler) HandleRecordConflict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := chi.URLParam(r, "sessionID")

	if err := h.service.RecordConflict(ctx, sessionID); err != nil {
		h.writeSessionError(w, err, "record conflict")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGet обрабатывает GET /api/v1/sessions/{sessionID}
// Чтение доступно и для завершенных сессий
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.service.GetSession(ctx, sessionID)
	if err != nil {
		h.writeSessionError(w, err, "get session")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toAPISession(session))
}

// HandleFragments обрабатывает GET /api/v1/sessions/{sessionID}/fragments
// Возвращает полный упорядоченный журнал изменений сессии
func (h *SessionHandler) HandleFragments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := chi.URLParam(r, "sessionID")

	fragments, err := h.service.Fragments(ctx, sessionID)
	if err != nil {
		h.writeSessionError(w, err, "list fragments")
		return
	}

	apiFragments := make([]api.Fragment, 0, len(fragments))
	for _, f := range fragments {
		apiFragments = append(apiFragments, api.Fragment{
			Seq:       f.Seq,
			Data:      f.Data,
			CreatedAt: f.CreatedAt,
		})
	}

	writeJSON(w, h.logger, http.StatusOK, api.FragmentsResponse{
		SessionID: sessionID,
		Fragments: apiFragments,
	})
}

// writeSessionError транслирует доменные ошибки в HTTP статусы
func (h *SessionHandler) writeSessionError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		writeJSON(w, h.logger, http.StatusNotFound, api.ErrorResponse{Error: "session not found"})
	case errors.Is(err, storage.ErrSessionClosed):
		writeJSON(w, h.logger, http.StatusConflict, api.ErrorResponse{Error: "session already ended"})
	default:
		h.logger.Error("Session operation failed", "op", op, "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, api.ErrorResponse{Error: "internal server error"})
	}
}

func toAPISession(s *models.Session) api.Session {
	return api.Session{
		ID:                  s.ID,
		ResourceID:          s.ResourceID,
		Participants:        s.Participants,
		IsActive:            s.IsActive,
		StartedAt:           s.StartedAt,
		EndedAt:             s.EndedAt,
		LastActivity:        s.LastActivity,
		TotalEdits:          s.TotalEdits,
		ConflictResolutions: s.ConflictResolutions,
		TotalParticipants:   s.TotalParticipants,
		AvgDurationSeconds:  s.AvgDurationSeconds,
	}
}
