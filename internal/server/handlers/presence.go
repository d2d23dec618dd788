package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/presence"
	"github.com/iudanet/noteflow/internal/server/storage"
	"github.com/iudanet/noteflow/pkg/api"
)

// PresenceService определяет интерфейс трекера присутствия для HTTP-слоя
type PresenceService interface {
	Upsert(ctx context.Context, params presence.UpsertParams) (*models.PresenceRecord, error)
	ListActive(ctx context.Context, resourceType, resourceID string, window time.Duration) ([]*models.PresenceRecord, error)
	MarkInactive(ctx context.Context, userID, resourceType, resourceID string) error
}

// PresenceHandler handles presence heartbeat and listing requests
type PresenceHandler struct {
	logger  *slog.Logger
	service PresenceService
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(logger *slog.Logger, service PresenceService) *PresenceHandler {
	return &PresenceHandler{
		logger:  logger,
		service: service,
	}
}

// HandleHeartbeat обрабатывает POST /api/v1/presence/heartbeat
// Повторный heartbeat по той же тройке (user, resource_type, resource_id)
// обновляет существующую запись — дубликатов не возникает.
func (h *PresenceHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode heartbeat request", "error", err)
		writeJSON(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.ResourceType == "" || req.ResourceID == "" {
		writeJSON(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Error: "resource_type and resource_id are required"})
		return
	}

	record, err := h.service.Upsert(ctx, presence.UpsertParams{
		User:         user,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Status:       models.PresenceStatus(req.Status),
		Cursor:       req.Cursor,
		Selection:    req.Selection,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.logger.Error("Failed to upsert presence", "error", err, "user_id", user.ID)
		writeJSON(w, h.logger, http.StatusInternalServerError, api.ErrorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toAPIPresence(record))
}

// HandleLeave обрабатывает POST /api/v1/presence/leave
// Явный сигнал ухода: запись помечается неактивной, но не удаляется
func (h *PresenceHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.PresenceLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode leave request", "error", err)
		writeJSON(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.service.MarkInactive(ctx, user.ID, req.ResourceType, req.ResourceID)
	if err != nil {
		if errors.Is(err, storage.ErrPresenceNotFound) {
			writeJSON(w, h.logger, http.StatusNotFound, api.ErrorResponse{Error: "presence record not found"})
			return
		}
		h.logger.Error("Failed to mark presence inactive", "error", err, "user_id", user.ID)
		writeJSON(w, h.logger, http.StatusInternalServerError, api.ErrorResponse{Error: "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleList обрабатывает GET /api/v1/presence?resource_type=note&resource_id=abc
// Возвращает активные незачерствевшие записи присутствия ресурса
func (h *PresenceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resourceType := r.URL.Query().Get("resource_type")
	resourceID := r.URL.Query().Get("resource_id")
	if resourceType == "" || resourceID == "" {
		writeJSON(w, h.logger, http.StatusBadRequest, api.ErrorResponse{Error: "resource_type and resource_id are required"})
		return
	}

	records, err := h.service.ListActive(ctx, resourceType, resourceID, 0)
	if err != nil {
		h.logger.Error("Failed to list presence", "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, api.ErrorResponse{Error: "internal server error"})
		return
	}

	apiRecords := make([]api.PresenceRecord, 0, len(records))
	for _, record := range records {
		apiRecords = append(apiRecords, toAPIPresence(record))
	}

	writeJSON(w, h.logger, http.StatusOK, api.PresenceListResponse{
		Records: apiRecords,
		Total:   len(apiRecords),
	})
}

func toAPIPresence(record *models.PresenceRecord) api.PresenceRecord {
	return api.PresenceRecord{
		UserID:       record.UserID,
		UserName:     record.UserName,
		ResourceType: record.ResourceType,
		ResourceID:   record.ResourceID,
		IsActive:     record.IsActive,
		LastSeen:     record.LastSeen,
		Status:       string(record.Status),
		Cursor:       record.Cursor,
		Selection:    record.Selection,
	}
}
