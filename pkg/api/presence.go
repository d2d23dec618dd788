package api

import (
	"encoding/json"
	"time"
)

// HeartbeatRequest представляет сигнал присутствия пользователя на ресурсе.
// Повторный heartbeat по той же тройке (user, resource_type, resource_id)
// обновляет существующую запись.
type HeartbeatRequest struct {
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Status       string          `json:"status"` // viewing/editing/idle
	Cursor       json.RawMessage `json:"cursor,omitempty"`
	Selection    json.RawMessage `json:"selection,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// PresenceLeaveRequest представляет явный сигнал ухода с ресурса
type PresenceLeaveRequest struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
}

// PresenceRecord представляет запись присутствия в API
type PresenceRecord struct {
	LastSeen time.Time `json:"last_seen"`

	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`

	Status    string          `json:"status"`
	Cursor    json.RawMessage `json:"cursor,omitempty"`
	Selection json.RawMessage `json:"selection,omitempty"`

	IsActive bool `json:"is_active"`
}

// PresenceListResponse представляет ответ "кто сейчас на ресурсе"
type PresenceListResponse struct {
	Records []PresenceRecord `json:"records"`
	Total   int              `json:"total"`
}
