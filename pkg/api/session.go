package api

import "time"

// StartSessionRequest представляет запрос на открытие сессии для ресурса.
// Если активная сессия для ресурса уже существует, сервер присоединяет
// пользователя к ней (идемпотентный старт).
type StartSessionRequest struct {
	ResourceID string `json:"resource_id"`
}

// Session представляет сессию совместного редактирования в API
type Session struct {
	StartedAt    time.Time  `json:"started_at"`
	LastActivity time.Time  `json:"last_activity"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`

	ID         string `json:"id"`
	ResourceID string `json:"resource_id"`

	Participants []string `json:"participants"`

	TotalEdits          int64   `json:"total_edits"`
	ConflictResolutions int64   `json:"conflict_resolutions"`
	TotalParticipants   int     `json:"total_participants"`
	AvgDurationSeconds  float64 `json:"avg_duration_seconds"`
	IsActive            bool    `json:"is_active"`
}

// RecordEditRequest представляет запрос на запись фрагмента изменений.
// Data — непрозрачный бинарный фрагмент внешнего merge-движка
// (в JSON кодируется base64).
type RecordEditRequest struct {
	Data []byte `json:"data"`
}

// RecordEditResponse возвращает порядковый номер записанного фрагмента
type RecordEditResponse struct {
	Seq int64 `json:"seq"`
}

// Fragment представляет один фрагмент журнала изменений в API
type Fragment struct {
	CreatedAt time.Time `json:"created_at"`
	Data      []byte    `json:"data"`
	Seq       int64     `json:"seq"`
}

// FragmentsResponse представляет полный упорядоченный журнал сессии
type FragmentsResponse struct {
	SessionID string     `json:"session_id"`
	Fragments []Fragment `json:"fragments"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
