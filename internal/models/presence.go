package models

import (
	"encoding/json"
	"time"
)

// PresenceStatus статус пользователя относительно ресурса
type PresenceStatus string

// Возможные статусы присутствия.
// Переходы: любой статус -> viewing при навигации, viewing -> editing при первой правке,
// editing -> idle по таймауту бездействия (таймер внешний).
const (
	StatusViewing PresenceStatus = "viewing"
	StatusEditing PresenceStatus = "editing"
	StatusIdle    PresenceStatus = "idle"
)

// ResourceType константы для типов отслеживаемых ресурсов
const (
	ResourceTypeNote     = "note"
	ResourceTypeLead     = "lead"
	ResourceTypeActivity = "activity"
	// ResourceTypeApp используется для глобального heartbeat пользователя
	// (обновляется при каждом poll-запросе, питает список "кто онлайн")
	ResourceTypeApp = "app"
)

// ResourceIDGlobal идентификатор ресурса для глобального heartbeat
const ResourceIDGlobal = "global"

// PresenceRecord представляет отношение одного пользователя к одному ресурсу.
// Тройка (UserID, ResourceType, ResourceID) уникальна: повторный upsert обновляет
// существующую запись, а не создает новую. Устаревание определяется фильтром
// по LastSeen на чтении — записи не удаляются, пока их явно не зачистят.
type PresenceRecord struct {
	LastSeen  time.Time `json:"last_seen"` // LastSeen время последнего heartbeat или активности

	UserID       string `json:"user_id"`       // UserID идентификатор пользователя
	UserName     string `json:"user_name"`     // UserName снимок имени из токена (для списка онлайн)
	UserEmail    string `json:"user_email"`    // UserEmail снимок email из токена
	ResourceType string `json:"resource_type"` // ResourceType тип ресурса (note/lead/activity/app)
	ResourceID   string `json:"resource_id"`   // ResourceID идентификатор ресурса

	Status    PresenceStatus  `json:"status"`             // Status viewing/editing/idle
	Cursor    json.RawMessage `json:"cursor,omitempty"`   // Cursor непрозрачная позиция курсора
	Selection json.RawMessage `json:"selection,omitempty"` // Selection непрозрачный диапазон выделения
	Metadata  json.RawMessage `json:"metadata,omitempty"`  // Metadata произвольные метаданные клиента

	IsActive bool `json:"is_active"` // IsActive false после явного ухода (MarkInactive)
}

// IsNewerThan сравнивает две presence-записи по правилу LWW (Last-Write-Wins):
// побеждает запись с большим LastSeen; при равных LastSeen — с большим UserID
// (лексикографически, для детерминизма). Конкурентные upsert по одному ключу
// не требуют другого разрешения конфликтов.
func (p *PresenceRecord) IsNewerThan(other *PresenceRecord) bool {
	if p.LastSeen.After(other.LastSeen) {
		return true
	}
	if p.LastSeen.Before(other.LastSeen) {
		return false
	}
	return p.UserID > other.UserID
}

// IsStale проверяет, вышла ли запись за окно свежести относительно now.
func (p *PresenceRecord) IsStale(now time.Time, window time.Duration) bool {
	return now.Sub(p.LastSeen) > window
}

// OnlineUser представляет пользователя в сводке присутствия poll-ответа.
type OnlineUser struct {
	LastActiveAt time.Time `json:"last_active_at"` // LastActiveAt максимальный LastSeen по всем ресурсам пользователя
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
}
