package models

import "time"

// Session представляет контекст совместного редактирования одного ресурса.
// Сессия создается, когда первый участник открывает ресурс, и завершается
// (но не удаляется), когда последний участник отключается. Агрегатные
// счетчики сохраняются бессрочно для аудита.
type Session struct {
	StartedAt    time.Time  `json:"started_at"`    // StartedAt время создания сессии
	LastActivity time.Time  `json:"last_activity"` // LastActivity время последнего события (join/leave/edit/conflict)
	EndedAt      *time.Time `json:"ended_at"`      // EndedAt время завершения (nil пока сессия активна)

	ID         string `json:"id"`          // ID уникальный идентификатор сессии (UUID)
	ResourceID string `json:"resource_id"` // ResourceID идентификатор редактируемого ресурса

	Participants []string `json:"participants"` // Participants текущий набор участников (уникальный по user_id)

	TotalEdits          int64   `json:"total_edits"`          // TotalEdits общее количество правок за жизнь сессии
	ConflictResolutions int64   `json:"conflict_resolutions"` // ConflictResolutions количество разрешенных конфликтов
	TotalParticipants   int     `json:"total_participants"`   // TotalParticipants сколько разных пользователей когда-либо присоединялось
	AvgDurationSeconds  float64 `json:"avg_duration_seconds"` // AvgDurationSeconds скользящее среднее длительности завершенных сессий ресурса
	IsActive            bool    `json:"is_active"`            // IsActive флаг активности
}

// HasParticipant проверяет, входит ли пользователь в текущий набор участников.
func (s *Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Duration возвращает длительность сессии. Для активной сессии — время с начала до now.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}
