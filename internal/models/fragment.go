package models

import "time"

// UpdateFragment представляет один непрозрачный фрагмент изменений в журнале сессии.
// Фрагменты производятся внешним merge-движком, сервер их не интерпретирует.
// Журнал append-only: фрагменты не изменяются и не удаляются, а воспроизведение
// полной последовательности в порядке Seq детерминированно восстанавливает документ.
type UpdateFragment struct {
	CreatedAt time.Time `json:"created_at"` // CreatedAt время записи фрагмента (для информации)
	SessionID string    `json:"session_id"` // SessionID сессия, которой принадлежит фрагмент
	Data      []byte    `json:"data"`       // Data непрозрачные бинарные данные фрагмента
	Seq       int64     `json:"seq"`        // Seq строго возрастающий порядковый номер внутри сессии
}

// Clone создает глубокую копию фрагмента.
func (f *UpdateFragment) Clone() *UpdateFragment {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)

	return &UpdateFragment{
		SessionID: f.SessionID,
		Seq:       f.Seq,
		Data:      data,
		CreatedAt: f.CreatedAt,
	}
}
