package models

import "time"

// Activity types, записываемые менеджером сессий.
const (
	ActivitySessionStarted = "session_started"
	ActivitySessionEnded   = "session_ended"
	ActivityUserJoined     = "user_joined"
	ActivityUserLeft       = "user_left"
)

// ActivityUser снимок данных пользователя на момент события.
// Хранится денормализованно: каталог пользователей — внешний компонент,
// и лента событий не должна зависеть от его доступности.
type ActivityUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Activity представляет одно событие в ленте активности, доставляемой через poll.
// CreatedAt используется как граница watermark: выборка идет строго после
// переданной метки, поэтому точность хранения — миллисекунды.
type Activity struct {
	CreatedAt   time.Time     `json:"created_at"`
	ID          string        `json:"id"`          // ID уникальный идентификатор события (UUID)
	Type        string        `json:"type"`        // Type тип события (session_started, user_joined, ...)
	Description string        `json:"description"` // Description человекочитаемое описание
	User        *ActivityUser `json:"user"`        // User инициатор события (nil для системных событий)
}

// Notification представляет уведомление из внешней подсистемы уведомлений.
// Источник подключается через poll.NotificationSource и может отсутствовать.
type Notification struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
}
