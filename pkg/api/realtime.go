package api

import "time"

// Activity представляет одно событие ленты активности в poll-ответе
type Activity struct {
	CreatedAt   time.Time     `json:"createdAt"` // время создания события (граница watermark)
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	User        *ActivityUser `json:"user"` // инициатор события, null для системных событий
}

// ActivityUser снимок данных пользователя на момент события
type ActivityUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OnlineUser представляет одного пользователя в сводке присутствия
type OnlineUser struct {
	LastActiveAt time.Time `json:"lastActiveAt"` // последний сигнал активности
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
}

// PresenceSummary сводка присутствия в poll-ответе
type PresenceSummary struct {
	OnlineUsers []OnlineUser `json:"onlineUsers"` // пользователи, активные в окне свежести
	TotalOnline int          `json:"totalOnline"` // количество пользователей онлайн
}

// Notification уведомление из внешней подсистемы уведомлений
type Notification struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
}

// PollData полезная нагрузка успешного poll-ответа
type PollData struct {
	Activities    []Activity      `json:"activities"`    // события строго новее lastPollTime, новые первыми
	Presence      PresenceSummary `json:"presence"`      // кто сейчас онлайн
	Notifications []Notification  `json:"notifications"` // может быть пустым
}

// PollResponse представляет ответ GET /api/realtime/poll.
// Timestamp — серверное время формирования ответа; клиент использует его
// как watermark следующего запроса и никогда не полагается на свои часы.
type PollResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Data      PollData  `json:"data"`
	Success   bool      `json:"success"`
}

// PollErrorResponse представляет ответ при внутренней ошибке poll-эндпоинта
type PollErrorResponse struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}
