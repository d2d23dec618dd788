package poller

import "github.com/iudanet/noteflow/pkg/api"

// Status представляет состояние соединения опроса
type Status string

const (
	// StatusIdle опрос не запущен
	StatusIdle Status = "idle"
	// StatusActive последний опрос прошел успешно
	StatusActive Status = "active"
	// StatusReconnecting опрос падает, идут повторы с backoff
	StatusReconnecting Status = "reconnecting"
	// StatusFailed повторы исчерпаны, опрос остановлен
	StatusFailed Status = "failed"
	// StatusUnauthorized токен отклонен сервером, нужен новый логин
	StatusUnauthorized Status = "unauthorized"
	// StatusStopped опрос остановлен вызовом Stop
	StatusStopped Status = "stopped"
)

// EventType тип события опроса
type EventType string

const (
	// EventUpdate пришла дельта от сервера
	EventUpdate EventType = "update"
	// EventStatus изменилось состояние соединения
	EventStatus EventType = "status"
)

// Event представляет событие, доставляемое подписчику опроса
type Event struct {
	Type EventType
	// Response заполнен для EventUpdate
	Response *api.PollResponse
	// Status заполнен для EventStatus
	Status Status
	// Err причина смены статуса, если она вызвана ошибкой
	Err error
}
