// Package poller реализует устойчивый транспорт опроса: периодические
// poll-запросы, экспоненциальный backoff при сбоях и терминальная остановка
// после исчерпания повторов. Watermark двигается только на серверную метку
// из подтвержденного ответа — часы клиента в протоколе не участвуют.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	clientapi "github.com/iudanet/noteflow/internal/client/api"
	"github.com/iudanet/noteflow/internal/client/storage"
	"github.com/iudanet/noteflow/pkg/api"
)

// PollAPI определяет интерфейс API клиента для опроса
type PollAPI interface {
	Poll(ctx context.Context, lastPollTime time.Time) (*api.PollResponse, error)
}

// Config holds polling transport settings
type Config struct {
	// Interval пауза между успешными опросами
	Interval time.Duration
	// MaxRetries сколько повторов допускается после первого сбоя
	MaxRetries int
	// BackoffBase задержка перед первым повтором; далее удваивается
	BackoffBase time.Duration
	// MaxBackoff потолок задержки между повторами
	MaxBackoff time.Duration
}

// DefaultConfig returns production polling settings
func DefaultConfig() Config {
	return Config{
		Interval:    3 * time.Second,
		MaxRetries:  5,
		BackoffBase: time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Poller drives the polling loop
type Poller struct {
	client     PollAPI
	watermarks storage.WatermarkStorage
	logger     *slog.Logger
	cfg        Config

	events chan Event

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	status  Status
	running bool
}

// NewPoller creates a new polling transport
func NewPoller(client PollAPI, watermarks storage.WatermarkStorage, cfg Config, logger *slog.Logger) *Poller {
	return &Poller{
		client:     client,
		watermarks: watermarks,
		logger:     logger,
		cfg:        cfg,
		events:     make(chan Event, 64),
		status:     StatusIdle,
	}
}

// Events returns the event stream.
// Канал буферизован; при переполнении события дропаются, а не блокируют цикл.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// Status returns the current connection status
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Start launches the polling loop.
// Повторный Start на работающем поллере — ошибка; после Stop или
// терминальной остановки можно стартовать заново с чистым состоянием повторов.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.status = StatusActive

	go p.loop(loopCtx)

	return nil
}

// Stop останавливает цикл опроса и отменяет запрос в полете.
// Идемпотентен: повторные вызовы безвредны.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// loop крутит опрос до отмены контекста или терминальной ошибки
func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	watermark, err := p.watermarks.GetWatermark(ctx)
	if err != nil {
		// Не фатально: сервер подставит окно по умолчанию
		p.logger.Warn("Failed to load watermark", "error", err)
		watermark = time.Time{}
	}

	bo := p.newBackoff()
	failures := 0

	for {
		resp, err := p.client.Poll(ctx, watermark)
		if err != nil {
			if ctx.Err() != nil {
				p.finish(StatusStopped, nil)
				return
			}

			// Протухший токен повторами не лечится
			if errors.Is(err, clientapi.ErrUnauthorized) {
				p.logger.Error("Poll unauthorized, stopping", "error", err)
				p.finish(StatusUnauthorized, err)
				return
			}

			failures++
			if failures > p.cfg.MaxRetries {
				p.logger.Error("Poll retries exhausted, stopping",
					"failures", failures,
					"error", err)
				p.finish(StatusFailed, err)
				return
			}

			delay := bo.NextBackOff()
			p.logger.Warn("Poll failed, will retry",
				"attempt", failures,
				"delay", delay,
				"error", err)
			p.setStatus(StatusReconnecting, err)

			if !p.sleep(ctx, delay) {
				p.finish(StatusStopped, nil)
				return
			}
			continue
		}

		// Успех сбрасывает серию повторов
		if failures > 0 {
			failures = 0
			bo.Reset()
		}
		p.setStatus(StatusActive, nil)

		// Watermark двигается только на серверную метку ответа
		watermark = resp.Timestamp
		if err := p.watermarks.SaveWatermark(ctx, watermark); err != nil {
			p.logger.Warn("Failed to persist watermark", "error", err)
		}

		p.emit(Event{Type: EventUpdate, Response: resp})

		if !p.sleep(ctx, p.cfg.Interval) {
			p.finish(StatusStopped, nil)
			return
		}
	}
}

// newBackoff настраивает детерминированный экспоненциальный backoff:
// base, base*2, base*4, ... с потолком MaxBackoff
func (p *Poller) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.BackoffBase
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = p.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// sleep ждет delay или отмену контекста; false при отмене
func (p *Poller) sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// setStatus меняет статус и уведомляет подписчика, если статус сменился
func (p *Poller) setStatus(status Status, cause error) {
	p.mu.Lock()
	changed := p.status != status
	p.status = status
	p.mu.Unlock()

	if changed {
		p.emit(Event{Type: EventStatus, Status: status, Err: cause})
	}
}

// finish переводит поллер в конечное состояние
func (p *Poller) finish(status Status, cause error) {
	p.setStatus(status, cause)

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// emit отправляет событие без блокировки цикла опроса
func (p *Poller) emit(event Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Event channel full, dropping event", "type", event.Type)
	}
}
