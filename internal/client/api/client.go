// Package api реализует HTTP клиент сервиса координации.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/noteflow/pkg/api"
)

// ErrUnauthorized возвращается при 401/403: токен истек или отозван.
// Опрос при такой ошибке не перезапускается — нужен новый логин.
var ErrUnauthorized = errors.New("unauthorized")

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetToken устанавливает Bearer токен для последующих запросов
func (c *Client) SetToken(token string) {
	c.token = token
}

// Poll запрашивает дельту изменений после lastPollTime.
// Нулевой lastPollTime означает "сервер сам выберет окно по умолчанию".
func (c *Client) Poll(ctx context.Context, lastPollTime time.Time) (*api.PollResponse, error) {
	path := "/api/realtime/poll"
	if !lastPollTime.IsZero() {
		path += "?lastPollTime=" + url.QueryEscape(lastPollTime.Format(time.RFC3339Nano))
	}

	var resp api.PollResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	return &resp, nil
}

// StartSession открывает (или идемпотентно присоединяется к) сессии ресурса
func (c *Client) StartSession(ctx context.Context, resourceID string) (*api.Session, error) {
	var resp api.Session
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/sessions/start", api.StartSessionRequest{ResourceID: resourceID}, &resp)
	if err != nil {
		return nil, fmt.Errorf("start session request failed: %w", err)
	}
	return &resp, nil
}

// GetSession возвращает сессию по идентификатору
func (c *Client) GetSession(ctx context.Context, sessionID string) (*api.Session, error) {
	var resp api.Session
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("get session request failed: %w", err)
	}
	return &resp, nil
}

// JoinSession присоединяет пользователя к сессии
func (c *Client) JoinSession(ctx context.Context, sessionID string) (*api.Session, error) {
	var resp api.Session
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/join", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("join session request failed: %w", err)
	}
	return &resp, nil
}

// LeaveSession убирает пользователя из сессии
func (c *Client) LeaveSession(ctx context.Context, sessionID string) error {
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/leave", nil, nil)
	if err != nil {
		return fmt.Errorf("leave session request failed: %w", err)
	}
	return nil
}

// RecordEdit отправляет фрагмент изменений в журнал сессии
func (c *Client) RecordEdit(ctx context.Context, sessionID string, data []byte) (int64, error) {
	var resp api.RecordEditResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/edits", api.RecordEditRequest{Data: data}, &resp)
	if err != nil {
		return 0, fmt.Errorf("record edit request failed: %w", err)
	}
	return resp.Seq, nil
}

// Fragments забирает полный упорядоченный журнал изменений сессии
func (c *Client) Fragments(ctx context.Context, sessionID string) (*api.FragmentsResponse, error) {
	var resp api.FragmentsResponse
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/fragments", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("fragments request failed: %w", err)
	}
	return &resp, nil
}

// Heartbeat отправляет сигнал присутствия на ресурсе
func (c *Client) Heartbeat(ctx context.Context, req api.HeartbeatRequest) (*api.PresenceRecord, error) {
	var resp api.PresenceRecord
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/presence/heartbeat", req, &resp); err != nil {
		return nil, fmt.Errorf("heartbeat request failed: %w", err)
	}
	return &resp, nil
}

// PresenceLeave отправляет явный сигнал ухода с ресурса
func (c *Client) PresenceLeave(ctx context.Context, resourceType, resourceID string) error {
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/presence/leave", api.PresenceLeaveRequest{
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}, nil)
	if err != nil {
		return fmt.Errorf("presence leave request failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// 401/403 — отдельная невосстановимая ошибка
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("status %d: %w", resp.StatusCode, ErrUnauthorized)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
