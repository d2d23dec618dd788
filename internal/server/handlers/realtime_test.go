package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/poll"
	"github.com/iudanet/noteflow/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

var testUser = models.ActivityUser{ID: "user123", Name: "Alice", Email: "alice@example.com"}

// mockAggregator фиксирует переданный since и возвращает заготовленный результат
type mockAggregator struct {
	result    *poll.Result
	err       error
	lastSince time.Time
	lastUser  models.ActivityUser
}

func (m *mockAggregator) Poll(ctx context.Context, user models.ActivityUser, since time.Time) (*poll.Result, error) {
	m.lastUser = user
	m.lastSince = since
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func pollRequest(url string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	return req.WithContext(WithUser(req.Context(), testUser))
}

func TestRealtimeHandler_HandlePoll_Success(t *testing.T) {
	serverTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	agg := &mockAggregator{
		result: &poll.Result{
			ServerTime: serverTime,
			Activities: []*models.Activity{
				{
					ID:          "a1",
					Type:        models.ActivityUserJoined,
					Description: "Alice joined",
					User:        &testUser,
					CreatedAt:   serverTime.Add(-time.Second),
				},
			},
			OnlineUsers: []*models.OnlineUser{
				{ID: "user123", Name: "Alice", Email: "alice@example.com", LastActiveAt: serverTime},
			},
			TotalOnline:   1,
			Notifications: []*models.Notification{},
		},
	}
	handler := NewRealtimeHandler(setupTestLogger(), agg, time.Minute)

	lastPoll := serverTime.Add(-5 * time.Second)
	req := pollRequest("/api/realtime/poll?lastPollTime=" + lastPoll.Format(time.RFC3339Nano))

	w := httptest.NewRecorder()
	handler.HandlePoll(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp api.PollResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.True(t, resp.Timestamp.Equal(serverTime))
	require.Len(t, resp.Data.Activities, 1)
	assert.Equal(t, "a1", resp.Data.Activities[0].ID)
	assert.Equal(t, 1, resp.Data.Presence.TotalOnline)
	assert.NotNil(t, resp.Data.Notifications)
	assert.Empty(t, resp.Data.Notifications)

	// Watermark дошел до агрегатора без изменений
	assert.True(t, agg.lastSince.Equal(lastPoll))
	assert.Equal(t, testUser, agg.lastUser)
}

func TestRealtimeHandler_HandlePoll_DefaultLookback(t *testing.T) {
	agg := &mockAggregator{result: &poll.Result{ServerTime: time.Now()}}
	handler := NewRealtimeHandler(setupTestLogger(), agg, time.Minute)

	before := time.Now()
	w := httptest.NewRecorder()
	handler.HandlePoll(w, pollRequest("/api/realtime/poll"))

	require.Equal(t, http.StatusOK, w.Code)

	// Без lastPollTime берется окно "минуту назад"
	expected := before.Add(-time.Minute)
	assert.WithinDuration(t, expected, agg.lastSince, time.Second)
}

func TestRealtimeHandler_HandlePoll_InvalidTimestamp(t *testing.T) {
	agg := &mockAggregator{result: &poll.Result{ServerTime: time.Now()}}
	handler := NewRealtimeHandler(setupTestLogger(), agg, time.Minute)

	w := httptest.NewRecorder()
	handler.HandlePoll(w, pollRequest("/api/realtime/poll?lastPollTime=yesterday"))

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp api.PollErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
}

func TestRealtimeHandler_HandlePoll_AggregatorError(t *testing.T) {
	agg := &mockAggregator{err: errors.New("db down")}
	handler := NewRealtimeHandler(setupTestLogger(), agg, time.Minute)

	w := httptest.NewRecorder()
	handler.HandlePoll(w, pollRequest("/api/realtime/poll"))

	require.Equal(t, http.StatusInternalServerError, w.Code)

	// Ошибка в JSON-конверте, не в plain text
	var resp api.PollErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestRealtimeHandler_HandlePoll_Unauthorized(t *testing.T) {
	agg := &mockAggregator{result: &poll.Result{ServerTime: time.Now()}}
	handler := NewRealtimeHandler(setupTestLogger(), agg, time.Minute)

	// Нет пользователя в контексте
	req := httptest.NewRequest(http.MethodGet, "/api/realtime/poll", nil)

	w := httptest.NewRecorder()
	handler.HandlePoll(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
