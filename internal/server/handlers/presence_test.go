package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/presence"
	"github.com/iudanet/noteflow/internal/server/storage"
	"github.com/iudanet/noteflow/pkg/api"
)

// fakePresenceService хранит записи присутствия в памяти по ключу тройки
type fakePresenceService struct {
	records map[string]*models.PresenceRecord
}

func newFakePresenceService() *fakePresenceService {
	return &fakePresenceService{records: make(map[string]*models.PresenceRecord)}
}

func presenceKey(userID, resourceType, resourceID string) string {
	return userID + "|" + resourceType + "|" + resourceID
}

func (f *fakePresenceService) Upsert(ctx context.Context, params presence.UpsertParams) (*models.PresenceRecord, error) {
	status := params.Status
	if status == "" {
		status = models.StatusViewing
	}
	record := &models.PresenceRecord{
		UserID:       params.User.ID,
		UserName:     params.User.Name,
		UserEmail:    params.User.Email,
		ResourceType: params.ResourceType,
		ResourceID:   params.ResourceID,
		IsActive:     true,
		LastSeen:     time.Now(),
		Status:       status,
		Cursor:       params.Cursor,
		Selection:    params.Selection,
		Metadata:     params.Metadata,
	}
	f.records[presenceKey(record.UserID, record.ResourceType, record.ResourceID)] = record
	return record, nil
}

func (f *fakePresenceService) ListActive(ctx context.Context, resourceType, resourceID string, window time.Duration) ([]*models.PresenceRecord, error) {
	out := []*models.PresenceRecord{}
	for _, record := range f.records {
		if record.IsActive && record.ResourceType == resourceType && record.ResourceID == resourceID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakePresenceService) MarkInactive(ctx context.Context, userID, resourceType, resourceID string) error {
	record, ok := f.records[presenceKey(userID, resourceType, resourceID)]
	if !ok {
		return storage.ErrPresenceNotFound
	}
	record.IsActive = false
	return nil
}

func presenceRequest(method, url string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	return req.WithContext(WithUser(req.Context(), testUser))
}

func TestPresenceHandler_Heartbeat(t *testing.T) {
	svc := newFakePresenceService()
	handler := NewPresenceHandler(setupTestLogger(), svc)

	body, _ := json.Marshal(api.HeartbeatRequest{
		ResourceType: models.ResourceTypeNote,
		ResourceID:   "note-1",
		Status:       "editing",
		Cursor:       json.RawMessage(`{"line":3,"col":14}`),
	})

	w := httptest.NewRecorder()
	handler.HandleHeartbeat(w, presenceRequest(http.MethodPost, "/api/v1/presence/heartbeat", body))

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.PresenceRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, testUser.ID, resp.UserID)
	assert.Equal(t, "editing", resp.Status)
	assert.True(t, resp.IsActive)
	assert.JSONEq(t, `{"line":3,"col":14}`, string(resp.Cursor))
}

func TestPresenceHandler_Heartbeat_NoDuplicates(t *testing.T) {
	svc := newFakePresenceService()
	handler := NewPresenceHandler(setupTestLogger(), svc)

	for i := 0; i < 3; i++ {
		body, _ := json.Marshal(api.HeartbeatRequest{
			ResourceType: models.ResourceTypeNote,
			ResourceID:   "note-1",
		})
		w := httptest.NewRecorder()
		handler.HandleHeartbeat(w, presenceRequest(http.MethodPost, "/api/v1/presence/heartbeat", body))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Len(t, svc.records, 1)
}

func TestPresenceHandler_Heartbeat_MissingResource(t *testing.T) {
	handler := NewPresenceHandler(setupTestLogger(), newFakePresenceService())

	body, _ := json.Marshal(api.HeartbeatRequest{ResourceType: models.ResourceTypeNote})

	w := httptest.NewRecorder()
	handler.HandleHeartbeat(w, presenceRequest(http.MethodPost, "/api/v1/presence/heartbeat", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresenceHandler_Leave(t *testing.T) {
	svc := newFakePresenceService()
	handler := NewPresenceHandler(setupTestLogger(), svc)

	hbBody, _ := json.Marshal(api.HeartbeatRequest{ResourceType: models.ResourceTypeNote, ResourceID: "note-1"})
	w := httptest.NewRecorder()
	handler.HandleHeartbeat(w, presenceRequest(http.MethodPost, "/api/v1/presence/heartbeat", hbBody))
	require.Equal(t, http.StatusOK, w.Code)

	leaveBody, _ := json.Marshal(api.PresenceLeaveRequest{ResourceType: models.ResourceTypeNote, ResourceID: "note-1"})
	w = httptest.NewRecorder()
	handler.HandleLeave(w, presenceRequest(http.MethodPost, "/api/v1/presence/leave", leaveBody))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, svc.records[presenceKey(testUser.ID, models.ResourceTypeNote, "note-1")].IsActive)
}

func TestPresenceHandler_Leave_NotFound(t *testing.T) {
	handler := NewPresenceHandler(setupTestLogger(), newFakePresenceService())

	body, _ := json.Marshal(api.PresenceLeaveRequest{ResourceType: models.ResourceTypeNote, ResourceID: "ghost"})

	w := httptest.NewRecorder()
	handler.HandleLeave(w, presenceRequest(http.MethodPost, "/api/v1/presence/leave", body))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPresenceHandler_List(t *testing.T) {
	svc := newFakePresenceService()
	handler := NewPresenceHandler(setupTestLogger(), svc)

	hbBody, _ := json.Marshal(api.HeartbeatRequest{ResourceType: models.ResourceTypeNote, ResourceID: "note-1"})
	w := httptest.NewRecorder()
	handler.HandleHeartbeat(w, presenceRequest(http.MethodPost, "/api/v1/presence/heartbeat", hbBody))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.HandleList(w, presenceRequest(http.MethodGet, "/api/v1/presence?resource_type=note&resource_id=note-1", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.PresenceListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, testUser.ID, resp.Records[0].UserID)
}

func TestPresenceHandler_List_MissingParams(t *testing.T) {
	handler := NewPresenceHandler(setupTestLogger(), newFakePresenceService())

	w := httptest.NewRecorder()
	handler.HandleList(w, presenceRequest(http.MethodGet, "/api/v1/presence", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
