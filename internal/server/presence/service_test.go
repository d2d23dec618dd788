package presence

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/storage"
	"github.com/iudanet/noteflow/internal/server/storage/sqlite"
)

func setupService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewService(st, 5*time.Minute, logger)
}

func heartbeat(t *testing.T, svc *Service, userID string, status models.PresenceStatus) {
	t.Helper()

	_, err := svc.Upsert(context.Background(), UpsertParams{
		User:         models.ActivityUser{ID: userID, Name: userID, Email: userID + "@example.com"},
		ResourceType: models.ResourceTypeNote,
		ResourceID:   "note-1",
		Status:       status,
	})
	require.NoError(t, err)
}

func TestUpsert_NoDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	// Несколько heartbeat подряд — одна запись
	heartbeat(t, svc, "alice", models.StatusViewing)
	heartbeat(t, svc, "alice", models.StatusEditing)
	heartbeat(t, svc, "alice", models.StatusEditing)

	records, err := svc.ListActive(ctx, models.ResourceTypeNote, "note-1", 0)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].UserID)
	assert.Equal(t, models.StatusEditing, records[0].Status)
}

func TestUpsert_DefaultsToViewing(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	heartbeat(t, svc, "alice", "")

	records, err := svc.ListActive(ctx, models.ResourceTypeNote, "note-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusViewing, records[0].Status)
}

func TestMarkInactive(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	heartbeat(t, svc, "alice", models.StatusViewing)

	require.NoError(t, svc.MarkInactive(ctx, "alice", models.ResourceTypeNote, "note-1"))

	records, err := svc.ListActive(ctx, models.ResourceTypeNote, "note-1", 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Несуществующая тройка дает ошибку
	err = svc.MarkInactive(ctx, "ghost", models.ResourceTypeNote, "note-1")
	assert.ErrorIs(t, err, storage.ErrPresenceNotFound)
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	// viewing -> editing по сигналу первой правки
	heartbeat(t, svc, "alice", models.StatusViewing)
	heartbeat(t, svc, "alice", models.StatusEditing)

	records, err := svc.ListActive(ctx, models.ResourceTypeNote, "note-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusEditing, records[0].Status)

	// editing -> idle по внешнему таймауту бездействия
	heartbeat(t, svc, "alice", models.StatusIdle)

	// idle -> viewing при свежей навигации
	heartbeat(t, svc, "alice", models.StatusViewing)

	records, err = svc.ListActive(ctx, models.ResourceTypeNote, "note-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusViewing, records[0].Status)
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	user := models.ActivityUser{ID: "alice", Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, svc.Touch(ctx, user))

	records, err := svc.ListActive(ctx, models.ResourceTypeApp, models.ResourceIDGlobal, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].UserID)
}

func TestReap(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	heartbeat(t, svc, "alice", models.StatusViewing)
	require.NoError(t, svc.MarkInactive(ctx, "alice", models.ResourceTypeNote, "note-1"))

	// Свежие неактивные строки ретеншен не задевает
	deleted, err := svc.Reap(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
