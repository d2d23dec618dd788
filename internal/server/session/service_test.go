package session

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

var (
	alice = models.ActivityUser{ID: "u-alice", Name: "Alice", Email: "alice@example.com"}
	bob   = models.ActivityUser{ID: "u-bob", Name: "Bob", Email: "bob@example.com"}
)

func setupService(t *testing.T) (*Service, *sqlite.Storage) {
	t.Helper()

	st, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewService(st, st, logger), st
}

func TestStartSession_CreatesNew(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	session, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "note-1", session.ResourceID)
	assert.True(t, session.IsActive)
	assert.Equal(t, []string{alice.ID}, session.Participants)
	assert.Equal(t, 1, session.TotalParticipants)
}

func TestStartSession_IdempotentJoin(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	first, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)

	// Старт для ресурса с активной сессией присоединяет, а не плодит вторую
	second, err := svc.StartSession(ctx, "note-1", bob)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, second.Participants)
	assert.Equal(t, 2, second.TotalParticipants)
}

func TestStartSession_ResourcesAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	first, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)

	second, err := svc.StartSession(ctx, "note-2", alice)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestJoinLeave(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	session, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)

	joined, err := svc.Join(ctx, session.ID, bob)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, joined.Participants)
	assert.Equal(t, 2, joined.TotalParticipants)

	// Leave не завершает сессию
	require.NoError(t, svc.Leave(ctx, session.ID, bob))

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, []string{alice.ID}, got.Participants)

	// Возврат не увеличивает счетчик за жизнь сессии
	rejoined, err := svc.Join(ctx, session.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, rejoined.TotalParticipants)
}

func TestJoin_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Join(ctx, "missing", alice)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestRecordEdit(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	session, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)

	seq, err := svc.RecordEdit(ctx, session.ID, []byte("frag-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = svc.RecordEdit(ctx, session.ID, []byte("frag-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TotalEdits)

	fragments, err := svc.Fragments(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, []byte("frag-1"), fragments[0].Data)
	assert.Equal(t, []byte("frag-2"), fragments[1].Data)
}

func TestRecordConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	session, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)

	require.NoError(t, svc.RecordConflict(ctx, session.ID))
	require.NoError(t, svc.RecordConflict(ctx, session.ID))

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ConflictResolutions)
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	session, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(ctx, session.ID))

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.EndedAt)

	// Мутации завершенной сессии запрещены
	_, err = svc.RecordEdit(ctx, session.ID, []byte("late"))
	assert.ErrorIs(t, err, storage.ErrSessionClosed)

	err = svc.RecordConflict(ctx, session.ID)
	assert.ErrorIs(t, err, storage.ErrSessionClosed)

	_, err = svc.Join(ctx, session.ID, bob)
	assert.ErrorIs(t, err, storage.ErrSessionClosed)

	err = svc.EndSession(ctx, session.ID)
	assert.ErrorIs(t, err, storage.ErrSessionClosed)

	// Чтение завершенной сессии доступно
	_, err = svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	_, err = svc.Fragments(ctx, session.ID)
	require.NoError(t, err)
}

func TestEndSession_StartsFreshSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	first, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)
	require.NoError(t, svc.EndSession(ctx, first.ID))

	// После завершения старт открывает новую сессию
	second, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.IsActive)
}

func TestRecordEdit_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.RecordEdit(ctx, "missing", []byte("x"))
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestLifecycleActivities(t *testing.T) {
	ctx := context.Background()
	svc, st := setupService(t)

	before := time.Now().Add(-time.Second)

	session, err := svc.StartSession(ctx, "note-1", alice)
	require.NoError(t, err)

	_, err = svc.Join(ctx, session.ID, bob)
	require.NoError(t, err)

	require.NoError(t, svc.Leave(ctx, session.ID, bob))
	require.NoError(t, svc.EndSession(ctx, session.ID))

	activities, err := st.ListActivitiesAfter(ctx, before, 50)
	require.NoError(t, err)

	types := make([]string, 0, len(activities))
	for _, a := range activities {
		types = append(types, a.Type)
	}

	assert.ElementsMatch(t, []string{
		models.ActivitySessionStarted,
		models.ActivityUserJoined,
		models.ActivityUserLeft,
		models.ActivitySessionEnded,
	}, types)

	// Системное событие завершения без пользователя
	for _, a := range activities {
		if a.Type == models.ActivitySessionEnded {
			assert.Nil(t, a.User)
		}
		if a.Type == models.ActivityUserJoined {
			require.NotNil(t, a.User)
			assert.Equal(t, bob.ID, a.User.ID)
		}
	}
}
