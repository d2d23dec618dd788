package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/noteflow/internal/client/poller"
	"github.com/iudanet/noteflow/pkg/api"
)

func updateEvent(ts time.Time, activities ...api.Activity) poller.Event {
	return poller.Event{
		Type: poller.EventUpdate,
		Response: &api.PollResponse{
			Timestamp: ts,
			Success:   true,
			Data: api.PollData{
				Activities: activities,
				Presence: api.PresenceSummary{
					OnlineUsers: []api.OnlineUser{{ID: "u1", Name: "Alice"}},
					TotalOnline: 1,
				},
			},
		},
	}
}

func TestStore_ApplyUpdate(t *testing.T) {
	store := NewStore()

	ts := time.Now()
	store.Apply(updateEvent(ts, api.Activity{ID: "a1", Type: "user_joined", CreatedAt: ts}))

	snap := store.Snapshot()
	require.Len(t, snap.Activities, 1)
	assert.Equal(t, "a1", snap.Activities[0].ID)
	assert.Equal(t, 1, snap.TotalOnline)
	assert.True(t, snap.LastSyncAt.Equal(ts))
}

func TestStore_DeduplicatesRedelivery(t *testing.T) {
	store := NewStore()
	ts := time.Now()

	activity := api.Activity{ID: "a1", Type: "user_joined", CreatedAt: ts}

	// Повторная доставка того же события после ретрая
	store.Apply(updateEvent(ts, activity))
	store.Apply(updateEvent(ts.Add(time.Second), activity))

	snap := store.Snapshot()
	assert.Len(t, snap.Activities, 1)
}

func TestStore_NewestFirst(t *testing.T) {
	store := NewStore()
	ts := time.Now()

	store.Apply(updateEvent(ts, api.Activity{ID: "a1", CreatedAt: ts.Add(-2 * time.Second)}))
	store.Apply(updateEvent(ts.Add(time.Second), api.Activity{ID: "a2", CreatedAt: ts}))

	snap := store.Snapshot()
	require.Len(t, snap.Activities, 2)
	assert.Equal(t, "a2", snap.Activities[0].ID)
	assert.Equal(t, "a1", snap.Activities[1].ID)
}

func TestStore_FeedLimit(t *testing.T) {
	store := NewStore()
	store.feedLimit = 5

	ts := time.Now()
	for i := 0; i < 10; i++ {
		store.Apply(updateEvent(ts, api.Activity{ID: fmt.Sprintf("a%d", i), CreatedAt: ts}))
	}

	snap := store.Snapshot()
	assert.Len(t, snap.Activities, 5)
	// Свежие остались, старые вытеснены
	assert.Equal(t, "a9", snap.Activities[0].ID)
}

func TestStore_PresenceReplaced(t *testing.T) {
	store := NewStore()
	ts := time.Now()

	store.Apply(updateEvent(ts))

	// Следующий опрос: другой состав онлайна
	store.Apply(poller.Event{
		Type: poller.EventUpdate,
		Response: &api.PollResponse{
			Timestamp: ts.Add(time.Second),
			Success:   true,
			Data: api.PollData{
				Presence: api.PresenceSummary{
					OnlineUsers: []api.OnlineUser{{ID: "u2"}, {ID: "u3"}},
					TotalOnline: 2,
				},
			},
		},
	})

	snap := store.Snapshot()
	assert.Equal(t, 2, snap.TotalOnline)
	require.Len(t, snap.OnlineUsers, 2)
	assert.Equal(t, "u2", snap.OnlineUsers[0].ID)
}

func TestStore_StatusTransitions(t *testing.T) {
	store := NewStore()

	assert.Equal(t, poller.StatusIdle, store.Snapshot().Status)

	store.Apply(poller.Event{Type: poller.EventStatus, Status: poller.StatusActive})
	assert.Equal(t, poller.StatusActive, store.Snapshot().Status)

	store.Apply(poller.Event{Type: poller.EventStatus, Status: poller.StatusReconnecting})
	assert.Equal(t, poller.StatusReconnecting, store.Snapshot().Status)
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	store := NewStore()
	ts := time.Now()
	store.Apply(updateEvent(ts, api.Activity{ID: "a1", CreatedAt: ts}))

	snap := store.Snapshot()
	snap.Activities[0].ID = "mutated"

	assert.Equal(t, "a1", store.Snapshot().Activities[0].ID)
}
