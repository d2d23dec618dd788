// Package state держит клиентский снимок мира координации: ленту активности,
// сводку присутствия и состояние соединения. Снимок собирается из poll-дельт;
// повторная доставка события не создает дубликата.
package state

import (
	"sync"
	"time"

	"github.com/iudanet/noteflow/internal/client/poller"
	"github.com/iudanet/noteflow/pkg/api"
)

// defaultFeedLimit сколько последних событий держим в ленте
const defaultFeedLimit = 200

// Snapshot представляет точку-в-времени копию состояния
type Snapshot struct {
	// Activities лента событий, новые первыми
	Activities []api.Activity
	// OnlineUsers кто сейчас онлайн по данным последнего опроса
	OnlineUsers []api.OnlineUser
	// Notifications непрочитанные уведомления
	Notifications []api.Notification
	// TotalOnline количество пользователей онлайн
	TotalOnline int
	// Status состояние транспорта опроса
	Status poller.Status
	// LastSyncAt серверная метка последней принятой дельты
	LastSyncAt time.Time
}

// Store аккумулирует poll-дельты в снимок состояния
type Store struct {
	mu        sync.RWMutex
	seen      map[string]struct{}
	snapshot  Snapshot
	feedLimit int
}

// NewStore creates an empty state store
func NewStore() *Store {
	return &Store{
		seen:      make(map[string]struct{}),
		feedLimit: defaultFeedLimit,
		snapshot: Snapshot{
			Status: poller.StatusIdle,
		},
	}
}

// Apply вносит событие опроса в состояние
func (s *Store) Apply(event poller.Event) {
	switch event.Type {
	case poller.EventUpdate:
		s.applyUpdate(event.Response)
	case poller.EventStatus:
		s.mu.Lock()
		s.snapshot.Status = event.Status
		s.mu.Unlock()
	}
}

// applyUpdate мержит дельту: новые события добавляются в начало ленты,
// присутствие и уведомления замещаются целиком
func (s *Store) applyUpdate(resp *api.PollResponse) {
	if resp == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]api.Activity, 0, len(resp.Data.Activities))
	for _, activity := range resp.Data.Activities {
		// Повторная доставка после ретрая не дублирует событие
		if _, ok := s.seen[activity.ID]; ok {
			continue
		}
		s.seen[activity.ID] = struct{}{}
		fresh = append(fresh, activity)
	}

	if len(fresh) > 0 {
		s.snapshot.Activities = append(fresh, s.snapshot.Activities...)
		if len(s.snapshot.Activities) > s.feedLimit {
			for _, dropped := range s.snapshot.Activities[s.feedLimit:] {
				delete(s.seen, dropped.ID)
			}
			s.snapshot.Activities = s.snapshot.Activities[:s.feedLimit]
		}
	}

	s.snapshot.OnlineUsers = resp.Data.Presence.OnlineUsers
	s.snapshot.TotalOnline = resp.Data.Presence.TotalOnline
	s.snapshot.Notifications = resp.Data.Notifications
	s.snapshot.LastSyncAt = resp.Timestamp
}

// Snapshot возвращает копию текущего состояния
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Activities = append([]api.Activity(nil), s.snapshot.Activities...)
	snap.OnlineUsers = append([]api.OnlineUser(nil), s.snapshot.OnlineUsers...)
	snap.Notifications = append([]api.Notification(nil), s.snapshot.Notifications...)
	return snap
}
