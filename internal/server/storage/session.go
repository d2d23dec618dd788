package storage

import (
	"context"
	"time"

	"github.com/iudanet/noteflow/internal/models"
)

// SessionStorage defines interface for collaboration session persistence.
// Counter updates are row-level increments; the serialization point for
// read-modify-write sequences lives in the session service (per-session lock).
type SessionStorage interface {
	// CreateSession inserts a new session row with its first participant
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSession retrieves a session with its current participant set
	// Returns ErrSessionNotFound if session doesn't exist
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// GetActiveSessionByResource retrieves the active session for a resource
	// Returns ErrSessionNotFound if the resource has no active session
	GetActiveSessionByResource(ctx context.Context, resourceID string) (*models.Session, error)

	// DeactivateResourceSessions завершает все прочие активные сессии ресурса.
	// Вызывается перед активацией новой сессии: активная сессия на ресурс
	// должна быть максимум одна (мягкий инвариант, не ограничение схемы).
	DeactivateResourceSessions(ctx context.Context, resourceID, exceptSessionID string, endedAt time.Time) error

	// AddParticipant adds the user to the session's participant set.
	// Returns true if the user was not a lifetime participant before
	// (то есть total_participants нужно увеличить).
	AddParticipant(ctx context.Context, sessionID, userID string, joinedAt time.Time) (bool, error)

	// MarkParticipantLeft stamps the participant's left_at without removing the row
	MarkParticipantLeft(ctx context.Context, sessionID, userID string, leftAt time.Time) error

	// TouchSession updates last_activity
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	// IncrementEdits atomically increments total_edits and updates last_activity
	IncrementEdits(ctx context.Context, sessionID string, at time.Time) error

	// IncrementConflicts atomically increments conflict_resolutions and updates last_activity
	IncrementConflicts(ctx context.Context, sessionID string, at time.Time) error

	// IncrementTotalParticipants atomically increments the lifetime participant counter
	IncrementTotalParticipants(ctx context.Context, sessionID string) error

	// EndSession deactivates the session and stamps ended_at
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error

	// SetAvgDuration stores the recomputed rolling average duration
	// (вычисляется сервисом после завершения сессии)
	SetAvgDuration(ctx context.Context, sessionID string, avgDurationSeconds float64) error

	// AvgEndedDuration returns the mean duration in seconds over ended
	// sessions of the resource. Returns 0 if none have ended yet.
	AvgEndedDuration(ctx context.Context, resourceID string) (float64, error)
}

// UpdateLogStorage defines interface for the append-only per-session update log.
// Fragments are immutable once stored; sequence numbers are strictly
// increasing per session and used only for replay ordering.
type UpdateLogStorage interface {
	// AppendFragment appends an opaque fragment and returns its sequence number.
	// Append is all-or-nothing: a failed append must not corrupt prior entries.
	AppendFragment(ctx context.Context, sessionID string, data []byte, at time.Time) (int64, error)

	// ListFragments returns the full ordered fragment sequence for a session.
	// Returns empty slice for a session without edits.
	ListFragments(ctx context.Context, sessionID string) ([]*models.UpdateFragment, error)
}
