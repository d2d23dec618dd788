package storage

import (
	"context"
	"time"

	"github.com/iudanet/noteflow/internal/models"
)

// PresenceStorage defines interface for per-user per-resource presence rows.
// The (user_id, resource_type, resource_id) triple is unique: upsert updates
// the existing row instead of creating a duplicate.
type PresenceStorage interface {
	// UpsertPresence inserts or refreshes the presence row (LWW by last_seen:
	// запись с меньшим last_seen не перезапишет более свежую)
	UpsertPresence(ctx context.Context, record *models.PresenceRecord) error

	// GetPresence retrieves one presence row
	// Returns ErrPresenceNotFound if the triple has never been seen
	GetPresence(ctx context.Context, userID, resourceType, resourceID string) (*models.PresenceRecord, error)

	// ListActivePresence returns active rows for a resource with last_seen
	// after the given bound. Staleness is a read-time filter, stale rows
	// remain in storage.
	ListActivePresence(ctx context.Context, resourceType, resourceID string, seenAfter time.Time) ([]*models.PresenceRecord, error)

	// MarkPresenceInactive flips is_active off without deleting the row,
	// preserving last-known cursor and selection for quick resume
	MarkPresenceInactive(ctx context.Context, userID, resourceType, resourceID string) error

	// ListOnlineUsers aggregates active presence rows into one entry per user
	// (max last_seen across resources), ordered most recent first, capped at limit
	ListOnlineUsers(ctx context.Context, seenAfter time.Time, limit int) ([]*models.OnlineUser, error)

	// ReapStalePresence deletes inactive rows not seen since the bound.
	// Чистка ради экономии места; для корректности она не нужна.
	ReapStalePresence(ctx context.Context, notSeenSince time.Time) (int64, error)
}

// ActivityStorage defines interface for the activity feed consumed by polling.
type ActivityStorage interface {
	// InsertActivity appends an activity entry
	InsertActivity(ctx context.Context, activity *models.Activity) error

	// ListActivitiesAfter returns activities created strictly after the bound,
	// newest first, capped at limit. Строгое сравнение исключает повторную
	// доставку события на последовательных poll-запросах.
	ListActivitiesAfter(ctx context.Context, after time.Time, limit int) ([]*models.Activity, error)
}
