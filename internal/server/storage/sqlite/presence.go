package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/noteflow/internal/models"
	"github.com/iudanet/noteflow/internal/server/storage"
)

// UpsertPresence inserts or refreshes the presence row.
// Правило LWW прямо в запросе: при конкурентных upsert по одному ключу
// побеждает запись с большим last_seen, дополнительного разрешения
// конфликтов не требуется.
func (s *Storage) UpsertPresence(ctx context.Context, record *models.PresenceRecord) error {
	query := `
		INSERT INTO presence (
			user_id, user_name, user_email, resource_type, resource_id,
			is_active, last_seen, status, cursor, selection, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, resource_type, resource_id) DO UPDATE SET
			user_name = excluded.user_name,
			user_email = excluded.user_email,
			is_active = excluded.is_active,
			last_seen = excluded.last_seen,
			status = excluded.status,
			cursor = excluded.cursor,
			selection = excluded.selection,
			metadata = excluded.metadata
		WHERE excluded.last_seen >= presence.last_seen
	`

	_, err := s.db.ExecContext(ctx, query,
		record.UserID,
		record.UserName,
		record.UserEmail,
		record.ResourceType,
		record.ResourceID,
		boolToInt(record.IsActive),
		timeToMilli(record.LastSeen),
		string(record.Status),
		nullableRaw(record.Cursor),
		nullableRaw(record.Selection),
		nullableRaw(record.Metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}

	return nil
}

// GetPresence retrieves one presence row
// Returns ErrPresenceNotFound if the triple has never been seen
func (s *Storage) GetPresence(ctx context.Context, userID, resourceType, resourceID string) (*models.PresenceRecord, error) {
	query := `
		SELECT user_id, user_name, user_email, resource_type, resource_id,
		       is_active, last_seen, status, cursor, selection, metadata
		FROM presence
		WHERE user_id = ? AND resource_type = ? AND resource_id = ?
	`

	record, err := scanPresence(s.db.QueryRowContext(ctx, query, userID, resourceType, resourceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrPresenceNotFound
		}
		return nil, err
	}

	return record, nil
}

// ListActivePresence returns active rows for a resource seen after the bound.
// Это фильтр на чтении: устаревшие строки остаются в таблице.
func (s *Storage) ListActivePresence(ctx context.Context, resourceType, resourceID string, seenAfter time.Time) ([]*models.PresenceRecord, error) {
	query := `
		SELECT user_id, user_name, user_email, resource_type, resource_id,
		       is_active, last_seen, status, cursor, selection, metadata
		FROM presence
		WHERE resource_type = ? AND resource_id = ? AND is_active = 1 AND last_seen >= ?
		ORDER BY last_seen DESC
	`

	rows, err := s.db.QueryContext(ctx, query, resourceType, resourceID, timeToMilli(seenAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to query presence: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := []*models.PresenceRecord{}
	for rows.Next() {
		record, err := scanPresenceRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// MarkPresenceInactive flips is_active off without deleting the row
func (s *Storage) MarkPresenceInactive(ctx context.Context, userID, resourceType, resourceID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE presence SET is_active = 0 WHERE user_id = ? AND resource_type = ? AND resource_id = ?`,
		userID, resourceType, resourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark presence inactive: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrPresenceNotFound
	}

	return nil
}

// ListOnlineUsers aggregates active presence rows into one entry per user
func (s *Storage) ListOnlineUsers(ctx context.Context, seenAfter time.Time, limit int) ([]*models.OnlineUser, error) {
	query := `
		SELECT user_id, user_name, user_email, MAX(last_seen) AS last_active
		FROM presence
		WHERE is_active = 1 AND last_seen >= ?
		GROUP BY user_id
		ORDER BY last_active DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, timeToMilli(seenAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query online users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	users := []*models.OnlineUser{}
	for rows.Next() {
		user := &models.OnlineUser{}
		var lastActive int64

		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &lastActive); err != nil {
			return nil, fmt.Errorf("failed to scan online user: %w", err)
		}

		user.LastActiveAt = milliToTime(lastActive)
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}

// ReapStalePresence deletes inactive rows not seen since the bound
func (s *Storage) ReapStalePresence(ctx context.Context, notSeenSince time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM presence WHERE is_active = 0 AND last_seen < ?`,
		timeToMilli(notSeenSince),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reap presence: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// rowScanner абстрагирует *sql.Row и *sql.Rows для общего скана
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPresence(row rowScanner) (*models.PresenceRecord, error) {
	record := &models.PresenceRecord{}
	var isActive int
	var lastSeen int64
	var status string
	var cursor, selection, metadata sql.NullString

	err := row.Scan(
		&record.UserID,
		&record.UserName,
		&record.UserEmail,
		&record.ResourceType,
		&record.ResourceID,
		&isActive,
		&lastSeen,
		&status,
		&cursor,
		&selection,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	record.IsActive = intToBool(isActive)
	record.LastSeen = milliToTime(lastSeen)
	record.Status = models.PresenceStatus(status)
	if cursor.Valid {
		record.Cursor = []byte(cursor.String)
	}
	if selection.Valid {
		record.Selection = []byte(selection.String)
	}
	if metadata.Valid {
		record.Metadata = []byte(metadata.String)
	}

	return record, nil
}

func scanPresenceRows(rows *sql.Rows) (*models.PresenceRecord, error) {
	record, err := scanPresence(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan presence: %w", err)
	}
	return record, nil
}

// nullableRaw конвертирует пустой JSON payload в NULL
func nullableRaw(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
