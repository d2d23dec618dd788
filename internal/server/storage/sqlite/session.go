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

// CreateSession inserts a new session row with its first participant
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO sessions (
			id, resource_id, is_active, started_at, ended_at, last_activity,
			total_edits, total_participants, avg_duration_seconds, conflict_resolutions
		) VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		session.ID,
		session.ResourceID,
		boolToInt(session.IsActive),
		timeToMilli(session.StartedAt),
		timeToMilli(session.LastActivity),
		session.TotalEdits,
		session.TotalParticipants,
		session.AvgDurationSeconds,
		session.ConflictResolutions,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	// Вставляем стартовых участников вместе с сессией
	for _, userID := range session.Participants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_participants (session_id, user_id, joined_at) VALUES (?, ?, ?)`,
			session.ID, userID, timeToMilli(session.StartedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	return nil
}

// GetSession retrieves a session with its current participant set
// Returns ErrSessionNotFound if session doesn't exist
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT id, resource_id, is_active, started_at, ended_at, last_activity,
		       total_edits, total_participants, avg_duration_seconds, conflict_resolutions
		FROM sessions
		WHERE id = ?
	`

	session, err := s.scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		return nil, err
	}

	if err := s.loadParticipants(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// GetActiveSessionByResource retrieves the active session for a resource
// Returns ErrSessionNotFound if the resource has no active session
func (s *Storage) GetActiveSessionByResource(ctx context.Context, resourceID string) (*models.Session, error) {
	query := `
		SELECT id, resource_id, is_active, started_at, ended_at, last_activity,
		       total_edits, total_participants, avg_duration_seconds, conflict_resolutions
		FROM sessions
		WHERE resource_id = ? AND is_active = 1
		ORDER BY started_at DESC
		LIMIT 1
	`

	session, err := s.scanSession(s.db.QueryRowContext(ctx, query, resourceID))
	if err != nil {
		return nil, err
	}

	if err := s.loadParticipants(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// DeactivateResourceSessions завершает все прочие активные сессии ресурса
func (s *Storage) DeactivateResourceSessions(ctx context.Context, resourceID, exceptSessionID string, endedAt time.Time) error {
	query := `
		UPDATE sessions
		SET is_active = 0, ended_at = ?
		WHERE resource_id = ? AND is_active = 1 AND id != ?
	`

	if _, err := s.db.ExecContext(ctx, query, timeToMilli(endedAt), resourceID, exceptSessionID); err != nil {
		return fmt.Errorf("failed to deactivate resource sessions: %w", err)
	}

	return nil
}

// AddParticipant adds the user to the session's participant set.
// Returns true if the user joined this session for the first time ever.
func (s *Storage) AddParticipant(ctx context.Context, sessionID, userID string, joinedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO session_participants (session_id, user_id, joined_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (session_id, user_id) DO NOTHING`,
		sessionID, userID, timeToMilli(joinedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert participant: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// Повторный join после leave сбрасывает left_at, но это не новый
	// участник в счетчике за жизнь сессии
	_, err = s.db.ExecContext(ctx,
		`UPDATE session_participants SET left_at = NULL WHERE session_id = ? AND user_id = ?`,
		sessionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to rejoin participant: %w", err)
	}

	return false, nil
}

// MarkParticipantLeft stamps the participant's left_at without removing the row
func (s *Storage) MarkParticipantLeft(ctx context.Context, sessionID, userID string, leftAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_participants SET left_at = ? WHERE session_id = ? AND user_id = ?`,
		timeToMilli(leftAt), sessionID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark participant left: %w", err)
	}

	return nil
}

// TouchSession updates last_activity
func (s *Storage) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	return s.updateSession(ctx, sessionID,
		`UPDATE sessions SET last_activity = ? WHERE id = ?`,
		timeToMilli(at), sessionID)
}

// IncrementEdits atomically increments total_edits and updates last_activity
func (s *Storage) IncrementEdits(ctx context.Context, sessionID string, at time.Time) error {
	return s.updateSession(ctx, sessionID,
		`UPDATE sessions SET total_edits = total_edits + 1, last_activity = ? WHERE id = ?`,
		timeToMilli(at), sessionID)
}

// IncrementConflicts atomically increments conflict_resolutions and updates last_activity
func (s *Storage) IncrementConflicts(ctx context.Context, sessionID string, at time.Time) error {
	return s.updateSession(ctx, sessionID,
		`UPDATE sessions SET conflict_resolutions = conflict_resolutions + 1, last_activity = ? WHERE id = ?`,
		timeToMilli(at), sessionID)
}

// IncrementTotalParticipants atomically increments the lifetime participant counter
func (s *Storage) IncrementTotalParticipants(ctx context.Context, sessionID string) error {
	return s.updateSession(ctx, sessionID,
		`UPDATE sessions SET total_participants = total_participants + 1 WHERE id = ?`,
		sessionID)
}

// EndSession deactivates the session and stamps ended_at
func (s *Storage) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	return s.updateSession(ctx, sessionID,
		`UPDATE sessions SET is_active = 0, ended_at = ? WHERE id = ?`,
		timeToMilli(endedAt), sessionID)
}

// SetAvgDuration stores the recomputed rolling average duration
func (s *Storage) SetAvgDuration(ctx context.Context, sessionID string, avgDurationSeconds float64) error {
	return s.updateSession(ctx, sessionID,
		`UPDATE sessions SET avg_duration_seconds = ? WHERE id = ?`,
		avgDurationSeconds, sessionID)
}

// AvgEndedDuration returns the mean duration in seconds over ended sessions of the resource
func (s *Storage) AvgEndedDuration(ctx context.Context, resourceID string) (float64, error) {
	query := `
		SELECT COALESCE(AVG((ended_at - started_at) / 1000.0), 0)
		FROM sessions
		WHERE resource_id = ? AND ended_at IS NOT NULL
	`

	var avg float64
	if err := s.db.QueryRowContext(ctx, query, resourceID).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute avg duration: %w", err)
	}

	return avg, nil
}

// updateSession выполняет UPDATE и мапит отсутствие строки на ErrSessionNotFound
func (s *Storage) updateSession(ctx context.Context, sessionID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

// scanSession scans one session row
func (s *Storage) scanSession(row *sql.Row) (*models.Session, error) {
	session := &models.Session{}
	var isActive int
	var startedAt, lastActivity int64
	var endedAt sql.NullInt64

	err := row.Scan(
		&session.ID,
		&session.ResourceID,
		&isActive,
		&startedAt,
		&endedAt,
		&lastActivity,
		&session.TotalEdits,
		&session.TotalParticipants,
		&session.AvgDurationSeconds,
		&session.ConflictResolutions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session.IsActive = intToBool(isActive)
	session.StartedAt = milliToTime(startedAt)
	session.LastActivity = milliToTime(lastActivity)
	if endedAt.Valid {
		t := milliToTime(endedAt.Int64)
		session.EndedAt = &t
	}

	return session, nil
}

// loadParticipants загружает текущий набор участников (без left_at)
func (s *Storage) loadParticipants(ctx context.Context, session *models.Session) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM session_participants WHERE session_id = ? AND left_at IS NULL ORDER BY joined_at ASC`,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query participants: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	participants := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, userID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}

	session.Participants = participants
	return nil
}
