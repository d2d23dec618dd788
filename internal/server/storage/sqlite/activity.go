package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iudanet/noteflow/internal/models"
)

// InsertActivity appends an activity entry
func (s *Storage) InsertActivity(ctx context.Context, activity *models.Activity) error {
	query := `
		INSERT INTO activities (id, type, description, user_id, user_name, user_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var userID, userName, userEmail any
	if activity.User != nil {
		userID = activity.User.ID
		userName = activity.User.Name
		userEmail = activity.User.Email
	}

	_, err := s.db.ExecContext(ctx, query,
		activity.ID,
		activity.Type,
		activity.Description,
		userID,
		userName,
		userEmail,
		timeToMilli(activity.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

// ListActivitiesAfter returns activities created strictly after the bound,
// newest first, capped at limit. Сравнение строго ">" — событие с created_at,
// равным watermark, уже было доставлено предыдущим poll-ответом.
func (s *Storage) ListActivitiesAfter(ctx context.Context, after time.Time, limit int) ([]*models.Activity, error) {
	query := `
		SELECT id, type, description, user_id, user_name, user_email, created_at
		FROM activities
		WHERE created_at > ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, timeToMilli(after), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	activities := []*models.Activity{}
	for rows.Next() {
		activity := &models.Activity{}
		var userID, userName, userEmail sql.NullString
		var createdAt int64

		err := rows.Scan(
			&activity.ID,
			&activity.Type,
			&activity.Description,
			&userID,
			&userName,
			&userEmail,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		activity.CreatedAt = milliToTime(createdAt)
		if userID.Valid {
			activity.User = &models.ActivityUser{
				ID:    userID.String,
				Name:  userName.String,
				Email: userEmail.String,
			}
		}

		activities = append(activities, activity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return activities, nil
}
