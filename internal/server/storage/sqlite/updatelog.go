package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/noteflow/internal/models"
)

// AppendFragment appends an opaque fragment and returns its sequence number.
// Номер выделяется внутри самого INSERT, так что запись атомарна: либо
// фрагмент получил следующий seq и сохранен целиком, либо ничего не произошло.
// Порядок конкурентных append на одну сессию сериализует менеджер сессий
// (per-session lock); разные сессии друг друга не блокируют.
func (s *Storage) AppendFragment(ctx context.Context, sessionID string, data []byte, at time.Time) (int64, error) {
	query := `
		INSERT INTO update_fragments (session_id, seq, data, created_at)
		VALUES (
			?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM update_fragments WHERE session_id = ?),
			?,
			?
		)
		RETURNING seq
	`

	var seq int64
	err := s.db.QueryRowContext(ctx, query, sessionID, sessionID, data, timeToMilli(at)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to append fragment: %w", err)
	}

	return seq, nil
}

// ListFragments returns the full ordered fragment sequence for a session
func (s *Storage) ListFragments(ctx context.Context, sessionID string) ([]*models.UpdateFragment, error) {
	query := `
		SELECT session_id, seq, data, created_at
		FROM update_fragments
		WHERE session_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	fragments := []*models.UpdateFragment{}
	for rows.Next() {
		fragment := &models.UpdateFragment{}
		var createdAt int64

		err := rows.Scan(
			&fragment.SessionID,
			&fragment.Seq,
			&fragment.Data,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}

		fragment.CreatedAt = milliToTime(createdAt)
		fragments = append(fragments, fragment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return fragments, nil
}
