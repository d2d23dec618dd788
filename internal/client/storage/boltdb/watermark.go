package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const keyPollWatermark = "poll_watermark"

// SaveWatermark saves the server timestamp of the last committed poll.
// Хранится в наносекундах: watermark требует субсекундной точности.
func (s *Storage) SaveWatermark(ctx context.Context, ts time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		// Конвертируем int64 в bytes
		tsBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(tsBytes, uint64(ts.UnixNano()))

		if err := bucket.Put([]byte(keyPollWatermark), tsBytes); err != nil {
			return fmt.Errorf("failed to save watermark: %w", err)
		}

		return nil
	})
}

// GetWatermark retrieves the stored watermark.
// Возвращает нулевое время, если опросов еще не было.
func (s *Storage) GetWatermark(ctx context.Context) (time.Time, error) {
	var ts time.Time

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		tsBytes := bucket.Get([]byte(keyPollWatermark))
		if tsBytes == nil {
			// Первый запуск — watermark еще не сохранялся
			return nil
		}

		ts = time.Unix(0, int64(binary.BigEndian.Uint64(tsBytes)))
		return nil
	})

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get watermark: %w", err)
	}

	return ts, nil
}
