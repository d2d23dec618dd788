// Package storage определяет интерфейсы локального хранилища клиента.
package storage

import (
	"context"
	"time"
)

// AuthStorage defines interface for storing authentication data on client
type AuthStorage interface {
	// SaveAuth stores authentication data
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored authentication data
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated checks if valid authentication exists (not expired)
	IsAuthenticated(ctx context.Context) (bool, error)
}

// WatermarkStorage defines interface for the poll watermark.
// Watermark переживает перезапуск клиента: после рестарта опрос
// продолжается с последней подтвержденной сервером метки.
type WatermarkStorage interface {
	// SaveWatermark stores the server timestamp of the last committed poll
	SaveWatermark(ctx context.Context, ts time.Time) error

	// GetWatermark retrieves the stored watermark.
	// Возвращает нулевое время, если опросов еще не было.
	GetWatermark(ctx context.Context) (time.Time, error)
}

// AuthData represents authentication information in storage
type AuthData struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}
