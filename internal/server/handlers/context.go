package handlers

import (
	"context"

	"github.com/iudanet/noteflow/internal/models"
)

// contextKey тип для ключей контекста
type contextKey string

// UserKey ключ для хранения аутентифицированного пользователя в контексте
const UserKey contextKey = "user"

// GetUser извлекает пользователя из контекста запроса
func GetUser(ctx context.Context) (models.ActivityUser, bool) {
	user, ok := ctx.Value(UserKey).(models.ActivityUser)
	return user, ok
}

// WithUser кладет пользователя в контекст; используется AuthMiddleware и тестами
func WithUser(ctx context.Context, user models.ActivityUser) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
