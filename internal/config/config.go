package config

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the server configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	LogLevel        slog.Level    `yaml:"log_level"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig holds SQLite storage configuration.
type StorageConfig struct {
	// Path путь к файлу БД; ":memory:" для тестов
	Path string `yaml:"path"`
}

// AuthConfig holds Bearer token validation settings.
// Выпуск токенов — забота внешнего auth-сервиса, здесь только проверка.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RealtimeConfig holds poll aggregation and presence staleness settings.
type RealtimeConfig struct {
	// PollPageSize максимум событий активности в одном poll-ответе
	PollPageSize int `yaml:"poll_page_size"`
	// OnlineWindow окно свежести для списка "кто онлайн"
	OnlineWindow time.Duration `yaml:"online_window"`
	// OnlineLimit максимум пользователей в сводке присутствия
	OnlineLimit int `yaml:"online_limit"`
	// StalenessWindow окно свежести для presence-записей ресурса
	StalenessWindow time.Duration `yaml:"staleness_window"`
	// DefaultLookback watermark по умолчанию, когда клиент его не передал
	DefaultLookback time.Duration `yaml:"default_lookback"`
}

// RateLimitConfig holds HTTP rate limiting settings.
type RateLimitConfig struct {
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
}

// NewDefault returns configuration with production defaults.
func NewDefault() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:        slog.LevelInfo,
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Path: "noteflow.db",
		},
		Realtime: RealtimeConfig{
			PollPageSize:    50,
			OnlineWindow:    5 * time.Minute,
			OnlineLimit:     100,
			StalenessWindow: 5 * time.Minute,
			DefaultLookback: 60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Rate:   120,
			Window: time.Minute,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Realtime.Validate(); err != nil {
		return err
	}
	return c.RateLimit.Validate()
}

// Validate validates application-level configuration.
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Validate validates storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// Validate validates auth configuration.
func (c *AuthConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	return nil
}

// Validate validates realtime configuration.
func (c *RealtimeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PollPageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.OnlineLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.OnlineWindow, validation.Required),
		validation.Field(&c.StalenessWindow, validation.Required),
		validation.Field(&c.DefaultLookback, validation.Required),
	)
}

// Validate validates rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Rate, validation.Required, validation.Min(1)),
		validation.Field(&c.Window, validation.Required),
	)
}

// Addr returns the listen address in host:port form.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
