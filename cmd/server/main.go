package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/iudanet/noteflow/internal/config"
	"github.com/iudanet/noteflow/internal/server"
	pkgconfig "github.com/iudanet/noteflow/pkg/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewDefault()
	if configPath := cmd.String("config"); configPath != "" {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Секрет из окружения имеет приоритет над файлом
	if secret := os.Getenv("NOTEFLOW_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := server.Run(ctx, cfg, Version, nil); err != nil {
		return fmt.Errorf("server run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "noteflow-server",
		Usage:   "Realtime coordination server for collaborative note editing: sessions, presence, and poll-based delta delivery",
		Version: fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("NOTEFLOW_CONFIG_FILE"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
