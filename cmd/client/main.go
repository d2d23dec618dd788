package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	clientapi "github.com/iudanet/noteflow/internal/client/api"
	"github.com/iudanet/noteflow/internal/client/poller"
	"github.com/iudanet/noteflow/internal/client/state"
	"github.com/iudanet/noteflow/internal/client/storage"
	"github.com/iudanet/noteflow/internal/client/storage/boltdb"
	"github.com/iudanet/noteflow/internal/server/handlers"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "noteflow-client.db"
	}
	return filepath.Join(home, ".noteflow", "client.db")
}

func openStorage(ctx context.Context, cmd *cli.Command) (*boltdb.Storage, error) {
	dbPath := cmd.String("db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}
	return boltdb.New(ctx, dbPath)
}

// authorizedClient загружает сохраненный токен и настраивает API клиент
func authorizedClient(ctx context.Context, cmd *cli.Command, st *boltdb.Storage) (*clientapi.Client, error) {
	auth, err := st.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, fmt.Errorf("not logged in, run 'noteflow login' first")
		}
		return nil, err
	}

	if time.Now().Unix() >= auth.ExpiresAt {
		return nil, fmt.Errorf("token expired, run 'noteflow login' again")
	}

	client := clientapi.NewClient(cmd.String("server"))
	client.SetToken(auth.AccessToken)
	return client, nil
}

// runLogin сохраняет токен внешнего auth-сервиса.
// Подпись здесь не проверяется — это делает сервер; клиенту нужны
// только claims для отображения и срок жизни.
func runLogin(ctx context.Context, cmd *cli.Command) error {
	token := cmd.String("token")
	if token == "" {
		return fmt.Errorf("--token is required")
	}

	claims := &handlers.CustomClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	expiresAt := time.Now().Add(15 * time.Minute).Unix()
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Unix()
	}

	st, err := openStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveAuth(ctx, &storage.AuthData{
		UserID:      claims.UserID,
		Name:        claims.Name,
		Email:       claims.Email,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}); err != nil {
		return fmt.Errorf("failed to save auth: %w", err)
	}

	fmt.Printf("Logged in as %s (%s)\n", claims.Name, claims.Email)
	return nil
}

func runLogout(ctx context.Context, cmd *cli.Command) error {
	st, err := openStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			fmt.Println("Not logged in")
			return nil
		}
		return err
	}

	fmt.Println("Logged out")
	return nil
}

// runStatus делает один опрос и печатает сводку
func runStatus(ctx context.Context, cmd *cli.Command) error {
	st, err := openStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := authorizedClient(ctx, cmd, st)
	if err != nil {
		return err
	}

	watermark, err := st.GetWatermark(ctx)
	if err != nil {
		return err
	}

	resp, err := client.Poll(ctx, watermark)
	if err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}

	if err := st.SaveWatermark(ctx, resp.Timestamp); err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}

	fmt.Printf("Server time: %s\n", resp.Timestamp.Local().Format(time.RFC3339))
	fmt.Printf("Online: %d\n", resp.Data.Presence.TotalOnline)
	for _, user := range resp.Data.Presence.OnlineUsers {
		fmt.Printf("  %s (%s)\n", user.Name, user.Email)
	}
	fmt.Printf("New activity: %d\n", len(resp.Data.Activities))
	for _, activity := range resp.Data.Activities {
		fmt.Printf("  [%s] %s\n", activity.CreatedAt.Local().Format("15:04:05"), activity.Description)
	}
	if len(resp.Data.Notifications) > 0 {
		fmt.Printf("Notifications: %d\n", len(resp.Data.Notifications))
	}

	return nil
}

// runWatch крутит транспорт опроса и печатает события по мере поступления
func runWatch(ctx context.Context, cmd *cli.Command) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	st, err := openStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := authorizedClient(ctx, cmd, st)
	if err != nil {
		return err
	}

	cfg := poller.DefaultConfig()
	cfg.Interval = cmd.Duration("interval")

	p := poller.NewPoller(client, st, cfg, logger)
	store := state.NewStore()

	watchCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Start(watchCtx); err != nil {
		return err
	}
	defer p.Stop()

	fmt.Println("Watching for updates, Ctrl+C to stop")

	for {
		select {
		case event := <-p.Events():
			store.Apply(event)

			switch event.Type {
			case poller.EventUpdate:
				for _, activity := range event.Response.Data.Activities {
					fmt.Printf("[%s] %s\n", activity.CreatedAt.Local().Format("15:04:05"), activity.Description)
				}
			case poller.EventStatus:
				fmt.Printf("connection: %s\n", event.Status)
				// Терминальные состояния завершают watch
				if event.Status == poller.StatusFailed || event.Status == poller.StatusUnauthorized {
					return fmt.Errorf("polling stopped: %v", event.Err)
				}
			}
		case <-watchCtx.Done():
			fmt.Printf("\nStopped. Online: %d\n", store.Snapshot().TotalOnline)
			return nil
		}
	}
}

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Server base URL",
			Value:   "http://localhost:8080",
			Sources: cli.EnvVars("NOTEFLOW_SERVER"),
		},
		&cli.StringFlag{
			Name:    "db",
			Usage:   "Path to local client database",
			Value:   defaultDBPath(),
			Sources: cli.EnvVars("NOTEFLOW_CLIENT_DB"),
		},
	}

	cmd := &cli.Command{
		Name:    "noteflow",
		Usage:   "Client for the noteflow realtime coordination server",
		Version: fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Store an access token issued by the auth service",
				Action: runLogin,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "token",
						Usage:   "JWT access token",
						Sources: cli.EnvVars("NOTEFLOW_TOKEN"),
					},
				}, commonFlags...),
			},
			{
				Name:   "logout",
				Usage:  "Remove the stored access token",
				Action: runLogout,
				Flags:  commonFlags,
			},
			{
				Name:   "status",
				Usage:  "Poll once and print who is online and recent activity",
				Action: runStatus,
				Flags:  commonFlags,
			},
			{
				Name:   "watch",
				Usage:  "Continuously poll and print activity as it happens",
				Action: runWatch,
				Flags: append([]cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Polling interval",
						Value: 3 * time.Second,
					},
				}, commonFlags...),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
