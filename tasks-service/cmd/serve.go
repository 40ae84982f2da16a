package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/tasks-service/config"
	"github.com/chepyr/team-kanban/tasks-service/db"
	"github.com/chepyr/team-kanban/tasks-service/handlers"
	"github.com/chepyr/team-kanban/tasks-service/notify"
	"github.com/chepyr/team-kanban/tasks-service/service"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	serviceName     = "tasks-service"
	shutdownTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewLogger(serviceName, cfg.Env)
	defer log.Sync()
	defer zap.ReplaceGlobals(log.Zap())()

	ctx := cmd.Context()
	dbConn, err := db.Connect(ctx, cfg.DBDriver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()
	if err := db.Migrate(ctx, dbConn); err != nil {
		return err
	}

	hub := notify.NewHub(log)
	notifier, err := initNotifier(ctx, cfg, hub, log)
	if err != nil {
		return err
	}

	users := db.NewUserRepository(dbConn)
	boards := db.NewBoardRepository(dbConn)
	members := access.NewMembershipResolver(db.NewTeamRepository(dbConn))
	handler := &handlers.Handler{
		Tasks:  service.NewTaskService(db.NewTaskRepository(dbConn), boards, members, notifier, log),
		Boards: service.NewBoardService(boards, members, log),
		Principals: access.NewPrincipalResolver(access.PrincipalConfig{
			Secret: cfg.JWTSecret,
			Leeway: cfg.JWTLeeway,
		}, users),
		Hub:            hub,
		RateLimiter:    handlers.NewRateLimiter(cfg.WSRateLimit, time.Second),
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return startServer(ctx, server, log)
}

// initNotifier returns the hub itself for a single instance. With Redis
// configured, events go through the shared channel and every instance
// relays them to its own hub.
func initNotifier(ctx context.Context, cfg *config.Config, hub *notify.Hub, log *logger.Logger) (notify.Notifier, error) {
	if cfg.RedisURL == "" {
		return hub, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URL: %w", err)
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	go func() {
		notify.NewRedisRelay(rc, notify.DefaultChannel, hub, log).Run(ctx)
		rc.Close()
	}()
	log.Info("board events relayed through redis", "channel", notify.DefaultChannel)
	return notify.NewRedisPublisher(rc, notify.DefaultChannel), nil
}

func startServer(ctx context.Context, server *http.Server, log *logger.Logger) error {
	log.Info("starting tasks server", "addr", server.Addr)

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, failed := <-errc:
		if failed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
