package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"livepoll-service/internal/app"
	"livepoll-service/internal/config"
	"livepoll-service/internal/infra/memory"
	pgarchive "livepoll-service/internal/infra/postgres"
	redisinfra "livepoll-service/internal/infra/redis"
	transport "livepoll-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	chatTTL := config.TTLDuration(cfg.Chat.TTL, 24*time.Hour)
	chatLimit := cfg.Chat.HistoryLimit
	if chatLimit <= 0 {
		chatLimit = 200
	}

	var store app.SessionStore
	var chatStore app.ChatStore
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, sessionTTL)
		chatStore = redisinfra.NewChatStore(redisClient, chatTTL, chatLimit)
	} else {
		store = memory.NewSessionStore()
		chatStore = memory.NewChatStore(chatLimit)
	}

	var archive app.Archive
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		archive = pgarchive.NewSessionArchive(pool)
	}

	hub := transport.NewHub()
	registry := app.NewRegistry()
	timers := app.NewTimerManager()
	service := app.NewSessionService(store, chatStore, archive, registry, timers, hub)
	chatRelay := app.NewChatRelay(chatStore, registry, hub)
	history := app.NewHistoryService(store, archive)

	wsHandler := transport.NewWSHandler(hub, service, chatRelay, history)
	historyHandler := transport.NewHistoryHandler(history)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("GET /api/sessions/{id}/history", historyHandler.ServeHistory)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting livepoll service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
