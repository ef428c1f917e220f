package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitbuddy/backend/internal/config"
	"fitbuddy/backend/internal/connection"
	"fitbuddy/backend/internal/conversation"
	"fitbuddy/backend/internal/database"
	"fitbuddy/backend/internal/handler"
	"fitbuddy/backend/internal/identity"
	"fitbuddy/backend/internal/lock"
	"fitbuddy/backend/internal/message"
	"fitbuddy/backend/internal/roster"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	// Swagger imports
	_ "fitbuddy/backend/docs" // This is important for swag to find the generated docs
)

func init() {
	config.LoadConfig()
}

// @title           FitBuddy API
// @version         1.0
// @description     Buddy connections, event rosters, group chats and the unified inbox of the FitBuddy app.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	// Connect to the database
	database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	db := database.DB

	locker, closeLocker := newLocker(cfg)
	defer closeLocker()

	users := identity.NewDirectory(db)
	rsvps := roster.NewRSVPs(db, locker)
	groups := roster.NewGroups(db, locker)

	h := &handler.Handler{
		DB:            db,
		Users:         users,
		Connections:   connection.NewLedger(db, locker),
		Events:        roster.NewEvents(db, locker),
		RSVPs:         rsvps,
		Groups:        groups,
		Messages:      message.NewStore(db, groups, rsvps),
		Conversations: conversation.NewAggregator(db, users),
		PollInterval:  cfg.PollInterval,
	}
	router := handler.NewRouter(h, cfg.JWTSecret)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server started", "addr", cfg.ServerAddr, "swagger", "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	slog.Info("Server stopped")
}

// newLocker uses Redis when REDIS_URL is set so several instances share
// roster locks. A single instance falls back to in-process locks.
func newLocker(cfg *config.Config) (lock.Locker, func()) {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, using in-process locks")
		return lock.NewLocal(cfg.LockWait), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("Redis connection established", "addr", opts.Addr)

	return lock.NewRedis(client, cfg.LockTTL, cfg.LockWait), func() {
		if err := client.Close(); err != nil {
			slog.Warn("Failed to close Redis client", "error", err)
		}
	}
}
