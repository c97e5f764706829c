package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heartlink-backend/internal/cache"
	"heartlink-backend/internal/config"
	"heartlink-backend/internal/handlers"
	"heartlink-backend/internal/media"
	"heartlink-backend/internal/middleware"
	"heartlink-backend/internal/push"
	"heartlink-backend/internal/repository"
	"heartlink-backend/internal/services"
	"heartlink-backend/internal/ws"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Connect to redis
	redisCache := cache.New(&cfg.Redis)
	if err := redisCache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping redis")
	}
	log.Info().Msg("Redis connection established")

	// Story image storage
	imageStore, err := media.NewS3Store(ctx, &cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image store")
	}

	// Push notifications are optional
	var pusher services.Pusher
	if cfg.APNS.Enabled {
		notifier, err := push.NewNotifier(&cfg.APNS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push notifier")
		}
		pusher = notifier
		log.Info().Msg("Push notifications enabled")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	storyRepo := repository.NewStoryRepository(db)

	// Live channel hub
	hub := ws.NewHub()

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	likeService := services.NewLikeService(likeRepo, matchRepo, userRepo, redisCache, hub)
	matchService := services.NewMatchService(matchRepo, redisCache, hub)
	chatService := services.NewChatService(messageRepo, matchRepo, userRepo, hub, pusher)
	storyService := services.NewStoryService(storyRepo, matchRepo, userRepo, imageStore, hub, cfg.Story.TTLDuration())

	// Expired stories are reclaimed in the background; reads filter on
	// expires_at regardless.
	go storyService.RunSweeper(ctx, cfg.Story.SweepIntervalDuration())

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	likeHandler := handlers.NewLikeHandler(likeService)
	matchHandler := handlers.NewMatchHandler(matchService)
	messageHandler := handlers.NewMessageHandler(chatService)
	storyHandler := handlers.NewStoryHandler(storyService)
	wsHandler := handlers.NewWebSocketHandler(hub, userService, matchService, chatService, storyService)

	// Setup router
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Register)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(userService))

			r.Put("/users/push-token", userHandler.UpdatePushToken)

			r.Get("/likes/received", likeHandler.Received)
			r.Get("/likes/count", likeHandler.Count)
			r.Post("/likes/{userID}", likeHandler.Like)
			r.Delete("/likes/{userID}", likeHandler.Unlike)

			r.Get("/matches", matchHandler.List)
			r.Delete("/matches/{matchID}", matchHandler.Cancel)

			r.Get("/messages/{matchID}", messageHandler.History)
			r.Post("/messages/{matchID}", messageHandler.Send)
			r.Put("/messages/{matchID}/read", messageHandler.MarkRead)

			r.Post("/stories", storyHandler.Create)
			r.Get("/stories", storyHandler.Feed)
			r.Get("/stories/{id}", storyHandler.StoriesOf)
			r.Delete("/stories/{id}", storyHandler.Delete)
			r.Put("/stories/{id}/view", storyHandler.RecordView)
			r.Get("/stories/{id}/viewers", storyHandler.Viewers)
			r.Post("/stories/{id}/like", storyHandler.Like)
			r.Delete("/stories/{id}/like", storyHandler.Unlike)
			r.Post("/stories/{id}/comments", storyHandler.AddComment)
			r.Delete("/stories/{id}/comments/{commentID}", storyHandler.DeleteComment)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
