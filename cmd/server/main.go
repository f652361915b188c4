package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/classquest/classquest/internal/content"
	"github.com/classquest/classquest/internal/identity"
	"github.com/classquest/classquest/internal/leaderboard"
	"github.com/classquest/classquest/internal/platform/cache"
	"github.com/classquest/classquest/internal/platform/config"
	"github.com/classquest/classquest/internal/platform/database"
	"github.com/classquest/classquest/internal/platform/docstore"
	"github.com/classquest/classquest/internal/progression"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	docs, err := docstore.NewPostgres(db.Pool)
	if err != nil {
		slog.Error("failed to create document store", "error", err)
		os.Exit(1)
	}
	if err := docs.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	var (
		board      leaderboard.Board = leaderboard.Nop{}
		redisCache *cache.Cache
	)
	if cfg.Cache.Enabled {
		redisCache, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		board = leaderboard.NewRedis(redisCache.Client)
	}

	contentStore := content.NewStore(docs)
	users := identity.NewStore(docs)
	engine := progression.NewEngine(progression.EngineConfig{
		Docs:    docs,
		Content: contentStore,
		Rewards: progression.Rewards{
			LoginXP:               cfg.Rewards.LoginXP,
			QuestionXP:            cfg.Rewards.QuestionXP,
			QuestionBonusXP:       cfg.Rewards.QuestionBonusXP,
			FocusXP:               cfg.Rewards.FocusXP,
			XPPerCorrect:          cfg.Rewards.XPPerCorrect,
			DefaultQuestionPoints: cfg.Rewards.DefaultQuestionPoints,
		},
		Sink: board,
	})

	if cfg.CoursePackPath != "" {
		packs, err := content.LoadPacks(cfg.CoursePackPath)
		if err != nil {
			slog.Error("failed to load course packs", "path", cfg.CoursePackPath, "error", err)
			os.Exit(1)
		}
		if err := contentStore.Seed(ctx, packs, "system"); err != nil {
			slog.Error("failed to seed course packs", "error", err)
			os.Exit(1)
		}
		slog.Info("course packs seeded", "count", len(packs))
	}

	srv := &server{
		engine:  engine,
		content: contentStore,
		users:   users,
		board:   board,
		db:      db,
		cache:   redisCache,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
