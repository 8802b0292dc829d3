// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/auth"
	"github.com/squadup-gg/squadup/internal/cache"
	"github.com/squadup-gg/squadup/internal/config"
	"github.com/squadup-gg/squadup/internal/database"
	"github.com/squadup-gg/squadup/internal/handlers"
	"github.com/squadup-gg/squadup/internal/lobby"
	"github.com/squadup-gg/squadup/internal/notify"
	"github.com/squadup-gg/squadup/internal/queue"
	"github.com/squadup-gg/squadup/internal/settlement"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := auth.Init(); err != nil {
		log.Fatalf("auth init failed: %v", err)
	}

	redisClient, err := cache.Connect(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	profiles := database.NewProfileStore(pool)
	queueStore := queue.NewRedisStore(redisClient)
	notifier := notify.NewNotifier(redisClient, logger)
	sink := notify.NewSink(redisClient, logger)
	settler := settlement.NewService(profiles, sink, logger)

	srv := handlers.NewServer(logger, queueStore, notifier, lobby.NewStore(), profiles, settler)
	srv.ChatLimit = cfg.ChatLogLimit
	srv.PollInterval = cfg.PollInterval

	addr := ":" + cfg.Port
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
