// cmd/matchworker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/cache"
	"github.com/squadup-gg/squadup/internal/config"
	"github.com/squadup-gg/squadup/internal/matchmaking"
	"github.com/squadup-gg/squadup/internal/notify"
	"github.com/squadup-gg/squadup/internal/queue"
)

// matchworker runs the periodic queue drain: every interval it walks the
// active buckets and forms as many full matches as each can yield.
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logrus.New()

	redisClient, err := cache.Connect(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}

	queueStore := queue.NewRedisStore(redisClient)
	notifier := notify.NewNotifier(redisClient, logger)
	former := matchmaking.NewFormer(queueStore, notifier, logger)
	drainer := matchmaking.NewDrainer(former, queueStore, logger)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("scheduler init failed: %v", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.DrainInterval),
		gocron.NewTask(drainer.DrainAll, context.Background()),
	)
	if err != nil {
		log.Fatalf("failed to schedule drain job: %v", err)
	}

	scheduler.Start()
	logger.Infof("matchworker draining every %s", cfg.DrainInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if err := scheduler.Shutdown(); err != nil {
		logger.Warnf("error while shutting down drain scheduler: %v", err)
	}
}
