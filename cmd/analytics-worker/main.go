package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MagnunAVF/shortlink-service/internal/analytics"
	"github.com/MagnunAVF/shortlink-service/internal/config"
	"github.com/MagnunAVF/shortlink-service/internal/events"
	applog "github.com/MagnunAVF/shortlink-service/internal/logger"
)

func main() {
	envErr := config.LoadEnvFile(".env")
	applog.Init(config.Logging())
	if envErr != nil {
		slog.Warn(".env file not found, relying on env vars", "err", envErr)
	}

	cfg := config.LoadWorker()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writeDB, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{Logger: applog.NewGormLogger(cfg.GormLogLevel)})
	if err != nil {
		slog.Error("Unable to connect to primary database", "err", err)
		os.Exit(1)
	}
	primary := analytics.NewPostgresSink(writeDB)
	if err := primary.Migrate(); err != nil {
		slog.Error("Failed to auto-migrate database", "err", err)
		os.Exit(1)
	}

	var counters analytics.Sink
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Unable to connect to Redis", "err", err)
			os.Exit(1)
		}
		counters = analytics.NewRedisSink(rdb)
	}

	rabbitConn, err := amqp091.Dial(cfg.RabbitMQURL)
	if err != nil {
		slog.Error("Unable to connect to RabbitMQ", "err", err)
		os.Exit(1)
	}
	defer rabbitConn.Close()

	rabbitCH, err := rabbitConn.Channel()
	if err != nil {
		slog.Error("Unable to open RabbitMQ channel", "err", err)
		os.Exit(1)
	}
	defer rabbitCH.Close()

	q, err := events.DeclareQueue(rabbitCH, cfg.ClickQueue)
	if err != nil {
		slog.Error("Failed to declare queue", "err", err)
		os.Exit(1)
	}

	// Prefetch one batch at a time.
	if err := rabbitCH.Qos(cfg.BatchSize, 0, false); err != nil {
		slog.Error("Failed to set QoS", "err", err)
		os.Exit(1)
	}

	msgs, err := rabbitCH.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("Failed to register consumer", "err", err)
		os.Exit(1)
	}

	slog.Info("Analytics Worker started. Waiting for click events...", "queue", q.Name, "batch_size", cfg.BatchSize, "flush_interval", cfg.FlushInterval)

	worker := analytics.NewWorker(primary, counters, cfg.BatchSize, cfg.FlushInterval)
	if err := worker.Run(ctx, msgs); err != nil {
		slog.Error("Analytics Worker stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("Analytics Worker stopped")
}
