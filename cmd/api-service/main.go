package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MagnunAVF/shortlink-service/internal/api"
	"github.com/MagnunAVF/shortlink-service/internal/config"
	"github.com/MagnunAVF/shortlink-service/internal/events"
	applog "github.com/MagnunAVF/shortlink-service/internal/logger"
	"github.com/MagnunAVF/shortlink-service/internal/shortlink"
)

func main() {
	envErr := config.LoadEnvFile(".env")
	applog.Init(config.Logging())
	if envErr != nil {
		slog.Warn(".env file not found, relying on env vars", "err", envErr)
	}

	cfg := config.LoadAPI()
	store := shortlink.New(append(cfg.StoreOptions(), shortlink.WithReserved(api.ReservedShortcodes...))...)

	publisher := newPublisher(cfg)
	defer publisher.Close()

	h := api.NewHandler(api.Config{
		ServiceName:     cfg.ServiceName,
		DefaultValidity: cfg.DefaultValidity,
		PublishTimeout:  cfg.PublishTimeout,
	}, store, publisher)
	app := api.NewApp(h)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down API Service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "err", err)
		}
	}()

	applog.For(ctx, "server").Info("Starting API Service", "port", cfg.Port, "default_validity", cfg.DefaultValidity)
	if err := app.Listen(cfg.Port); err != nil {
		slog.Error("API Service failed", "err", err)
		os.Exit(1)
	}
}

// newPublisher falls back to dropping click events when RabbitMQ is not
// configured or unreachable; redirects never depend on the broker.
func newPublisher(cfg config.API) events.Publisher {
	if cfg.RabbitMQURL == "" {
		slog.Info("RABBITMQ_URL not set, click events are not published")
		return events.Noop{}
	}
	p, err := events.DialAMQP(cfg.RabbitMQURL, cfg.ClickQueue)
	if err != nil {
		slog.Error("Unable to connect to RabbitMQ, click events are not published", "err", err)
		return events.Noop{}
	}
	slog.Info("Publishing click events", "queue", cfg.ClickQueue)
	return p
}
