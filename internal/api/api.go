// Package api exposes the shortlink store over HTTP.
package api

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/shortlink-service/internal/events"
	"github.com/MagnunAVF/shortlink-service/internal/logger"
	"github.com/MagnunAVF/shortlink-service/internal/shortlink"
)

// Timestamps leave the service as RFC 3339 in UTC with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

type Config struct {
	ServiceName     string
	DefaultValidity int
	PublishTimeout  time.Duration
}

type Handler struct {
	cfg       Config
	store     *shortlink.Store
	publisher events.Publisher
	validate  *validator.Validate
	now       func() time.Time
}

func NewHandler(cfg Config, store *shortlink.Store, publisher events.Publisher) *Handler {
	if cfg.DefaultValidity <= 0 {
		cfg.DefaultValidity = 30
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Handler{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		validate:  newValidator(),
		now:       time.Now,
	}
}

// NewApp builds the fiber application with every route registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               h.cfg.ServiceName,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(logger.FiberMiddleware())

	app.Get("/health", h.handleHealth)
	app.Post("/shorturls", h.handleCreate)
	app.Get("/shorturls/:shortcode", h.handleStatistics)
	app.Get("/:shortcode", h.handleRedirect)

	app.Use(handleRouteNotFound)
	return app
}

// publishClick hands the click to the publisher off the request path.
// Failures are logged only.
func (h *Handler) publishClick(ctx context.Context, ev events.ClickEvent) {
	log := logger.For(ctx, "click-tracking")
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), h.cfg.PublishTimeout)
		defer cancel()
		if err := h.publisher.Publish(pubCtx, ev); err != nil {
			log.Error("Error publishing click event", "shortcode", ev.ShortCode, "err", err)
		}
	}()
}
