package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/MagnunAVF/shortlink-service/internal/events"
	"github.com/MagnunAVF/shortlink-service/internal/logger"
	"github.com/MagnunAVF/shortlink-service/internal/shortlink"
)

type createResponse struct {
	ShortLink string `json:"shortLink"`
	Expiry    string `json:"expiry"`
}

type clickDetail struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Location  string `json:"location"`
}

type statisticsResponse struct {
	TotalClicks  int           `json:"totalClicks"`
	CreationDate string        `json:"creationDate"`
	ExpiryDate   string        `json:"expiryDate"`
	ClickDetails []clickDetail `json:"clickDetails"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	logger.For(c.UserContext(), "health").Debug("Health check accessed", "records", h.store.Len())
	return c.JSON(healthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format(TimeFormat),
		Service:   h.cfg.ServiceName,
	})
}

func (h *Handler) handleCreate(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		logger.For(ctx, "validation").Warn("Invalid request body", "err", err)
		return validationError(c, "Invalid request body")
	}
	if msg := h.validateCreate(&req); msg != "" {
		logger.For(ctx, "validation").Warn("Rejected create request", "reason", msg, "shortcode", req.Shortcode)
		return validationError(c, msg)
	}

	validity := h.cfg.DefaultValidity
	if req.Validity != nil {
		validity = *req.Validity
	}

	log := logger.For(ctx, "url-creation")
	rec, err := h.store.Create(req.URL, validity, req.Shortcode)
	if err != nil {
		log.Warn("Failed to create short URL", "shortcode", req.Shortcode, "err", err.Error())
		return storeError(c, err, "Failed to create short URL")
	}

	log.Info("Created short URL", "shortcode", rec.Shortcode, "validity_minutes", rec.ValidityMinutes)
	return c.Status(fiber.StatusCreated).JSON(createResponse{
		ShortLink: fmt.Sprintf("%s/%s", c.BaseURL(), rec.Shortcode),
		Expiry:    rec.ExpiresAt.UTC().Format(TimeFormat),
	})
}

// Values read from the request are copied because they outlive the handler
// in the store and in the publisher goroutine.
func (h *Handler) handleRedirect(c *fiber.Ctx) error {
	code := utils.CopyString(c.Params("shortcode"))
	ctx := c.UserContext()
	log := logger.For(ctx, "redirect").With("shortcode", code)

	rec, err := h.store.Resolve(code)
	if err != nil {
		log.Warn("Redirect refused", "err", err.Error())
		return storeError(c, err, "Failed to redirect")
	}

	referer := utils.CopyString(c.Get(fiber.HeaderReferer))
	if referer == "" {
		referer = shortlink.DirectReferer
	}
	userAgent := utils.CopyString(c.Get(fiber.HeaderUserAgent))
	if userAgent == "" {
		userAgent = "Unknown"
	}

	click := h.store.RecordVisit(code, h.now(), shortlink.Visit{Referer: referer, UserAgent: userAgent})
	h.publishClick(ctx, events.FromClick(code, click))

	log.Info("Redirecting", "source", click.Source)
	return c.Redirect(rec.OriginalURL, fiber.StatusMovedPermanently)
}

func (h *Handler) handleStatistics(c *fiber.Ctx) error {
	code := c.Params("shortcode")
	log := logger.For(c.UserContext(), "statistics").With("shortcode", code)

	stats, err := h.store.GetStatistics(code)
	if err != nil {
		log.Warn("Stats requested for unknown shortcode", "err", err.Error())
		return storeError(c, err, "Failed to retrieve statistics")
	}

	details := make([]clickDetail, 0, len(stats.RecentClicks))
	for _, click := range stats.RecentClicks {
		details = append(details, clickDetail{
			Timestamp: click.Timestamp.UTC().Format(TimeFormat),
			Source:    string(click.Source),
			Location:  click.Location,
		})
	}

	log.Info("Stats retrieved", "total_clicks", stats.TotalClicks)
	return c.JSON(statisticsResponse{
		TotalClicks:  stats.TotalClicks,
		CreationDate: stats.CreatedAt.UTC().Format(TimeFormat),
		ExpiryDate:   stats.ExpiresAt.UTC().Format(TimeFormat),
		ClickDetails: details,
	})
}
