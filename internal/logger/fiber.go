package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-ID"

// FiberMiddleware tags every request with an id (taken from X-Request-ID or
// generated), stores it in the user context and logs one line per request.
func FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		id := utils.CopyString(c.Get(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(HeaderRequestID, id)
		c.SetUserContext(WithRequestID(c.UserContext(), id))

		err := c.Next()
		latency := time.Since(start)

		route := ""
		if r := c.Route(); r != nil {
			route = r.Path
		}

		attrs := []any{
			"status", c.Response().StatusCode(),
			"method", c.Method(),
			"path", c.OriginalURL(),
			"route", route,
			"ip", c.IP(),
			"user_agent", c.Get(fiber.HeaderUserAgent),
			"latency_ms", float64(latency.Microseconds()) / 1000.0,
		}

		log := For(c.UserContext(), "request")
		if err != nil {
			log.Error("http request", append(attrs, "err", err.Error())...)
			return err
		}
		log.Info("http request", attrs...)
		return nil
	}
}
