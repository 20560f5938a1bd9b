package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/MagnunAVF/shortlink-service/internal/logger"
	"github.com/MagnunAVF/shortlink-service/internal/shortlink"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respond(c *fiber.Ctx, status int, kind, message string) error {
	return c.Status(status).JSON(errorResponse{Error: kind, Message: message})
}

func validationError(c *fiber.Ctx, message string) error {
	return respond(c, fiber.StatusBadRequest, "Validation Error", message)
}

// storeError translates a store result into a response. Anything outside the
// known taxonomy becomes a 500 with the given message.
func storeError(c *fiber.Ctx, err error, internalMessage string) error {
	switch {
	case errors.Is(err, shortlink.ErrConflict):
		return respond(c, fiber.StatusConflict, "Conflict", "Shortcode already exists. Please choose another one.")
	case errors.Is(err, shortlink.ErrNotFound):
		return respond(c, fiber.StatusNotFound, "Not Found", "Shortcode does not exist")
	case errors.Is(err, shortlink.ErrExpired):
		return respond(c, fiber.StatusGone, "Gone", "This short link has expired")
	case errors.Is(err, shortlink.ErrInvalidShortcode), errors.Is(err, shortlink.ErrInvalidValidity):
		return validationError(c, err.Error())
	default:
		return respond(c, fiber.StatusInternalServerError, "Internal Server Error", internalMessage)
	}
}

func handleRouteNotFound(c *fiber.Ctx) error {
	logger.For(c.UserContext(), "404").Warn("Route not found", "method", c.Method(), "path", c.Path())
	return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "Route not found"})
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return respond(c, fe.Code, fe.Message, "")
	}
	logger.For(c.UserContext(), "server").Error("Unhandled error", "err", err)
	return respond(c, fiber.StatusInternalServerError, "Internal Server Error", "Something went wrong on our end")
}
