package services

import (
	"context"
	"errors"

	"valorant-stats/riot"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps a service error onto the HTTP status the routes answer with.
// A Riot status is passed through so a 404 account stays a 404.
func statusFor(err error) int {
	var apiErr *riot.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 600:
		return apiErr.StatusCode
	case errors.Is(err, ErrCacheUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, ErrUpstreamUnavailable):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

// respondError writes {"error": msg, "message": detail}. The detail is Riot's own
// message when the failure came from the Riot API.
func respondError(c *fiber.Ctx, err error, msg string) error {
	body := fiber.Map{"error": msg}
	var apiErr *riot.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		body["message"] = apiErr.Message
	}
	return c.Status(statusFor(err)).JSON(body)
}
