package middleware

import (
	"errors"
	"strconv"
	"time"

	"valorant-stats/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RequestLogMiddleware counts every request by route template and status, and logs it.
func RequestLogMiddleware(log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		metrics.HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()

		log.WithFields(logrus.Fields{
			"request_id": RequestID(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"duration":   time.Since(start).Round(time.Millisecond).String(),
		}).Info("[HTTP] request")
		return err
	}
}
