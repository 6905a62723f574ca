// handlers/system_routes.go
package handlers

import (
	"context"
	"time"

	"valorant-stats/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupSystemRoutes registers the banner, health and metrics endpoints.
// db may be nil when the relational database is not in use.
func SetupSystemRoutes(app *fiber.App, cache store.MatchCache, db *gorm.DB) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("valorant-stats server is running")
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		checks := fiber.Map{"cache": "ok"}
		healthy := true

		if err := cache.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			healthy = false
		}
		if db != nil {
			checks["database"] = "ok"
			if err := pingDB(ctx, db); err != nil {
				checks["database"] = err.Error()
				healthy = false
			}
		}

		if !healthy {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "checks": checks})
		}
		return c.JSON(fiber.Map{"status": "ok", "checks": checks})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
