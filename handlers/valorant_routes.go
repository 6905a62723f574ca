// handlers/valorant_routes.go
package handlers

import (
	"valorant-stats/services"

	"github.com/gofiber/fiber/v2"
)

func SetupValorantRoutes(app *fiber.App, valorantService *services.ValorantService, serviceAuth fiber.Handler) {
	app.Get("/api/match-history", valorantService.GetMatchHistory)
	app.Get("/api/detailed-match/:matchId", valorantService.GetDetailedMatch)
	app.Get("/api/content", valorantService.GetContent)
	app.Get("/api/matches", valorantService.ListMatches)

	// 🔐 Replaces the matches table
	app.Get("/api/seed-database", serviceAuth, valorantService.SeedDatabase)
	app.Post("/api/seed-database", serviceAuth, valorantService.SeedDatabase)
}
