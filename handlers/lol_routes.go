// handlers/lol_routes.go
package handlers

import (
	"valorant-stats/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLolRoutes(app *fiber.App, lolService *services.LolService, serviceAuth fiber.Handler) {
	lol := app.Group("/api/lol")

	// 🔓 Read routes
	lol.Get("/player/:gameName/:tagLine", lolService.GetPlayer)
	lol.Get("/matches/:puuid", lolService.GetMatches)
	lol.Get("/match/:matchId", lolService.GetMatch)

	// 🔐 Cache writes
	lol.Post("/save-match", serviceAuth, lolService.SaveMatch)
	lol.Post("/save-matches", serviceAuth, lolService.SaveMatches)
}
