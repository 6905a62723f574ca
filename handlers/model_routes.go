// handlers/model_routes.go
package handlers

import (
	"valorant-stats/services"

	"github.com/gofiber/fiber/v2"
)

func SetupModelRoutes(app *fiber.App, modelService *services.ModelService) {
	app.Get("/api/lol/run-classifier/:puuid/:gameMode", modelService.RunClassifier)
	app.Get("/api/lol/feature-importance/:puuid", modelService.FeatureImportance)
	app.Get("/api/lol/statistical-analysis", modelService.StatisticalAnalysis)
	app.Get("/api/lol/model-runs", modelService.ListModelRuns)

	app.Post("/api/predict", modelService.Predict)
	app.Get("/api/run-clustering", modelService.RunClustering)
}
