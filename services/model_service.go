package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"valorant-stats/models"
	"valorant-stats/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Script names and files the model pipeline relies on, relative to the scripts dir.
const (
	scriptDataMiner       = "data_miner.py"
	scriptClassifier      = "lol_classifier_model.py"
	scriptPredict         = "predict_model.py"
	scriptClustering      = "cluster_model.py"
	scriptFeatureAnalysis = "feature_analysis.py"
	scriptStatistical     = "statistical_analysis.py"

	statisticalResultsFile = "statistical_analysis_results.json"
)

// ArtifactUploader publishes analysis images. utils.R2Uploader satisfies it.
type ArtifactUploader interface {
	UploadBytes(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// analysisResult is what feature_analysis.py and statistical_analysis.py report.
type analysisResult struct {
	ImagePath string `json:"image_path"`
	Error     string `json:"error"`
}

type ModelService struct {
	Runner     ModelRunner
	ScriptsDir string
	Uploader   ArtifactUploader // nil serves images inline
	DB         *gorm.DB         // nil disables the run history route
	Log        *logrus.Logger
}

func NewModelService(runner ModelRunner, scriptsDir string, uploader ArtifactUploader, db *gorm.DB, log *logrus.Logger) *ModelService {
	return &ModelService{Runner: runner, ScriptsDir: scriptsDir, Uploader: uploader, DB: db, Log: log}
}

// RunClassifier refreshes the training data for a player, then classifies for a game mode.
func (s *ModelService) RunClassifier(c *fiber.Ctx) error {
	puuid := c.Params("puuid")
	gameMode := c.Params("gameMode")
	if puuid == "" || gameMode == "" {
		return c.Status(400).JSON(fiber.Map{"error": "puuid and gameMode are required"})
	}

	ctx := c.UserContext()
	log := s.Log.WithFields(logrus.Fields{"puuid": puuid, "game_mode": gameMode})
	log.Info("[Model] running classifier pipeline")

	if _, err := s.Runner.Run(ctx, scriptDataMiner, puuid); err != nil {
		return s.pipelineError(c, err, "failed to mine training data")
	}
	out, err := s.Runner.Run(ctx, scriptClassifier, gameMode)
	if err != nil {
		return s.pipelineError(c, err, "classifier failed")
	}
	return sendJSONOutput(c, out)
}

// Predict passes the request body to the prediction script as a single JSON argument.
func (s *ModelService) Predict(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 || !json.Valid(body) {
		return c.Status(400).JSON(fiber.Map{"error": "request body must be a JSON document"})
	}

	out, err := s.Runner.Run(c.UserContext(), scriptPredict, string(body))
	if err != nil {
		return s.pipelineError(c, err, "prediction failed")
	}
	return sendJSONOutput(c, out)
}

func (s *ModelService) RunClustering(c *fiber.Ctx) error {
	if _, err := s.Runner.Run(c.UserContext(), scriptClustering); err != nil {
		return s.pipelineError(c, err, "clustering failed")
	}
	return c.Status(200).SendString("clustering completed")
}

// FeatureImportance mines the player's data and returns the feature-importance chart.
func (s *ModelService) FeatureImportance(c *fiber.Ctx) error {
	puuid := c.Params("puuid")
	if puuid == "" {
		return c.Status(400).JSON(fiber.Map{"error": "puuid is required"})
	}

	ctx := c.UserContext()
	if _, err := s.Runner.Run(ctx, scriptDataMiner, puuid); err != nil {
		return s.pipelineError(c, err, "failed to mine training data")
	}
	out, err := s.Runner.Run(ctx, scriptFeatureAnalysis)
	if err != nil {
		return s.pipelineError(c, err, "feature analysis failed")
	}

	var result analysisResult
	if err := json.Unmarshal(out, &result); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "feature analysis returned invalid JSON"})
	}
	return s.sendAnalysisImage(c, "feature-importance", result)
}

// StatisticalAnalysis runs the Nemenyi test script, which reports through a results file.
func (s *ModelService) StatisticalAnalysis(c *fiber.Ctx) error {
	if _, err := s.Runner.Run(c.UserContext(), scriptStatistical); err != nil {
		return s.pipelineError(c, err, "statistical analysis failed")
	}

	resultsPath := filepath.Join(s.ScriptsDir, statisticalResultsFile)
	raw, err := os.ReadFile(resultsPath)
	if err != nil {
		s.Log.Errorf("❌ [Model] reading %s: %v", statisticalResultsFile, err)
		return c.Status(500).JSON(fiber.Map{"error": "statistical analysis produced no results"})
	}
	if err := os.Remove(resultsPath); err != nil {
		s.Log.Warnf("⚠️ [Model] could not remove %s: %v", statisticalResultsFile, err)
	}

	var result analysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "statistical analysis returned invalid JSON"})
	}
	return s.sendAnalysisImage(c, "statistical-analysis", result)
}

// ListModelRuns returns the most recent script invocations.
func (s *ModelService) ListModelRuns(c *fiber.Ctx) error {
	if s.DB == nil {
		return c.Status(503).JSON(fiber.Map{"error": "run history is not available"})
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return c.Status(400).JSON(fiber.Map{"error": "limit must be between 1 and 200"})
		}
		limit = n
	}

	q := s.DB.WithContext(c.UserContext()).Order("created_at DESC").Limit(limit)
	if script := c.Query("script"); script != "" {
		q = q.Where("script = ?", script)
	}

	var runs []models.ModelRun
	if err := q.Find(&runs).Error; err != nil {
		s.Log.Errorf("❌ [Model] listing runs: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to list model runs"})
	}
	return c.JSON(runs)
}

// sendAnalysisImage answers with the chart the script wrote, then deletes it.
func (s *ModelService) sendAnalysisImage(c *fiber.Ctx, kind string, result analysisResult) error {
	if result.Error != "" {
		return c.Status(400).JSON(fiber.Map{"error": result.Error})
	}
	if result.ImagePath == "" {
		return c.Status(500).JSON(fiber.Map{"error": "analysis did not report an image"})
	}

	imagePath, err := utils.ResolveInDir(s.ScriptsDir, result.ImagePath)
	if err != nil {
		s.Log.Errorf("❌ [Model] %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "analysis reported an invalid image path"})
	}
	defer func() {
		if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
			s.Log.Warnf("⚠️ [Model] could not remove %s: %v", result.ImagePath, err)
		}
	}()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		s.Log.Errorf("❌ [Model] reading image %s: %v", result.ImagePath, err)
		return c.Status(500).JSON(fiber.Map{"error": "could not read analysis image"})
	}
	contentType := utils.ContentTypeFor(imagePath)

	if s.Uploader != nil {
		key := utils.ArtifactKey(kind, imagePath, time.Now())
		url, err := s.Uploader.UploadBytes(c.UserContext(), key, contentType, data)
		if err != nil {
			s.Log.Errorf("❌ [Model] uploading %s: %v", key, err)
			return c.Status(502).JSON(fiber.Map{"error": "could not upload analysis image"})
		}
		s.Log.Infof("✅ [Model] uploaded %s", key)
		return c.JSON(fiber.Map{"url": url})
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`inline; filename="%s"`, utils.ASCIIFilename(filepath.Base(imagePath))))
	return c.Send(data)
}

func (s *ModelService) pipelineError(c *fiber.Ctx, err error, msg string) error {
	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		s.Log.WithField("script", scriptErr.Script).Errorf("❌ [Model] %s: exit %d", msg, scriptErr.ExitCode)
		return c.Status(500).JSON(fiber.Map{"error": msg})
	}
	s.Log.Errorf("❌ [Model] %s: %v", msg, err)
	return respondError(c, err, msg)
}

func sendJSONOutput(c *fiber.Ctx, out []byte) error {
	if !json.Valid(out) {
		return c.Status(500).JSON(fiber.Map{"error": "model returned invalid JSON"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(200).Send(out)
}
