package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"valorant-stats/models"
	"valorant-stats/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	matchHistoryFile = "match-history.json"
	seedMatchesFile  = "valorant-matches.json"
	agentsCacheKey   = "valorant:agents"
)

var matchIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// Agent is the trimmed agent entry the dashboard renders.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayIcon string `json:"displayIcon"`
}

// ValorantService serves the Valorant side of the dashboard: mock files, agent
// content from valorant-api.com and the seeded matches table.
type ValorantService struct {
	DB         *gorm.DB
	MocksDir   string
	Content    store.ContentCache
	ContentURL string
	ContentTTL time.Duration
	HTTP       *http.Client
	Log        *logrus.Logger
}

func NewValorantService(db *gorm.DB, mocksDir string, content store.ContentCache, contentURL string, ttl time.Duration, httpClient *http.Client, log *logrus.Logger) *ValorantService {
	return &ValorantService{
		DB:         db,
		MocksDir:   mocksDir,
		Content:    content,
		ContentURL: contentURL,
		ContentTTL: ttl,
		HTTP:       httpClient,
		Log:        log,
	}
}

func (s *ValorantService) GetMatchHistory(c *fiber.Ctx) error {
	return s.sendMockFile(c, matchHistoryFile, "match history file not found")
}

func (s *ValorantService) GetDetailedMatch(c *fiber.Ctx) error {
	matchID := c.Params("matchId")
	if !matchIDPattern.MatchString(matchID) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid match id"})
	}
	return s.sendMockFile(c, matchID+".json", "match not found")
}

func (s *ValorantService) sendMockFile(c *fiber.Ctx, name, notFound string) error {
	raw, err := os.ReadFile(filepath.Join(s.MocksDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.Log.Infof("[Valorant] mock %s not found", name)
			return c.Status(404).JSON(fiber.Map{"error": notFound})
		}
		s.Log.Errorf("❌ [Valorant] reading %s: %v", name, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	if !json.Valid(raw) {
		s.Log.Errorf("❌ [Valorant] %s is not valid JSON", name)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	return sendRawJSON(c, raw)
}

// GetContent returns the playable agents, cached for ContentTTL.
func (s *ValorantService) GetContent(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if s.Content != nil {
		cached, ok, err := s.Content.Get(ctx, agentsCacheKey)
		if err != nil {
			s.Log.Warnf("⚠️ [Valorant] content cache read failed: %v", err)
		} else if ok {
			return sendRawJSON(c, cached)
		}
	}

	agents, err := s.fetchAgents(ctx)
	if err != nil {
		s.Log.Errorf("❌ [Valorant] fetching agents: %v", err)
		return c.Status(502).JSON(fiber.Map{"error": "failed to fetch agent data"})
	}
	payload, err := json.Marshal(agents)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	s.Log.Infof("✅ [Valorant] %d agents fetched", len(agents))

	if s.Content != nil {
		if err := s.Content.Set(ctx, agentsCacheKey, payload, s.ContentTTL); err != nil {
			s.Log.Warnf("⚠️ [Valorant] content cache write failed: %v", err)
		}
	}
	return sendRawJSON(c, payload)
}

func (s *ValorantService) fetchAgents(ctx context.Context) ([]Agent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ContentURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("valorant-api returned %d", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			UUID        string `json:"uuid"`
			DisplayName string `json:"displayName"`
			DisplayIcon string `json:"displayIcon"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}

	agents := make([]Agent, 0, len(body.Data))
	for _, a := range body.Data {
		agents = append(agents, Agent{ID: a.UUID, Name: a.DisplayName, DisplayIcon: a.DisplayIcon})
	}
	return agents, nil
}

// SeedDatabase replaces the valorant_matches table with the mock matches file.
func (s *ValorantService) SeedDatabase(c *fiber.Ctx) error {
	matches, err := s.loadSeedMatches()
	if err != nil {
		s.Log.Errorf("❌ [Valorant] loading seed data: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "could not load seed data"})
	}
	if s.DB == nil {
		return c.Status(503).JSON(fiber.Map{"error": "database is not available"})
	}

	err = s.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ValorantMatch{}).Error; err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}
		return tx.CreateInBatches(&matches, 100).Error
	})
	if err != nil {
		s.Log.Errorf("❌ [Valorant] seeding database: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to seed the database"})
	}

	s.Log.Infof("✅ [Valorant] %d mock matches inserted", len(matches))
	return c.Status(200).SendString(fmt.Sprintf("%d mock matches inserted", len(matches)))
}

func (s *ValorantService) loadSeedMatches() ([]models.ValorantMatch, error) {
	raw, err := os.ReadFile(filepath.Join(s.MocksDir, seedMatchesFile))
	if err != nil {
		return nil, err
	}
	var matches []models.ValorantMatch
	if err := json.Unmarshal(raw, &matches); err != nil {
		return nil, fmt.Errorf("decode %s: %w", seedMatchesFile, err)
	}
	seen := make(map[string]struct{}, len(matches))
	for i, m := range matches {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("match %d: %w", i, err)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("match %d: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return matches, nil
}

// ListMatches returns every seeded match, newest first.
func (s *ValorantService) ListMatches(c *fiber.Ctx) error {
	if s.DB == nil {
		return c.Status(503).JSON(fiber.Map{"error": "database is not available"})
	}

	var matches []models.ValorantMatch
	if err := s.DB.WithContext(c.UserContext()).Order("date DESC").Find(&matches).Error; err != nil {
		s.Log.Errorf("❌ [Valorant] listing matches: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to list matches"})
	}
	if len(matches) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "no matches found in the database"})
	}
	return c.JSON(matches)
}
