package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"valorant-stats/models"
	"valorant-stats/riot"
	"valorant-stats/store"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RiotAPI is the slice of the Riot client the LoL routes use.
type RiotAPI interface {
	MatchUpstream
	GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error)
}

type LolService struct {
	Riot    RiotAPI
	Cache   store.MatchCache
	Fetcher *MatchCacheFetcher
	DB      *gorm.DB // optional, remembers looked-up players
	Log     *logrus.Logger
}

func NewLolService(api RiotAPI, cache store.MatchCache, fetcher *MatchCacheFetcher, db *gorm.DB, log *logrus.Logger) *LolService {
	return &LolService{Riot: api, Cache: cache, Fetcher: fetcher, DB: db, Log: log}
}

// GetPlayer resolves a Riot ID (gameName#tagLine) to its account.
func (s *LolService) GetPlayer(c *fiber.Ctx) error {
	gameName, err1 := url.PathUnescape(c.Params("gameName"))
	tagLine, err2 := url.PathUnescape(c.Params("tagLine"))
	if err1 != nil || err2 != nil || gameName == "" || tagLine == "" {
		return c.Status(400).JSON(fiber.Map{"error": "gameName and tagLine are required"})
	}

	log := s.Log.WithFields(logrus.Fields{"game_name": gameName, "tag_line": tagLine})
	log.Info("[LoL] looking up account")

	account, err := s.Riot.GetAccountByRiotID(c.UserContext(), gameName, tagLine)
	if err != nil {
		log.Errorf("❌ [LoL] account lookup failed: %v", err)
		return respondError(c, err, "failed to look up account")
	}

	s.rememberPlayer(c.UserContext(), account)
	return c.JSON(account)
}

func (s *LolService) rememberPlayer(ctx context.Context, account *riot.AccountResponse) {
	if s.DB == nil || account.PUUID == "" {
		return
	}

	player := models.Player{
		PUUID:        account.PUUID,
		GameName:     account.GameName,
		TagLine:      account.TagLine,
		LookupKey:    models.PlayerLookupKey(account.GameName, account.TagLine),
		LastLookupAt: time.Now(),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "puuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"game_name", "tag_line", "lookup_key", "last_lookup_at", "updated_at"}),
	}).Create(&player).Error
	if err != nil {
		s.Log.WithField("puuid", account.PUUID).Warnf("⚠️ [LoL] could not save player: %v", err)
	}
}

// GetMatches returns the player's recent match summaries, most recent first.
func (s *LolService) GetMatches(c *fiber.Ctx) error {
	puuid := c.Params("puuid")
	if puuid == "" {
		return c.Status(400).JSON(fiber.Map{"error": "puuid is required"})
	}

	summaries, err := s.Fetcher.RecentMatches(c.UserContext(), puuid)
	if err != nil {
		s.Log.WithField("puuid", puuid).Errorf("❌ [LoL] match history failed: %v", err)
		return respondError(c, err, "failed to load match history")
	}
	return c.JSON(summaries)
}

// GetMatch returns a full match document, from the cache when possible.
func (s *LolService) GetMatch(c *fiber.Ctx) error {
	// Params point into the request buffer; the ID outlives the request as a cache key
	matchID := fiberutils.CopyString(c.Params("matchId"))
	if matchID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "matchId is required"})
	}
	ctx := c.UserContext()
	log := s.Log.WithField("match_id", matchID)

	doc, err := s.Cache.Get(ctx, matchID)
	switch {
	case err == nil:
		return sendRawJSON(c, doc)
	case !errors.Is(err, store.ErrNotFound):
		log.Errorf("❌ [LoL] cache read failed: %v", err)
		return respondError(c, fmt.Errorf("%w: %w", ErrCacheUnavailable, err), "failed to read match cache")
	}

	doc, err = s.Riot.GetMatchDocument(ctx, matchID)
	if err != nil {
		log.Errorf("❌ [LoL] match fetch failed: %v", err)
		return respondError(c, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err), "failed to fetch match")
	}

	if _, err := s.Cache.Upsert(ctx, []store.MatchRecord{{MatchID: matchID, Document: doc}}); err != nil {
		log.Warnf("⚠️ [LoL] could not cache match: %v", err)
	}
	return sendRawJSON(c, doc)
}

// SaveMatch stores one raw match document: 201 when new, 200 when it replaced one.
func (s *LolService) SaveMatch(c *fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return c.Status(400).JSON(fiber.Map{"error": "invalid or missing match data"})
	}
	rec, err := store.NewMatchRecord(append(json.RawMessage(nil), body...))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid or missing match data"})
	}

	res, err := s.Cache.Upsert(c.UserContext(), []store.MatchRecord{rec})
	if err != nil {
		s.Log.WithField("match_id", rec.MatchID).Errorf("❌ [LoL] saving match: %v", err)
		return respondError(c, fmt.Errorf("%w: %w", ErrCacheUnavailable, err), "failed to save match")
	}

	if res.Inserted > 0 {
		s.Log.WithField("match_id", rec.MatchID).Info("✅ [LoL] match inserted")
		return c.Status(201).JSON(fiber.Map{"message": fmt.Sprintf("match %s saved", rec.MatchID)})
	}
	s.Log.WithField("match_id", rec.MatchID).Info("✅ [LoL] match updated")
	return c.Status(200).JSON(fiber.Map{"message": fmt.Sprintf("match %s updated", rec.MatchID)})
}

// SaveMatches stores every entry of a JSON array that carries metadata.matchId and
// ignores the rest.
func (s *LolService) SaveMatches(c *fiber.Ctx) error {
	var items []json.RawMessage
	if err := json.Unmarshal(c.Body(), &items); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "no valid match data provided"})
	}

	records := make([]store.MatchRecord, 0, len(items))
	for _, item := range items {
		rec, err := store.NewMatchRecord(item)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "no valid match data provided"})
	}

	res, err := s.Cache.Upsert(c.UserContext(), records)
	if err != nil {
		s.Log.Errorf("❌ [LoL] saving %d matches: %v", len(records), err)
		return respondError(c, fmt.Errorf("%w: %w", ErrCacheUnavailable, err), "failed to save matches")
	}

	s.Log.Infof("✅ [LoL] %d matches inserted, %d updated (%d skipped)", res.Inserted, res.Updated, len(items)-len(records))
	return c.JSON(fiber.Map{
		"message":  "matches saved",
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"skipped":  len(items) - len(records),
	})
}

func sendRawJSON(c *fiber.Ctx, doc json.RawMessage) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(doc)
}
