package store

import (
	"context"
	"encoding/json"
	"errors"

	"valorant-stats/models"
	"valorant-stats/riot"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMatchCache stores match documents in the cached_matches postgres table.
type GormMatchCache struct {
	DB *gorm.DB
}

func NewGormMatchCache(db *gorm.DB) *GormMatchCache {
	return &GormMatchCache{DB: db}
}

func (c *GormMatchCache) FindByIDs(ctx context.Context, ids []string) (map[string]json.RawMessage, error) {
	found := make(map[string]json.RawMessage)
	if len(ids) == 0 {
		return found, nil
	}

	var rows []models.CachedMatch
	if err := c.DB.WithContext(ctx).
		Select("match_id", "document").
		Where("match_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		found[r.MatchID] = json.RawMessage(r.Document)
	}
	return found, nil
}

func (c *GormMatchCache) Get(ctx context.Context, id string) (json.RawMessage, error) {
	var row models.CachedMatch
	if err := c.DB.WithContext(ctx).Where("match_id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(row.Document), nil
}

// Upsert writes all records in one INSERT ... ON CONFLICT (match_id) DO UPDATE.
// The pre-read of existing IDs only feeds the inserted/updated split.
func (c *GormMatchCache) Upsert(ctx context.Context, records []MatchRecord) (UpsertResult, error) {
	var res UpsertResult
	records = dedupeRecords(records)
	if len(records) == 0 {
		return res, nil
	}

	rows, ids := cachedMatchRows(records)

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&models.CachedMatch{}).
			Where("match_id IN ?", ids).
			Pluck("match_id", &existing).Error; err != nil {
			return err
		}
		res.Updated = len(existing)
		res.Inserted = len(rows) - len(existing)

		return upsertMatches(tx, rows).Error
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

func cachedMatchRows(records []MatchRecord) ([]models.CachedMatch, []string) {
	rows := make([]models.CachedMatch, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		row := models.CachedMatch{
			MatchID:  r.MatchID,
			Document: string(r.Document),
		}
		if m, err := riot.DecodeMatch(r.Document); err == nil {
			row.GameMode = m.Info.GameMode
			row.GameCreation = m.Info.GameCreation
		}
		rows = append(rows, row)
		ids = append(ids, r.MatchID)
	}
	return rows, ids
}

// upsertMatches inserts rows, replacing the document of any match_id already stored.
func upsertMatches(tx *gorm.DB, rows []models.CachedMatch) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "match_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"game_mode",
			"game_creation",
			"document",
			"updated_at",
		}),
	}).Create(&rows)
}

func (c *GormMatchCache) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.DB.WithContext(ctx).Model(&models.CachedMatch{}).Count(&n).Error
	return n, err
}

func (c *GormMatchCache) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
