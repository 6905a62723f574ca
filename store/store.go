// Package store holds the persistence ports used by the services and their backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"valorant-stats/riot"
)

// ErrNotFound is returned by single-record lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// MatchRecord is a full upstream match document keyed by its match ID.
type MatchRecord struct {
	MatchID  string
	Document json.RawMessage
}

// NewMatchRecord builds a record from a raw match document, reading the key from
// metadata.matchId.
func NewMatchRecord(doc json.RawMessage) (MatchRecord, error) {
	id := riot.MatchID(doc)
	if id == "" {
		return MatchRecord{}, fmt.Errorf("match document has no metadata.matchId")
	}
	return MatchRecord{MatchID: id, Document: doc}, nil
}

// UpsertResult reports how many records were new and how many replaced an existing one.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// MatchCache is the persistent match-detail cache. Writes are upserts keyed by match
// ID, so concurrent writers of the same ID converge on one record.
type MatchCache interface {
	// FindByIDs returns the stored documents for the given IDs in one batched query.
	// IDs that are not cached are simply absent from the map.
	FindByIDs(ctx context.Context, ids []string) (map[string]json.RawMessage, error)
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Upsert(ctx context.Context, records []MatchRecord) (UpsertResult, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// ContentCache is a small TTL cache for upstream content that changes rarely.
type ContentCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// dedupeRecords keeps the last record for each match ID, preserving first-seen order.
// A single upsert statement may not touch the same key twice.
func dedupeRecords(records []MatchRecord) []MatchRecord {
	index := make(map[string]int, len(records))
	out := make([]MatchRecord, 0, len(records))
	for _, r := range records {
		if i, ok := index[r.MatchID]; ok {
			out[i] = r
			continue
		}
		index[r.MatchID] = len(out)
		out = append(out, r)
	}
	return out
}
