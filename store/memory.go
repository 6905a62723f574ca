package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// MemoryMatchCache keeps match documents in process memory. Used as the
// CACHE_BACKEND=memory development backend and as a test double.
type MemoryMatchCache struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

func NewMemoryMatchCache() *MemoryMatchCache {
	return &MemoryMatchCache{docs: make(map[string]json.RawMessage)}
}

func (c *MemoryMatchCache) FindByIDs(ctx context.Context, ids []string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	found := make(map[string]json.RawMessage)
	for _, id := range ids {
		if doc, ok := c.docs[id]; ok {
			found[id] = cloneRaw(doc)
		}
	}
	return found, nil
}

func (c *MemoryMatchCache) Get(ctx context.Context, id string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRaw(doc), nil
}

func (c *MemoryMatchCache) Upsert(ctx context.Context, records []MatchRecord) (UpsertResult, error) {
	var res UpsertResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range dedupeRecords(records) {
		if _, ok := c.docs[r.MatchID]; ok {
			res.Updated++
		} else {
			res.Inserted++
		}
		c.docs[strings.Clone(r.MatchID)] = cloneRaw(r.Document)
	}
	return res, nil
}

func (c *MemoryMatchCache) Count(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.docs)), nil
}

func (c *MemoryMatchCache) Ping(ctx context.Context) error {
	return ctx.Err()
}

func cloneRaw(doc json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out
}

// MemoryContentCache is the fallback ContentCache when REDIS_URL is not set.
type MemoryContentCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryContentCache() *MemoryContentCache {
	return &MemoryContentCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryContentCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *MemoryContentCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}
