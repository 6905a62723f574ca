package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"valorant-stats/metrics"
	"valorant-stats/riot"
	"valorant-stats/store"

	"github.com/sirupsen/logrus"
)

var (
	// ErrUpstreamUnavailable means the match listing could not be fetched.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrCacheUnavailable means the cache store could not be read or written.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// DetailFetchError is a failed detail fetch for a single match. It is logged and the
// match is left out of the result.
type DetailFetchError struct {
	MatchID string
	Err     error
}

func (e *DetailFetchError) Error() string {
	return fmt.Sprintf("fetch match %s: %v", e.MatchID, e.Err)
}

func (e *DetailFetchError) Unwrap() error { return e.Err }

// MatchUpstream is the part of the Riot client the fetcher needs.
type MatchUpstream interface {
	GetMatchIDs(ctx context.Context, puuid string, count int) ([]string, error)
	GetMatchDocument(ctx context.Context, matchID string) (json.RawMessage, error)
}

// MatchSummary is the per-player view of one match, derived on every request.
type MatchSummary struct {
	MatchID      string `json:"matchId"`
	GameMode     string `json:"gameMode"`
	Win          bool   `json:"win"`
	ChampionName string `json:"championName"`
	Kills        int    `json:"kills"`
	Deaths       int    `json:"deaths"`
	Assists      int    `json:"assists"`
	TeamPosition string `json:"teamPosition,omitempty"`
	GameCreation int64  `json:"gameCreation"`
	GameDuration int    `json:"gameDuration"`
}

// MatchCacheFetcher resolves a player's recent matches against the cache and fetches
// only the missing ones. Upstream pacing is owned by the client's shared limiter, so
// the fetches here are sequential but carry no sleeps of their own.
type MatchCacheFetcher struct {
	Upstream MatchUpstream
	Cache    store.MatchCache
	Log      *logrus.Logger

	Count          int           // listing size, upstream caps it around 20
	DetailAttempts int           // 1 = no retry
	RetryBackoff   time.Duration // wait between detail attempts
}

func NewMatchCacheFetcher(upstream MatchUpstream, cache store.MatchCache, log *logrus.Logger) *MatchCacheFetcher {
	return &MatchCacheFetcher{
		Upstream:       upstream,
		Cache:          cache,
		Log:            log,
		Count:          20,
		DetailAttempts: 1,
		RetryBackoff:   2 * time.Second,
	}
}

// RecentMatches returns the player's recent match summaries in upstream listing order.
// Matches that fail to fetch, or in which the player does not appear, are omitted.
func (f *MatchCacheFetcher) RecentMatches(ctx context.Context, puuid string) ([]MatchSummary, error) {
	log := f.Log.WithField("puuid", puuid)

	ids, err := f.Upstream.GetMatchIDs(ctx, puuid, f.Count)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	ids = uniqueIDs(ids, f.Count)
	log.Infof("[MatchCache] upstream listed %d recent matches", len(ids))

	docs, err := f.Cache.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	if docs == nil {
		docs = make(map[string]json.RawMessage, len(ids))
	}
	metrics.CacheLookups.WithLabelValues("hit").Add(float64(len(docs)))

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := docs[id]; !ok {
			missing = append(missing, id)
		}
	}
	metrics.CacheLookups.WithLabelValues("miss").Add(float64(len(missing)))
	log.Infof("[MatchCache] %d cached, %d to fetch", len(docs), len(missing))

	fresh := make([]store.MatchRecord, 0, len(missing))
	for _, id := range missing {
		doc, err := f.fetchDetail(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.DetailFetchFailures.Inc()
			log.WithField("match_id", id).Warnf("❌ [MatchCache] %v", &DetailFetchError{MatchID: id, Err: err})
			continue
		}
		fresh = append(fresh, store.MatchRecord{MatchID: id, Document: doc})
		docs[id] = doc
	}

	if len(fresh) > 0 {
		res, err := f.Cache.Upsert(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
		}
		log.Infof("✅ [MatchCache] stored %d new matches (%d inserted, %d updated)", len(fresh), res.Inserted, res.Updated)
	}

	summaries := make([]MatchSummary, 0, len(ids))
	for _, id := range ids {
		doc, ok := docs[id]
		if !ok {
			continue
		}
		summary, ok := summarize(doc, puuid)
		if !ok {
			log.WithField("match_id", id).Debug("[MatchCache] player not in match, skipping")
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (f *MatchCacheFetcher) fetchDetail(ctx context.Context, id string) (json.RawMessage, error) {
	attempts := f.DetailAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(f.RetryBackoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		doc, err := f.Upstream.GetMatchDocument(ctx, id)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

// retryable reports whether a detail failure may succeed on a later attempt.
// Client errors other than 429 will not.
func retryable(err error) bool {
	var apiErr *riot.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return true
}

func uniqueIDs(ids []string, limit int) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func summarize(doc json.RawMessage, puuid string) (MatchSummary, bool) {
	m, err := riot.DecodeMatch(doc)
	if err != nil {
		return MatchSummary{}, false
	}
	p := m.Participant(puuid)
	if p == nil {
		return MatchSummary{}, false
	}
	return MatchSummary{
		MatchID:      m.Metadata.MatchID,
		GameMode:     m.Info.GameMode,
		Win:          p.Win,
		ChampionName: p.ChampionName,
		Kills:        p.Kills,
		Deaths:       p.Deaths,
		Assists:      p.Assists,
		TeamPosition: p.TeamPosition,
		GameCreation: m.Info.GameCreation,
		GameDuration: m.Info.GameDuration,
	}, true
}
