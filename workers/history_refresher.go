package workers

import (
	"context"
	"time"

	"valorant-stats/services"

	"github.com/sirupsen/logrus"
)

// HistoryFetcher is satisfied by services.MatchCacheFetcher.
type HistoryFetcher interface {
	RecentMatches(ctx context.Context, puuid string) ([]services.MatchSummary, error)
}

// HistoryRefresher keeps the match cache warm for a fixed list of players.
type HistoryRefresher struct {
	Fetcher HistoryFetcher
	PUUIDs  []string
	Log     *logrus.Logger
}

func NewHistoryRefresher(fetcher HistoryFetcher, puuids []string, log *logrus.Logger) *HistoryRefresher {
	return &HistoryRefresher{Fetcher: fetcher, PUUIDs: puuids, Log: log}
}

// RefreshOnce walks the tracked players one after another and returns how many
// refreshed without error. It stops early when ctx is cancelled.
func (r *HistoryRefresher) RefreshOnce(ctx context.Context) int {
	ok := 0
	for _, puuid := range r.PUUIDs {
		if ctx.Err() != nil {
			return ok
		}
		summaries, err := r.Fetcher.RecentMatches(ctx, puuid)
		if err != nil {
			r.Log.WithField("puuid", puuid).Errorf("❌ [Refresher] refresh failed: %v", err)
			continue
		}
		ok++
		r.Log.WithField("puuid", puuid).Debugf("[Refresher] %d matches in history", len(summaries))
	}
	return ok
}

// Poll refreshes every interval until ctx is cancelled.
func (r *HistoryRefresher) Poll(ctx context.Context, interval time.Duration) {
	if len(r.PUUIDs) == 0 {
		r.Log.Info("[Refresher] no tracked players, not starting")
		return
	}
	r.Log.Infof("Starting match history refresh for %d player(s) every %s...", len(r.PUUIDs), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Log.Info("Match history refresh stopped.")
			return
		case <-ticker.C:
			start := time.Now()
			n := r.RefreshOnce(ctx)
			r.Log.Infof("✅ [Refresher] refreshed %d/%d player(s) in %s", n, len(r.PUUIDs), time.Since(start).Round(time.Millisecond))
		}
	}
}
