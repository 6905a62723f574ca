// services/scheduler.go
package services

import (
	"context"
	"time"

	"valorant-stats/models"
	"valorant-stats/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Housekeeper clears leftovers of the model pipeline: chart files the scripts leave
// behind and old model run rows.
type Housekeeper struct {
	DB             *gorm.DB
	ArtifactsDir   string
	ArtifactMaxAge time.Duration
	RunRetention   time.Duration
	Log            *logrus.Logger
}

func NewHousekeeper(db *gorm.DB, artifactsDir string, artifactMaxAge, runRetention time.Duration, log *logrus.Logger) *Housekeeper {
	return &Housekeeper{
		DB:             db,
		ArtifactsDir:   artifactsDir,
		ArtifactMaxAge: artifactMaxAge,
		RunRetention:   runRetention,
		Log:            log,
	}
}

func (h *Housekeeper) PurgeArtifacts(now time.Time) (int, error) {
	return utils.PurgeOlderThan(h.ArtifactsDir, h.ArtifactMaxAge, now)
}

func (h *Housekeeper) PruneModelRuns(ctx context.Context, now time.Time) (int64, error) {
	if h.DB == nil {
		return 0, nil
	}
	res := h.DB.WithContext(ctx).
		Where("created_at < ?", now.Add(-h.RunRetention)).
		Delete(&models.ModelRun{})
	return res.RowsAffected, res.Error
}

// Start schedules both jobs and starts the scheduler. The caller shuts it down.
func (h *Housekeeper) Start() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every hour: remove stale chart files
	_, err = sched.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			n, err := h.PurgeArtifacts(time.Now())
			if err != nil {
				h.Log.Errorf("[Scheduler] artifact purge failed: %v", err)
				return
			}
			if n > 0 {
				h.Log.Infof("✅ [Scheduler] removed %d stale artifact(s)", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	// Every day: prune model run history
	_, err = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			n, err := h.PruneModelRuns(ctx, time.Now())
			if err != nil {
				h.Log.Errorf("[Scheduler] model run prune failed: %v", err)
				return
			}
			if n > 0 {
				h.Log.Infof("✅ [Scheduler] pruned %d model run(s)", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
