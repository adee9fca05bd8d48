package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type ScheduleConfig struct {
	LeaderboardRefresh time.Duration
	ChallengeStatus    time.Duration
	Location           *time.Location
}

// StartScheduler registers the leaderboard refresh and challenge status jobs and
// starts them. Jobs run in singleton mode and stop when ctx is done.
func StartScheduler(ctx context.Context, g *Gamification, sc ScheduleConfig, clock clockwork.Clock, logger *zap.Logger) (gocron.Scheduler, error) {
	opts := []gocron.SchedulerOption{gocron.WithClock(clock)}
	if sc.Location != nil {
		opts = append(opts, gocron.WithLocation(sc.Location))
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	// Every LeaderboardRefresh: rebuild all leaderboards
	_, err = sched.NewJob(
		gocron.DurationJob(sc.LeaderboardRefresh),
		gocron.NewTask(func() {
			boards, err := g.RecalculateLeaderboards(ctx)
			if err != nil {
				logger.Error("scheduled leaderboard recalculation failed", zap.Error(err))
				return
			}
			logger.Info("✅ leaderboards recalculated", zap.Int("boards", len(boards)))
		}),
		gocron.WithName("leaderboard-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("register leaderboard job: %w", err)
	}

	// Every ChallengeStatus: open and close challenges by date
	_, err = sched.NewJob(
		gocron.DurationJob(sc.ChallengeStatus),
		gocron.NewTask(func() {
			changed, err := g.Challenges.SyncStatuses(ctx)
			if err != nil {
				logger.Error("challenge status sync failed", zap.Error(err))
				return
			}
			if changed > 0 {
				logger.Info("challenge statuses synced", zap.Int("changed", changed))
			}
		}),
		gocron.WithName("challenge-status-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("register challenge status job: %w", err)
	}

	sched.Start()
	return sched, nil
}
