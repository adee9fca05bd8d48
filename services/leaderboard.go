package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civic-gamification/config"
	"civic-gamification/models"
	"civic-gamification/repository"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// LeaderboardCache is a hot copy of persisted snapshots. Get returns nil, nil on a miss.
type LeaderboardCache interface {
	Get(ctx context.Context, timeRange models.TimeRange, period string) (*models.Leaderboard, error)
	Set(ctx context.Context, lb *models.Leaderboard) error
}

// LeaderboardArchiver keeps a durable copy of each recalculated snapshot.
type LeaderboardArchiver interface {
	Archive(ctx context.Context, lb *models.Leaderboard) error
}

type LeaderboardPage struct {
	TimeRange   models.TimeRange      `json:"time_range"`
	Period      string                `json:"period"`
	GeneratedAt time.Time             `json:"generated_at"`
	Total       int                   `json:"total"`
	Rankings    []models.RankingEntry `json:"rankings"`
}

// UserRank is a user's position. Rank is nil when the user is not on the board.
type UserRank struct {
	UserID           string      `json:"user_id"`
	TimeRange        string      `json:"time_range"`
	Rank             *int        `json:"rank"`
	Tier             models.Tier `json:"tier"`
	XP               int64       `json:"xp"`
	Level            int         `json:"level"`
	PointsToNextRank int64       `json:"points_to_next_rank"`
	Message          string      `json:"message,omitempty"`
}

type LeaderboardEngine struct {
	repo   repository.Repository
	cfg    config.Gamification
	clock  clockwork.Clock
	loc    *time.Location
	logger *zap.Logger

	// Optional; nil disables them.
	Cache    LeaderboardCache
	Archiver LeaderboardArchiver
}

func NewLeaderboardEngine(repo repository.Repository, cfg config.Gamification, clock clockwork.Clock, logger *zap.Logger) *LeaderboardEngine {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	return &LeaderboardEngine{repo: repo, cfg: cfg, clock: clock, loc: loc, logger: logger}
}

// TierForRank buckets an absolute rank.
func TierForRank(rank int) models.Tier {
	switch {
	case rank <= 10:
		return models.TierPlatinum
	case rank <= 100:
		return models.TierGold
	case rank <= 500:
		return models.TierSilver
	default:
		return models.TierBronze
	}
}

// CurrentPeriod is the period key for timeRange at the current time in the configured zone.
func (e *LeaderboardEngine) CurrentPeriod(timeRange models.TimeRange) (string, error) {
	return PeriodKey(timeRange, e.clock.Now().In(e.loc))
}

// Calculate ranks the top profiles by total XP and replaces the stored snapshot.
// Every time range ranks lifetime XP; windowed sums are not computed.
func (e *LeaderboardEngine) Calculate(ctx context.Context, timeRange models.TimeRange, period string) (*models.Leaderboard, error) {
	if !timeRange.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeRange, timeRange)
	}
	profiles, err := e.repo.TopProfilesByXP(ctx, e.cfg.LeaderboardMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("load top profiles: %w", err)
	}

	rankings := make([]models.RankingEntry, 0, len(profiles))
	for i, p := range profiles {
		rank := i + 1
		rankings = append(rankings, models.RankingEntry{
			Rank:   rank,
			UserID: p.UserID,
			XP:     p.TotalXP,
			Level:  p.CurrentLevel,
			Streak: p.CurrentStreak,
			Tier:   TierForRank(rank),
		})
	}

	lb := &models.Leaderboard{
		TimeRange:   timeRange,
		Period:      period,
		Rankings:    rankings,
		GeneratedAt: e.clock.Now(),
	}
	if err := e.repo.UpsertLeaderboard(ctx, lb); err != nil {
		return nil, fmt.Errorf("store leaderboard %s/%s: %w", timeRange, period, err)
	}
	e.cacheSet(ctx, lb)

	e.logger.Info("leaderboard calculated",
		zap.String("time_range", string(timeRange)),
		zap.String("period", period),
		zap.Int("entries", len(rankings)),
	)
	return lb, nil
}

func (e *LeaderboardEngine) cacheSet(ctx context.Context, lb *models.Leaderboard) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Set(ctx, lb); err != nil {
		e.logger.Warn("leaderboard cache write failed", zap.Error(err))
	}
}

// snapshot serves the current period from cache, then storage, and calculates on a cold miss.
func (e *LeaderboardEngine) snapshot(ctx context.Context, timeRange models.TimeRange) (*models.Leaderboard, error) {
	period, err := e.CurrentPeriod(timeRange)
	if err != nil {
		return nil, err
	}

	if e.Cache != nil {
		lb, err := e.Cache.Get(ctx, timeRange, period)
		if err != nil {
			e.logger.Warn("leaderboard cache read failed", zap.Error(err))
		} else if lb != nil {
			return lb, nil
		}
	}

	lb, err := e.repo.GetLeaderboard(ctx, timeRange, period)
	if errors.Is(err, repository.ErrNotFound) {
		return e.Calculate(ctx, timeRange, period)
	}
	if err != nil {
		return nil, fmt.Errorf("load leaderboard %s/%s: %w", timeRange, period, err)
	}
	e.cacheSet(ctx, lb)
	return lb, nil
}

// GetLeaderboard returns one page of the current snapshot. Ranks are reassigned
// from the page offset.
func (e *LeaderboardEngine) GetLeaderboard(ctx context.Context, timeRange models.TimeRange, skip, limit int) (*LeaderboardPage, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = e.cfg.LeaderboardPageSize
	}
	lb, err := e.snapshot(ctx, timeRange)
	if err != nil {
		return nil, err
	}

	page := &LeaderboardPage{
		TimeRange:   lb.TimeRange,
		Period:      lb.Period,
		GeneratedAt: lb.GeneratedAt,
		Total:       len(lb.Rankings),
		Rankings:    []models.RankingEntry{},
	}
	if skip >= len(lb.Rankings) {
		return page, nil
	}
	end := min(skip+limit, len(lb.Rankings))
	for i, entry := range lb.Rankings[skip:end] {
		entry.Rank = skip + i + 1
		page.Rankings = append(page.Rankings, entry)
	}
	return page, nil
}

// GetUserRank looks the user up in the current snapshot. Users outside it get
// an unranked result, not an error.
func (e *LeaderboardEngine) GetUserRank(ctx context.Context, userID string, timeRange models.TimeRange) (*UserRank, error) {
	lb, err := e.snapshot(ctx, timeRange)
	if err != nil {
		return nil, err
	}
	for i, entry := range lb.Rankings {
		if entry.UserID != userID {
			continue
		}
		rank := entry.Rank
		res := &UserRank{
			UserID:    userID,
			TimeRange: string(timeRange),
			Rank:      &rank,
			Tier:      entry.Tier,
			XP:        entry.XP,
			Level:     entry.Level,
		}
		if i > 0 {
			res.PointsToNextRank = lb.Rankings[i-1].XP - entry.XP
		}
		return res, nil
	}
	return &UserRank{
		UserID:    userID,
		TimeRange: string(timeRange),
		Rank:      nil,
		Tier:      models.TierBronze,
		Message:   "User not ranked",
	}, nil
}

// RecalculateAll recomputes every time range for its current period, in order.
// Archive failures are logged and do not fail the run.
func (e *LeaderboardEngine) RecalculateAll(ctx context.Context) ([]*models.Leaderboard, error) {
	out := make([]*models.Leaderboard, 0, len(models.AllTimeRanges))
	for _, tr := range models.AllTimeRanges {
		period, err := e.CurrentPeriod(tr)
		if err != nil {
			return out, err
		}
		lb, err := e.Calculate(ctx, tr, period)
		if err != nil {
			return out, err
		}
		out = append(out, lb)

		if e.Archiver != nil {
			if err := e.Archiver.Archive(ctx, lb); err != nil {
				e.logger.Warn("leaderboard archive failed",
					zap.String("time_range", string(tr)),
					zap.String("period", period),
					zap.Error(err),
				)
			}
		}
	}
	return out, nil
}
