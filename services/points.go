package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"civic-gamification/config"
	"civic-gamification/models"
	"civic-gamification/repository"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const dailyLimitMessage = "Daily XP limit reached"

// AwardResult is what AwardXP reports back to callers.
type AwardResult struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message,omitempty"`
	AwardedXP int64               `json:"awarded_xp"`
	LeveledUp bool                `json:"leveled_up"`
	NewLevel  int                 `json:"new_level,omitempty"`
	NewTitle  string              `json:"new_title,omitempty"`
	Profile   *models.GameProfile `json:"game_profile,omitempty"`
}

type StreakResult struct {
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
	Increased     bool `json:"increased"`
	Reset         bool `json:"reset"`
}

// ProfileView decorates a profile with level progress for display.
type ProfileView struct {
	*models.GameProfile
	XPToNextLevel        int64 `json:"xp_to_next_level"`
	LevelProgressPercent int   `json:"level_progress_percent"`
}

type PointsHistory struct {
	Entries []models.PointsLog `json:"entries"`
	Page    int                `json:"page"`
	Size    int                `json:"size"`
}

// PointsEngine owns every XP mutation of a GameProfile.
type PointsEngine struct {
	repo   repository.Repository
	cfg    config.Gamification
	clock  clockwork.Clock
	loc    *time.Location
	logger *zap.Logger
}

func NewPointsEngine(repo repository.Repository, cfg config.Gamification, clock clockwork.Clock, logger *zap.Logger) *PointsEngine {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	return &PointsEngine{repo: repo, cfg: cfg, clock: clock, loc: loc, logger: logger}
}

// TitleForLevel derives the display title from a level.
func TitleForLevel(level int) string {
	switch {
	case level <= 5:
		return "Rookie"
	case level <= 15:
		return "Contributor"
	case level <= 30:
		return "Advocate"
	case level <= 50:
		return "Champion"
	default:
		return "Legend"
	}
}

// QualityMultiplier interpolates linearly between the configured bounds over a score clamped to [0,100].
func (e *PointsEngine) QualityMultiplier(qualityScore float64) float64 {
	q := math.Max(0, math.Min(100, qualityScore))
	return e.cfg.QualityMultiplierMin + (e.cfg.QualityMultiplierMax-e.cfg.QualityMultiplierMin)*q/100
}

func (e *PointsEngine) CalculateIssueXP(qualityScore float64) int64 {
	return int64(math.Floor(float64(e.cfg.BaseIssueXP) * e.QualityMultiplier(qualityScore)))
}

// CalculateHelpfulVotesXP caps the votes that count on a single post.
func (e *PointsEngine) CalculateHelpfulVotesXP(voteCount int64) int64 {
	if voteCount <= 0 {
		return 0
	}
	return min(voteCount, e.cfg.HelpfulVoteCapPerPost) * e.cfg.HelpfulVoteXP
}

func (e *PointsEngine) CalculateStreakBonusXP(streakDays int) int64 {
	if streakDays <= 0 {
		return 0
	}
	return int64(streakDays) * e.cfg.StreakBonusXP
}

// StartOfDay is local midnight of the day containing t, in the configured zone.
func (e *PointsEngine) StartOfDay(t time.Time) time.Time {
	t = t.In(e.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc)
}

// AwardXP applies up to amount XP, limited by what is left of today's cap.
// A capped-out award is a result with Success=false, not an error.
func (e *PointsEngine) AwardXP(ctx context.Context, userID string, amount int64, source models.XPSource, reason, sourceID string) (*AwardResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidAmount, amount)
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	var result *AwardResult
	err := e.repo.Transaction(ctx, func(repo repository.Repository) error {
		prog, err := repo.GetOrCreateProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("load profile %s: %w", userID, err)
		}

		now := e.clock.Now()
		totalTodayXP, err := repo.SumXPSince(ctx, userID, e.StartOfDay(now))
		if err != nil {
			return fmt.Errorf("sum today's xp for %s: %w", userID, err)
		}

		allowedXP := min(amount, max(0, e.cfg.DailyMaxXP-totalTodayXP))
		if allowedXP <= 0 {
			result = &AwardResult{Success: false, Message: dailyLimitMessage, AwardedXP: 0}
			return nil
		}

		before := prog.Snapshot()
		prog.TotalXP += allowedXP
		prog.CurrentXPInLevel += allowedXP

		// Level-up logic: a large award can cross several levels
		for prog.CurrentXPInLevel >= e.cfg.XPPerLevel && prog.CurrentLevel < e.cfg.MaxLevel {
			prog.CurrentXPInLevel -= e.cfg.XPPerLevel
			prog.CurrentLevel++
		}
		prog.Title = TitleForLevel(prog.CurrentLevel)
		prog.LastActivityDate = now

		if err := repo.SaveProfile(ctx, prog); err != nil {
			return fmt.Errorf("save profile %s: %w", userID, err)
		}

		entry := &models.PointsLog{
			UserID:    userID,
			XPAmount:  allowedXP,
			Source:    source,
			Reason:    reason,
			Before:    before,
			After:     prog.Snapshot(),
			CreatedAt: now,
		}
		if sourceID != "" {
			entry.SourceID = &sourceID
		}
		if err := repo.AppendPointsLog(ctx, entry); err != nil {
			return fmt.Errorf("append points log for %s: %w", userID, err)
		}

		result = &AwardResult{
			Success:   true,
			AwardedXP: allowedXP,
			LeveledUp: prog.CurrentLevel > before.Level,
			NewLevel:  prog.CurrentLevel,
			NewTitle:  prog.Title,
			Profile:   prog,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Success {
		e.logger.Info("xp awarded",
			zap.String("user_id", userID),
			zap.Int64("requested", amount),
			zap.Int64("awarded", result.AwardedXP),
			zap.String("source", string(source)),
			zap.Int("level", result.NewLevel),
			zap.Bool("leveled_up", result.LeveledUp),
		)
	} else {
		e.logger.Debug("xp award capped", zap.String("user_id", userID), zap.Int64("requested", amount))
	}
	return result, nil
}

// UpdateStreak advances the streak once per rolling 24h window and resets it
// after StreakExpiryHours of inactivity. lastActivityDate is always refreshed.
func (e *PointsEngine) UpdateStreak(ctx context.Context, userID string) (*StreakResult, error) {
	var result *StreakResult
	err := e.repo.Transaction(ctx, func(repo repository.Repository) error {
		prog, err := repo.GetProfile(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
		}
		if err != nil {
			return err
		}

		now := e.clock.Now()
		hoursSince := now.Sub(prog.LastActivityDate).Hours()
		res := &StreakResult{}

		switch {
		case hoursSince > e.cfg.StreakExpiryHours:
			res.Reset = prog.CurrentStreak > 0
			prog.CurrentStreak = 0
		case hoursSince >= 24:
			prog.CurrentStreak++
			res.Increased = true
			if prog.CurrentStreak > prog.LongestStreak {
				prog.LongestStreak = prog.CurrentStreak
			}
		}
		prog.LastActivityDate = now

		if err := repo.SaveProfile(ctx, prog); err != nil {
			return fmt.Errorf("save profile %s: %w", userID, err)
		}
		res.CurrentStreak = prog.CurrentStreak
		res.LongestStreak = prog.LongestStreak
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Reset {
		e.logger.Info("streak expired", zap.String("user_id", userID))
	}
	return result, nil
}

// Profile returns the user's profile with progress toward the next level.
func (e *PointsEngine) Profile(ctx context.Context, userID string) (*ProfileView, error) {
	prog, err := e.repo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	view := &ProfileView{GameProfile: prog}
	if prog.CurrentLevel >= e.cfg.MaxLevel {
		view.LevelProgressPercent = 100
		return view, nil
	}
	view.XPToNextLevel = e.cfg.XPPerLevel - prog.CurrentXPInLevel
	view.LevelProgressPercent = int(prog.CurrentXPInLevel * 100 / e.cfg.XPPerLevel)
	return view, nil
}

// History returns the user's ledger, newest first.
func (e *PointsEngine) History(ctx context.Context, userID string, page, size int) (*PointsHistory, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	entries, err := e.repo.ListPointsLogs(ctx, userID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("list points history for %s: %w", userID, err)
	}
	return &PointsHistory{Entries: entries, Page: page, Size: size}, nil
}

// AdjustCounters bumps activity counters on the profile, creating it if needed.
func (e *PointsEngine) AdjustCounters(ctx context.Context, userID string, fn func(p *models.GameProfile)) (*models.GameProfile, error) {
	var out *models.GameProfile
	err := e.repo.Transaction(ctx, func(repo repository.Repository) error {
		prog, err := repo.GetOrCreateProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("load profile %s: %w", userID, err)
		}
		fn(prog)
		if err := repo.SaveProfile(ctx, prog); err != nil {
			return fmt.Errorf("save profile %s: %w", userID, err)
		}
		out = prog
		return nil
	})
	return out, err
}
