package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"civic-gamification/models"
	"civic-gamification/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// SpecialEventFunc decides special_event conditions, which no profile counter backs.
type SpecialEventFunc func(profile *models.GameProfile, condition models.UnlockCondition) bool

func noSpecialEvents(*models.GameProfile, models.UnlockCondition) bool { return false }

type metricRule struct {
	class   models.ConditionType
	counter func(p *models.GameProfile) int64
}

// metricRules maps each metric to the condition type it accepts and the counter it reads.
// special_event has no counter and goes through the SpecialEventFunc.
var metricRules = map[models.Metric]metricRule{
	models.MetricIssuesReported: {
		class:   models.ConditionCount,
		counter: func(p *models.GameProfile) int64 { return p.TotalIssuesReported },
	},
	models.MetricUpvotesReceived: {
		class:   models.ConditionCount,
		counter: func(p *models.GameProfile) int64 { return p.TotalUpvotesReceived },
	},
	models.MetricDayStreak: {
		class:   models.ConditionStreak,
		counter: func(p *models.GameProfile) int64 { return int64(p.CurrentStreak) },
	},
	models.MetricLongestStreak: {
		class:   models.ConditionStreak,
		counter: func(p *models.GameProfile) int64 { return int64(p.LongestStreak) },
	},
	models.MetricLevelReached: {
		class:   models.ConditionScore,
		counter: func(p *models.GameProfile) int64 { return int64(p.CurrentLevel) },
	},
	models.MetricCommentsPosted: {
		class:   models.ConditionCount,
		counter: func(p *models.GameProfile) int64 { return p.TotalCommentsPosted },
	},
	models.MetricResolutionContributions: {
		class:   models.ConditionCount,
		counter: func(p *models.GameProfile) int64 { return p.IssueResolutionContribution },
	},
	models.MetricSpecialEvent: {class: models.ConditionSpecial},
}

// HasMetricRule reports whether the engine knows how to evaluate m.
func HasMetricRule(m models.Metric) bool {
	_, ok := metricRules[m]
	return ok
}

type UnlockResult struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message,omitempty"`
	Achievement *models.Achievement `json:"achievement,omitempty"`
	XPReward    int64               `json:"xp_reward"`
}

type AchievementProgress struct {
	Achievement     *models.Achievement `json:"achievement"`
	IsUnlocked      bool                `json:"is_unlocked"`
	CurrentProgress int64               `json:"current_progress"`
	Target          int64               `json:"target"`
	ProgressPercent int                 `json:"progress_percent"`
}

// AchievementEngine evaluates and records unlocks. It never awards XP itself;
// callers pass the returned rewards to the PointsEngine.
type AchievementEngine struct {
	repo         repository.Repository
	logger       *zap.Logger
	SpecialEvent SpecialEventFunc
}

func NewAchievementEngine(repo repository.Repository, logger *zap.Logger) *AchievementEngine {
	return &AchievementEngine{repo: repo, logger: logger, SpecialEvent: noSpecialEvents}
}

// CheckUnlockCondition is true when the condition's type matches its metric's class
// and the backing counter has reached the target.
func (e *AchievementEngine) CheckUnlockCondition(p *models.GameProfile, cond models.UnlockCondition) bool {
	rule, ok := metricRules[cond.Metric]
	if !ok || rule.class != cond.Type {
		return false
	}
	if rule.counter == nil {
		return e.SpecialEvent(p, cond)
	}
	return rule.counter(p) >= cond.Target
}

func (e *AchievementEngine) currentProgress(p *models.GameProfile, cond models.UnlockCondition) int64 {
	rule, ok := metricRules[cond.Metric]
	if !ok {
		return 0
	}
	if rule.counter == nil {
		if e.SpecialEvent(p, cond) {
			return cond.Target
		}
		return 0
	}
	return rule.counter(p)
}

func (e *AchievementEngine) loadAchievement(ctx context.Context, repo repository.Repository, id string) (*models.Achievement, error) {
	a, err := repo.GetAchievement(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAchievementNotFound, id)
	}
	return a, err
}

// UnlockAchievement grants one achievement. Unlocking twice is a no-op returning Success=false.
func (e *AchievementEngine) UnlockAchievement(ctx context.Context, userID, achievementID string) (*UnlockResult, error) {
	var result *UnlockResult
	err := e.repo.Transaction(ctx, func(repo repository.Repository) error {
		a, err := e.loadAchievement(ctx, repo, achievementID)
		if err != nil {
			return err
		}
		prog, err := repo.GetProfile(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
		}
		if err != nil {
			return err
		}

		if prog.HasUnlocked(a.ID) {
			result = &UnlockResult{Success: false, Message: "Achievement already unlocked", Achievement: a}
			return nil
		}

		prog.UnlockedAchievements = append(prog.UnlockedAchievements, a.ID)
		if err := repo.SaveProfile(ctx, prog); err != nil {
			return fmt.Errorf("save profile %s: %w", userID, err)
		}
		if err := repo.IncrementAchievementUnlocks(ctx, a.ID); err != nil {
			return fmt.Errorf("count unlock of %s: %w", a.ID, err)
		}
		a.UnlockedCount++
		result = &UnlockResult{Success: true, Achievement: a, XPReward: a.XPReward}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		e.logger.Info("achievement unlocked", zap.String("user_id", userID), zap.String("achievement", result.Achievement.Code))
	}
	return result, nil
}

// CheckAndUnlockAchievements unlocks every qualifying achievement in one pass and
// saves the profile once. The returned achievements carry the rewards still to be awarded.
func (e *AchievementEngine) CheckAndUnlockAchievements(ctx context.Context, userID string) ([]models.Achievement, error) {
	var unlocked []models.Achievement
	err := e.repo.Transaction(ctx, func(repo repository.Repository) error {
		unlocked = nil
		prog, err := repo.GetProfile(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
		}
		if err != nil {
			return err
		}
		catalog, err := repo.ListAchievements(ctx)
		if err != nil {
			return fmt.Errorf("list achievements: %w", err)
		}

		for _, a := range catalog {
			if prog.HasUnlocked(a.ID) || !e.CheckUnlockCondition(prog, a.UnlockCondition) {
				continue
			}
			prog.UnlockedAchievements = append(prog.UnlockedAchievements, a.ID)
			if err := repo.IncrementAchievementUnlocks(ctx, a.ID); err != nil {
				return fmt.Errorf("count unlock of %s: %w", a.ID, err)
			}
			a.UnlockedCount++
			unlocked = append(unlocked, a)
		}

		if len(unlocked) == 0 {
			return nil
		}
		return repo.SaveProfile(ctx, prog)
	})
	if err != nil {
		return nil, err
	}
	for _, a := range unlocked {
		e.logger.Info("achievement unlocked", zap.String("user_id", userID), zap.String("achievement", a.Code))
	}
	return unlocked, nil
}

func (e *AchievementEngine) progressFor(p *models.GameProfile, a *models.Achievement) AchievementProgress {
	current := e.currentProgress(p, a.UnlockCondition)
	target := a.UnlockCondition.Target
	percent := 100
	if target > 0 {
		percent = int(math.Min(100, math.Floor(float64(current)/float64(target)*100)))
	}
	return AchievementProgress{
		Achievement:     a,
		IsUnlocked:      p.HasUnlocked(a.ID),
		CurrentProgress: current,
		Target:          target,
		ProgressPercent: percent,
	}
}

func (e *AchievementEngine) GetAchievementProgress(ctx context.Context, userID, achievementID string) (*AchievementProgress, error) {
	a, err := e.loadAchievement(ctx, e.repo, achievementID)
	if err != nil {
		return nil, err
	}
	prog, err := e.repo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	res := e.progressFor(prog, a)
	return &res, nil
}

// UserAchievements lists the whole catalog with the user's progress on each entry.
func (e *AchievementEngine) UserAchievements(ctx context.Context, userID string) ([]AchievementProgress, error) {
	prog, err := e.repo.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	catalog, err := e.repo.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	out := make([]AchievementProgress, 0, len(catalog))
	for i := range catalog {
		out = append(out, e.progressFor(prog, &catalog[i]))
	}
	return out, nil
}

func (e *AchievementEngine) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	return e.repo.ListAchievements(ctx)
}

// CreateAchievement validates and stores a catalog entry. Code defaults to the slug of Name.
func (e *AchievementEngine) CreateAchievement(ctx context.Context, a *models.Achievement) error {
	switch {
	case a.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidAchievement)
	case a.XPReward < 0:
		return fmt.Errorf("%w: xp reward must not be negative", ErrInvalidAchievement)
	case a.UnlockCondition.Target <= 0:
		return fmt.Errorf("%w: unlock target must be positive", ErrInvalidAchievement)
	}
	rule, ok := metricRules[a.UnlockCondition.Metric]
	if !ok {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidAchievement, a.UnlockCondition.Metric)
	}
	if rule.class != a.UnlockCondition.Type {
		return fmt.Errorf("%w: metric %s needs condition type %s", ErrInvalidAchievement, a.UnlockCondition.Metric, rule.class)
	}

	a.ID = uuid.NewString()
	if a.Code == "" {
		a.Code = slug.Make(a.Name)
	}
	a.UnlockedCount = 0
	if err := e.repo.CreateAchievement(ctx, a); err != nil {
		return fmt.Errorf("create achievement %q: %w", a.Name, err)
	}
	e.logger.Info("achievement created", zap.String("code", a.Code), zap.String("metric", string(a.UnlockCondition.Metric)))
	return nil
}

// SeedAchievements inserts the default catalog entries whose code is not present yet.
func (e *AchievementEngine) SeedAchievements(ctx context.Context) (int, error) {
	created := 0
	for _, def := range models.DefaultAchievements {
		a := def
		a.Code = slug.Make(a.Name)
		_, err := e.repo.GetAchievementByCode(ctx, a.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return created, fmt.Errorf("look up achievement %s: %w", a.Code, err)
		}
		if err := e.CreateAchievement(ctx, &a); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
