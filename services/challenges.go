package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civic-gamification/config"
	"civic-gamification/models"
	"civic-gamification/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type JoinResult struct {
	Success     bool                         `json:"success"`
	Message     string                       `json:"message,omitempty"`
	Participant *models.ChallengeParticipant `json:"participant,omitempty"`
}

// ProgressResult reports one progress update. Completed is true only for the
// call that crossed the target.
type ProgressResult struct {
	ChallengeID string `json:"challenge_id"`
	Progress    int64  `json:"progress"`
	Target      int64  `json:"target"`
	Completed   bool   `json:"completed"`
	XPReward    int64  `json:"xp_reward"`
}

type CompleteResult struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Challenge *models.Challenge `json:"challenge,omitempty"`
	XPReward  int64             `json:"xp_reward"`
}

type UserChallenge struct {
	Challenge   models.Challenge            `json:"challenge"`
	Participant models.ChallengeParticipant `json:"participation"`
}

// ChallengeEngine tracks joins, progress and completion. Like the achievement
// engine it leaves XP rewards to the caller.
type ChallengeEngine struct {
	repo   repository.Repository
	cfg    config.Gamification
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewChallengeEngine(repo repository.Repository, cfg config.Gamification, clock clockwork.Clock, logger *zap.Logger) *ChallengeEngine {
	return &ChallengeEngine{repo: repo, cfg: cfg, clock: clock, logger: logger}
}

func loadChallenge(ctx context.Context, repo repository.Repository, id string) (*models.Challenge, error) {
	c, err := repo.GetChallenge(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	return c, err
}

// statusAt is the status a challenge should have at now, following its dates.
func statusAt(c *models.Challenge, now time.Time) models.ChallengeStatus {
	switch {
	case now.Before(c.StartDate):
		return models.ChallengeUpcoming
	case c.IsOpen(now):
		return models.ChallengeActive
	default:
		return models.ChallengeCompleted
	}
}

// CreateChallenge validates and stores a challenge. A zero XPReward takes the
// difficulty tier and an empty status is derived from the dates.
func (e *ChallengeEngine) CreateChallenge(ctx context.Context, c *models.Challenge) error {
	switch {
	case c.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidChallenge)
	case !c.EndDate.After(c.StartDate):
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidChallenge)
	case c.ProgressMetric.Type == "" || c.ProgressMetric.Target <= 0:
		return fmt.Errorf("%w: progress metric needs a type and a positive target", ErrInvalidChallenge)
	case c.XPReward < 0:
		return fmt.Errorf("%w: xp reward must not be negative", ErrInvalidChallenge)
	case c.Status != "" && !c.Status.Valid():
		return fmt.Errorf("%w: %q", ErrInvalidStatus, c.Status)
	}
	for _, b := range c.BonusRewards {
		if b.XPBonus < 0 {
			return fmt.Errorf("%w: bonus %q must not be negative", ErrInvalidChallenge, b.Condition)
		}
	}

	if c.Difficulty == "" {
		c.Difficulty = "medium"
	}
	if c.XPReward == 0 {
		c.XPReward = e.cfg.ChallengeXPForDifficulty(c.Difficulty)
	}
	if c.Status == "" {
		c.Status = statusAt(c, e.clock.Now())
	}
	if c.BonusRewards == nil {
		c.BonusRewards = []models.BonusReward{}
	}
	c.ID = uuid.NewString()
	c.CompletionCount = 0
	c.Participants = nil

	if err := e.repo.CreateChallenge(ctx, c); err != nil {
		return fmt.Errorf("create challenge %q: %w", c.Title, err)
	}
	e.logger.Info("challenge created",
		zap.String("challenge_id", c.ID),
		zap.String("status", string(c.Status)),
		zap.Int64("xp_reward", c.XPReward),
	)
	return nil
}

// JoinChallenge adds the user to an active challenge. Joining twice is a policy rejection.
func (e *ChallengeEngine) JoinChallenge(ctx context.Context, userID, challengeID string) (*JoinResult, error) {
	var result *JoinResult
	err := e.repo.Transaction(ctx, func(repo repository.Repository) error {
		c, err := loadChallenge(ctx, repo, challengeID)
		if err != nil {
			return err
		}
		if c.Status != models.ChallengeActive {
			result = &JoinResult{Success: false, Message: "Challenge is not active"}
			return nil
		}
		prog, err := repo.GetOrCreateProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("load profile %s: %w", userID, err)
		}

		part := &models.ChallengeParticipant{
			ChallengeID: challengeID,
			UserID:      userID,
			JoinedDate:  e.clock.Now(),
		}
		created, err := repo.AddParticipant(ctx, part)
		if err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
		if !created {
			result = &JoinResult{Success: false, Message: "Already joined"}
			return nil
		}

		if !prog.HasJoined(challengeID) {
			prog.JoinedChallenges = append(prog.JoinedChallenges, challengeID)
			if err := repo.SaveProfile(ctx, prog); err != nil {
				return fmt.Errorf("save profile %s: %w", userID, err)
			}
		}
		result = &JoinResult{Success: true, Participant: part}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		e.logger.Info("challenge joined", zap.String("user_id", userID), zap.String("challenge_id", challengeID))
	}
	return result, nil
}

// UpdateChallengeProgress adds amount to the user's progress. Progress is not
// clamped to the target; completion is recorded once.
func (e *ChallengeEngine) UpdateChallengeProgress(ctx context.Context, userID, challengeID string, amount int64) (*ProgressResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidProgress, amount)
	}

	var result *ProgressResult
	err := e.repo.Transaction(ctx, func(repo repository.Repository) error {
		c, err := loadChallenge(ctx, repo, challengeID)
		if err != nil {
			return err
		}
		part, err := repo.GetParticipant(ctx, challengeID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s in %s", ErrNotJoined, userID, challengeID)
		}
		if err != nil {
			return err
		}

		part.Progress += amount
		res := &ProgressResult{ChallengeID: challengeID, Target: c.ProgressMetric.Target}
		if part.Progress >= c.ProgressMetric.Target && !part.Completed {
			now := e.clock.Now()
			part.Completed = true
			part.CompletedDate = &now
			if err := repo.IncrementChallengeCompletions(ctx, challengeID); err != nil {
				return fmt.Errorf("count completion of %s: %w", challengeID, err)
			}
			res.Completed = true
			res.XPReward = c.XPReward
		}
		if err := repo.SaveParticipant(ctx, part); err != nil {
			return fmt.Errorf("save participant: %w", err)
		}
		res.Progress = part.Progress
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Completed {
		e.logger.Info("challenge target reached", zap.String("user_id", userID), zap.String("challenge_id", challengeID))
	}
	return result, nil
}

// CompleteChallenge records the challenge on the user's profile and returns the
// base reward plus every declared bonus. Bonus conditions are not evaluated.
//
// Completion is stricter than a plain idempotent mark: the caller must have
// joined, and a participant whose progress is still below the target gets
// Success=false with no reward, even on a first call.
func (e *ChallengeEngine) CompleteChallenge(ctx context.Context, userID, challengeID string) (*CompleteResult, error) {
	var result *CompleteResult
	err := e.repo.Transaction(ctx, func(repo repository.Repository) error {
		c, err := loadChallenge(ctx, repo, challengeID)
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
		if prog.HasCompleted(challengeID) {
			result = &CompleteResult{Success: false, Message: "Challenge already completed", Challenge: c}
			return nil
		}

		part, err := repo.GetParticipant(ctx, challengeID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s in %s", ErrNotJoined, userID, challengeID)
		}
		if err != nil {
			return err
		}
		if part.Progress < c.ProgressMetric.Target {
			result = &CompleteResult{Success: false, Message: "Challenge target not reached", Challenge: c}
			return nil
		}

		if !part.Completed {
			now := e.clock.Now()
			part.Completed = true
			part.CompletedDate = &now
			if err := repo.SaveParticipant(ctx, part); err != nil {
				return fmt.Errorf("save participant: %w", err)
			}
			if err := repo.IncrementChallengeCompletions(ctx, challengeID); err != nil {
				return fmt.Errorf("count completion of %s: %w", challengeID, err)
			}
		}

		prog.CompletedChallenges = append(prog.CompletedChallenges, challengeID)
		if err := repo.SaveProfile(ctx, prog); err != nil {
			return fmt.Errorf("save profile %s: %w", userID, err)
		}
		result = &CompleteResult{Success: true, Challenge: c, XPReward: c.TotalReward()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		e.logger.Info("challenge completed",
			zap.String("user_id", userID),
			zap.String("challenge_id", challengeID),
			zap.Int64("xp_reward", result.XPReward),
		)
	}
	return result, nil
}

// AdvanceMatching adds amount to every active, unfinished challenge the user joined
// whose progress metric is metricType.
func (e *ChallengeEngine) AdvanceMatching(ctx context.Context, userID, metricType string, amount int64) ([]ProgressResult, error) {
	parts, err := e.repo.ListParticipations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list participations for %s: %w", userID, err)
	}
	var results []ProgressResult
	for _, p := range parts {
		if p.Completed {
			continue
		}
		c, err := loadChallenge(ctx, e.repo, p.ChallengeID)
		if err != nil {
			return results, err
		}
		if c.Status != models.ChallengeActive || c.ProgressMetric.Type != metricType {
			continue
		}
		res, err := e.UpdateChallengeProgress(ctx, userID, c.ID, amount)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// UpdateStatus sets a challenge status by hand. Archived challenges stay archived.
func (e *ChallengeEngine) UpdateStatus(ctx context.Context, challengeID string, status models.ChallengeStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return e.repo.Transaction(ctx, func(repo repository.Repository) error {
		c, err := loadChallenge(ctx, repo, challengeID)
		if err != nil {
			return err
		}
		if c.Status == models.ChallengeArchived && status != models.ChallengeArchived {
			return fmt.Errorf("%w: challenge %s is archived", ErrInvalidStatus, challengeID)
		}
		if err := repo.UpdateChallengeStatus(ctx, challengeID, status); err != nil {
			return err
		}
		e.logger.Info("challenge status updated", zap.String("challenge_id", challengeID), zap.String("status", string(status)))
		return nil
	})
}

// SyncStatuses moves upcoming challenges to active and active ones to completed
// as their dates pass. It returns how many challenges changed.
func (e *ChallengeEngine) SyncStatuses(ctx context.Context) (int, error) {
	now := e.clock.Now()
	changed := 0
	for _, from := range []models.ChallengeStatus{models.ChallengeUpcoming, models.ChallengeActive} {
		list, err := e.repo.ListChallenges(ctx, from)
		if err != nil {
			return changed, fmt.Errorf("list %s challenges: %w", from, err)
		}
		for _, c := range list {
			to := statusAt(&c, now)
			if to == c.Status || (from == models.ChallengeActive && to == models.ChallengeUpcoming) {
				continue
			}
			if err := e.repo.UpdateChallengeStatus(ctx, c.ID, to); err != nil {
				return changed, fmt.Errorf("move challenge %s to %s: %w", c.ID, to, err)
			}
			changed++
			e.logger.Info("challenge status synced",
				zap.String("challenge_id", c.ID),
				zap.String("from", string(c.Status)),
				zap.String("to", string(to)),
			)
		}
	}
	return changed, nil
}

func (e *ChallengeEngine) ListChallenges(ctx context.Context, status models.ChallengeStatus) ([]models.Challenge, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return e.repo.ListChallenges(ctx, status)
}

func (e *ChallengeEngine) GetChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	return loadChallenge(ctx, e.repo, challengeID)
}

// UserChallenges lists the challenges the user joined, newest join first.
func (e *ChallengeEngine) UserChallenges(ctx context.Context, userID string) ([]UserChallenge, error) {
	parts, err := e.repo.ListParticipations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list participations for %s: %w", userID, err)
	}
	out := make([]UserChallenge, 0, len(parts))
	for _, p := range parts {
		c, err := loadChallenge(ctx, e.repo, p.ChallengeID)
		if err != nil {
			return nil, err
		}
		c.Participants = nil
		out = append(out, UserChallenge{Challenge: *c, Participant: p})
	}
	return out, nil
}
