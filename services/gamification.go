package services

import (
	"context"
	"fmt"

	"civic-gamification/config"
	"civic-gamification/models"
	"civic-gamification/repository"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Challenge progress metric types fed by platform activity.
const (
	MetricTypeIssuesReported  = "issues_reported"
	MetricTypeCommentsPosted  = "comments_posted"
	MetricTypeUpvotesReceived = "upvotes_received"
	MetricTypeIssuesResolved  = "issues_resolved"
)

// Outcome collects everything one activity caused.
type Outcome struct {
	Awards               []*AwardResult       `json:"awards"`
	Streak               *StreakResult        `json:"streak,omitempty"`
	UnlockedAchievements []models.Achievement `json:"unlocked_achievements"`
	CompletedChallenges  []CompleteResult     `json:"completed_challenges"`
	ChallengeProgress    []ProgressResult     `json:"challenge_progress,omitempty"`
}

// AwardedXP sums the XP actually granted across all awards.
func (o *Outcome) AwardedXP() int64 {
	var total int64
	for _, a := range o.Awards {
		total += a.AwardedXP
	}
	return total
}

// Gamification is the caller the engines leave reward application to. It turns
// platform activity into counter updates, streaks, XP awards, unlocks, challenge
// completions and events.
type Gamification struct {
	Points       *PointsEngine
	Achievements *AchievementEngine
	Challenges   *ChallengeEngine
	Leaderboards *LeaderboardEngine

	events Publisher
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewGamification(repo repository.Repository, cfg config.Gamification, clock clockwork.Clock, events Publisher, logger *zap.Logger) *Gamification {
	if events == nil {
		events = NopPublisher{}
	}
	return &Gamification{
		Points:       NewPointsEngine(repo, cfg, clock, logger.Named("points")),
		Achievements: NewAchievementEngine(repo, logger.Named("achievements")),
		Challenges:   NewChallengeEngine(repo, cfg, clock, logger.Named("challenges")),
		Leaderboards: NewLeaderboardEngine(repo, cfg, clock, logger.Named("leaderboard")),
		events:       events,
		clock:        clock,
		logger:       logger,
	}
}

func (g *Gamification) publish(subject string, event any) {
	if err := g.events.Publish(subject, event); err != nil {
		g.logger.Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// award grants XP and emits the matching events. Non-positive amounts are skipped.
func (g *Gamification) award(ctx context.Context, out *Outcome, userID string, amount int64, source models.XPSource, reason, sourceID string) error {
	if amount <= 0 {
		return nil
	}
	res, err := g.Points.AwardXP(ctx, userID, amount, source, reason, sourceID)
	if err != nil {
		return err
	}
	out.Awards = append(out.Awards, res)
	if !res.Success {
		return nil
	}

	now := g.clock.Now()
	g.publish(SubjectXPAwarded, XPAwardedEvent{
		UserID:     userID,
		AwardedXP:  res.AwardedXP,
		Source:     source,
		Reason:     reason,
		TotalXP:    res.Profile.TotalXP,
		Level:      res.NewLevel,
		OccurredAt: now,
	})
	if res.LeveledUp {
		g.publish(SubjectLevelUp, LevelUpEvent{UserID: userID, NewLevel: res.NewLevel, NewTitle: res.NewTitle, OccurredAt: now})
	}
	return nil
}

type activity struct {
	userID   string
	bump     func(p *models.GameProfile)
	xp       []xpGrant
	metric   string
	progress int64
}

type xpGrant struct {
	amount   int64
	source   models.XPSource
	reason   string
	sourceID string
}

// record runs the full activity pipeline. The streak is updated before any award
// so the 24h window is measured from the previous activity.
func (g *Gamification) record(ctx context.Context, act activity) (*Outcome, error) {
	if act.userID == "" {
		return nil, ErrMissingUser
	}
	out := &Outcome{}
	if _, err := g.Points.AdjustCounters(ctx, act.userID, act.bump); err != nil {
		return nil, err
	}

	streak, err := g.Points.UpdateStreak(ctx, act.userID)
	if err != nil {
		return nil, err
	}
	out.Streak = streak

	for _, grant := range act.xp {
		if err := g.award(ctx, out, act.userID, grant.amount, grant.source, grant.reason, grant.sourceID); err != nil {
			return nil, err
		}
	}
	if streak.Increased {
		bonus := g.Points.CalculateStreakBonusXP(streak.CurrentStreak)
		reason := fmt.Sprintf("%d day streak", streak.CurrentStreak)
		if err := g.award(ctx, out, act.userID, bonus, models.SourceStreakBonus, reason, ""); err != nil {
			return nil, err
		}
	}

	if act.metric != "" && act.progress > 0 {
		progress, err := g.Challenges.AdvanceMatching(ctx, act.userID, act.metric, act.progress)
		if err != nil {
			return nil, err
		}
		out.ChallengeProgress = progress
		for _, p := range progress {
			if !p.Completed {
				continue
			}
			if err := g.completeChallenge(ctx, out, act.userID, p.ChallengeID); err != nil {
				return nil, err
			}
		}
	}

	if err := g.unlockAchievements(ctx, out, act.userID); err != nil {
		return nil, err
	}
	return out, nil
}

// unlockAchievements repeats the catalog scan until nothing new unlocks, since
// achievement rewards can raise the level that other achievements test.
func (g *Gamification) unlockAchievements(ctx context.Context, out *Outcome, userID string) error {
	for {
		unlocked, err := g.Achievements.CheckAndUnlockAchievements(ctx, userID)
		if err != nil {
			return err
		}
		if len(unlocked) == 0 {
			return nil
		}
		for _, a := range unlocked {
			out.UnlockedAchievements = append(out.UnlockedAchievements, a)
			g.publish(SubjectAchievementUnlocked, AchievementUnlockedEvent{
				UserID:        userID,
				AchievementID: a.ID,
				Code:          a.Code,
				Name:          a.Name,
				XPReward:      a.XPReward,
				OccurredAt:    g.clock.Now(),
			})
			if err := g.award(ctx, out, userID, a.XPReward, models.SourceAchievementUnlock, "Achievement unlocked: "+a.Name, a.ID); err != nil {
				return err
			}
		}
	}
}

func (g *Gamification) completeChallenge(ctx context.Context, out *Outcome, userID, challengeID string) error {
	res, err := g.Challenges.CompleteChallenge(ctx, userID, challengeID)
	if err != nil {
		return err
	}
	out.CompletedChallenges = append(out.CompletedChallenges, *res)
	if !res.Success {
		return nil
	}
	g.publish(SubjectChallengeCompleted, ChallengeCompletedEvent{
		UserID:      userID,
		ChallengeID: challengeID,
		Title:       res.Challenge.Title,
		XPReward:    res.XPReward,
		OccurredAt:  g.clock.Now(),
	})
	return g.award(ctx, out, userID, res.XPReward, models.SourceChallengeComplete, "Challenge completed: "+res.Challenge.Title, challengeID)
}

// RecordIssueReported awards issue XP scaled by report quality. XP above the
// base amount is booked separately as a quality bonus.
func (g *Gamification) RecordIssueReported(ctx context.Context, userID, issueID string, qualityScore float64) (*Outcome, error) {
	total := g.Points.CalculateIssueXP(qualityScore)
	base := min(total, g.Points.cfg.BaseIssueXP)
	return g.record(ctx, activity{
		userID: userID,
		bump:   func(p *models.GameProfile) { p.TotalIssuesReported++ },
		xp: []xpGrant{
			{amount: base, source: models.SourceIssueReport, reason: "Issue reported", sourceID: issueID},
			{amount: total - base, source: models.SourceQualityBonus, reason: "High quality report", sourceID: issueID},
		},
		metric:   MetricTypeIssuesReported,
		progress: 1,
	})
}

func (g *Gamification) RecordComment(ctx context.Context, userID, commentID string) (*Outcome, error) {
	return g.record(ctx, activity{
		userID: userID,
		bump:   func(p *models.GameProfile) { p.TotalCommentsPosted++ },
		xp: []xpGrant{
			{amount: g.Points.cfg.CommentXP, source: models.SourceComment, reason: "Comment posted", sourceID: commentID},
		},
		metric:   MetricTypeCommentsPosted,
		progress: 1,
	})
}

// RecordHelpfulVotes credits the post author for a vote count moving from
// priorVotes to newVotes. The per-post cap applies to the post's running total.
func (g *Gamification) RecordHelpfulVotes(ctx context.Context, authorID, postID string, priorVotes, newVotes int64) (*Outcome, error) {
	if newVotes <= priorVotes {
		return nil, fmt.Errorf("%w: vote count must grow (%d -> %d)", ErrInvalidAmount, priorVotes, newVotes)
	}
	delta := newVotes - priorVotes
	xp := g.Points.CalculateHelpfulVotesXP(newVotes) - g.Points.CalculateHelpfulVotesXP(priorVotes)
	return g.record(ctx, activity{
		userID: authorID,
		bump:   func(p *models.GameProfile) { p.TotalUpvotesReceived += delta },
		xp: []xpGrant{
			{amount: xp, source: models.SourceHelpfulVote, reason: "Helpful votes received", sourceID: postID},
		},
		metric:   MetricTypeUpvotesReceived,
		progress: delta,
	})
}

func (g *Gamification) RecordResolutionContribution(ctx context.Context, userID, issueID string) (*Outcome, error) {
	return g.record(ctx, activity{
		userID: userID,
		bump:   func(p *models.GameProfile) { p.IssueResolutionContribution++ },
		xp: []xpGrant{
			{amount: g.Points.cfg.IssueResolutionXP, source: models.SourceIssueReport, reason: "Issue resolution contribution", sourceID: issueID},
		},
		metric:   MetricTypeIssuesResolved,
		progress: 1,
	})
}

// GrantAdminXP is a manual award. It does not count as activity for streaks.
func (g *Gamification) GrantAdminXP(ctx context.Context, userID string, amount int64, reason string) (*Outcome, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidAmount, amount)
	}
	out := &Outcome{}
	if err := g.award(ctx, out, userID, amount, models.SourceAdminAward, reason, ""); err != nil {
		return nil, err
	}
	if err := g.unlockAchievements(ctx, out, userID); err != nil {
		return nil, err
	}
	g.logger.Info("admin xp granted", zap.String("user_id", userID), zap.Int64("amount", amount))
	return out, nil
}

// ReportChallengeProgress advances one challenge and pays out if it completes.
func (g *Gamification) ReportChallengeProgress(ctx context.Context, userID, challengeID string, amount int64) (*Outcome, error) {
	res, err := g.Challenges.UpdateChallengeProgress(ctx, userID, challengeID, amount)
	if err != nil {
		return nil, err
	}
	out := &Outcome{ChallengeProgress: []ProgressResult{*res}}
	if res.Completed {
		if err := g.completeChallenge(ctx, out, userID, challengeID); err != nil {
			return nil, err
		}
		if err := g.unlockAchievements(ctx, out, userID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CompleteChallenge is the explicit completion path.
func (g *Gamification) CompleteChallenge(ctx context.Context, userID, challengeID string) (*Outcome, error) {
	out := &Outcome{}
	if err := g.completeChallenge(ctx, out, userID, challengeID); err != nil {
		return nil, err
	}
	if err := g.unlockAchievements(ctx, out, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// UnlockAchievement grants an achievement by hand and pays its reward.
func (g *Gamification) UnlockAchievement(ctx context.Context, userID, achievementID string) (*UnlockResult, *Outcome, error) {
	res, err := g.Achievements.UnlockAchievement(ctx, userID, achievementID)
	if err != nil {
		return nil, nil, err
	}
	out := &Outcome{}
	if !res.Success {
		return res, out, nil
	}
	out.UnlockedAchievements = append(out.UnlockedAchievements, *res.Achievement)
	g.publish(SubjectAchievementUnlocked, AchievementUnlockedEvent{
		UserID:        userID,
		AchievementID: res.Achievement.ID,
		Code:          res.Achievement.Code,
		Name:          res.Achievement.Name,
		XPReward:      res.XPReward,
		OccurredAt:    g.clock.Now(),
	})
	if err := g.award(ctx, out, userID, res.XPReward, models.SourceAchievementUnlock, "Achievement unlocked: "+res.Achievement.Name, res.Achievement.ID); err != nil {
		return nil, nil, err
	}
	return res, out, nil
}

// CheckAchievements scans the catalog for the user and pays every new unlock.
func (g *Gamification) CheckAchievements(ctx context.Context, userID string) (*Outcome, error) {
	out := &Outcome{}
	if err := g.unlockAchievements(ctx, out, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// RecalculateLeaderboards recomputes every time range and announces the result.
func (g *Gamification) RecalculateLeaderboards(ctx context.Context) ([]*models.Leaderboard, error) {
	boards, err := g.Leaderboards.RecalculateAll(ctx)
	if err != nil {
		return nil, err
	}
	ev := LeaderboardsRecalculatedEvent{OccurredAt: g.clock.Now()}
	for _, lb := range boards {
		ev.Leaderboards = append(ev.Leaderboards, LeaderboardSummary{TimeRange: lb.TimeRange, Period: lb.Period, Entries: len(lb.Rankings)})
	}
	g.publish(SubjectLeaderboardsRecalculated, ev)
	return boards, nil
}
