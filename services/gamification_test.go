package services_test

import (
	"errors"
	"testing"
	"time"

	"civic-gamification/models"
	"civic-gamification/services"
)

func seedCatalog(t *testing.T, f *fixture) {
	t.Helper()
	if _, err := f.g.Achievements.SeedAchievements(f.ctx); err != nil {
		t.Fatalf("SeedAchievements: %v", err)
	}
}

func TestRecordIssueReported_FirstReport(t *testing.T) {
	f := newFixture(t)
	seedCatalog(t, f)

	out, err := f.g.RecordIssueReported(f.ctx, "u1", "issue-1", 100)
	if err != nil {
		t.Fatalf("RecordIssueReported: %v", err)
	}
	// 50 base + 50 quality bonus + 25 for First Report
	if got := out.AwardedXP(); got != 125 {
		t.Errorf("AwardedXP = %d, want 125", got)
	}
	if len(out.UnlockedAchievements) != 1 || out.UnlockedAchievements[0].Name != "First Report" {
		t.Errorf("unlocked = %+v", out.UnlockedAchievements)
	}

	p := f.load(t, "u1")
	if p.TotalIssuesReported != 1 || p.TotalXP != 125 || p.CurrentLevel != 2 || p.CurrentXPInLevel != 25 {
		t.Errorf("profile = issues %d xp %d level %d in-level %d", p.TotalIssuesReported, p.TotalXP, p.CurrentLevel, p.CurrentXPInLevel)
	}

	sources := map[models.XPSource]int64{}
	for _, l := range f.logs(t, "u1") {
		sources[l.Source] += l.XPAmount
	}
	if sources[models.SourceIssueReport] != 50 || sources[models.SourceQualityBonus] != 50 || sources[models.SourceAchievementUnlock] != 25 {
		t.Errorf("ledger by source = %v", sources)
	}

	if n := f.events.count(services.SubjectXPAwarded); n != 3 {
		t.Errorf("xp_awarded events = %d, want 3", n)
	}
	if n := f.events.count(services.SubjectLevelUp); n != 1 {
		t.Errorf("level_up events = %d, want 1", n)
	}
	if n := f.events.count(services.SubjectAchievementUnlocked); n != 1 {
		t.Errorf("achievement_unlocked events = %d, want 1", n)
	}

	again, err := f.g.RecordIssueReported(f.ctx, "u1", "issue-2", 0)
	if err != nil {
		t.Fatalf("RecordIssueReported: %v", err)
	}
	if got := again.AwardedXP(); got != 25 || len(again.UnlockedAchievements) != 0 {
		t.Errorf("second report awarded %d unlocked %d", got, len(again.UnlockedAchievements))
	}
}

func TestRecord_StreakBonusNextDay(t *testing.T) {
	f := newFixture(t)

	first, err := f.g.RecordComment(f.ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("RecordComment: %v", err)
	}
	if first.Streak.Increased || first.AwardedXP() != 5 {
		t.Errorf("first comment = streak %+v xp %d", first.Streak, first.AwardedXP())
	}

	f.clock.Advance(25 * time.Hour)
	next, err := f.g.RecordComment(f.ctx, "u1", "c2")
	if err != nil {
		t.Fatalf("RecordComment: %v", err)
	}
	if !next.Streak.Increased || next.Streak.CurrentStreak != 1 {
		t.Errorf("streak = %+v", next.Streak)
	}
	if got := next.AwardedXP(); got != 15 {
		t.Errorf("AwardedXP = %d, want 5 + 10 streak bonus", got)
	}

	f.clock.Advance(72 * time.Hour)
	lapsed, _ := f.g.RecordComment(f.ctx, "u1", "c3")
	if !lapsed.Streak.Reset || lapsed.Streak.CurrentStreak != 0 || lapsed.Streak.LongestStreak != 1 {
		t.Errorf("lapsed streak = %+v", lapsed.Streak)
	}
}

func TestRecordHelpfulVotes_CapOnRunningTotal(t *testing.T) {
	f := newFixture(t)

	out, err := f.g.RecordHelpfulVotes(f.ctx, "author", "post-1", 8, 15)
	if err != nil {
		t.Fatalf("RecordHelpfulVotes: %v", err)
	}
	if got := out.AwardedXP(); got != 4 {
		t.Errorf("AwardedXP = %d, want 4", got)
	}
	if p := f.load(t, "author"); p.TotalUpvotesReceived != 7 {
		t.Errorf("TotalUpvotesReceived = %d, want 7", p.TotalUpvotesReceived)
	}

	out, _ = f.g.RecordHelpfulVotes(f.ctx, "author", "post-1", 15, 30)
	if got := out.AwardedXP(); got != 0 || len(out.Awards) != 0 {
		t.Errorf("past the cap awarded %d in %d awards", got, len(out.Awards))
	}

	if _, err := f.g.RecordHelpfulVotes(f.ctx, "author", "post-1", 5, 5); !errors.Is(err, services.ErrInvalidAmount) {
		t.Errorf("non-growing votes error = %v", err)
	}
}

func TestRecordResolution_CountsContribution(t *testing.T) {
	f := newFixture(t)
	out, err := f.g.RecordResolutionContribution(f.ctx, "u1", "issue-9")
	if err != nil {
		t.Fatalf("RecordResolutionContribution: %v", err)
	}
	if out.AwardedXP() != f.cfg.IssueResolutionXP {
		t.Errorf("AwardedXP = %d", out.AwardedXP())
	}
	if p := f.load(t, "u1"); p.IssueResolutionContribution != 1 {
		t.Errorf("IssueResolutionContribution = %d", p.IssueResolutionContribution)
	}
	if _, err := f.g.RecordResolutionContribution(f.ctx, "", "issue-9"); !errors.Is(err, services.ErrMissingUser) {
		t.Errorf("empty user error = %v", err)
	}
}

func TestRecordComment_CompletesChallenge(t *testing.T) {
	f := newFixture(t)
	c := f.activeChallenge(t, services.MetricTypeCommentsPosted, 2, models.BonusReward{Condition: "early_bird", XPBonus: 30})
	other := f.activeChallenge(t, services.MetricTypeIssuesReported, 1)
	for _, id := range []string{c.ID, other.ID} {
		if _, err := f.g.Challenges.JoinChallenge(f.ctx, "u1", id); err != nil {
			t.Fatalf("JoinChallenge: %v", err)
		}
	}

	first, err := f.g.RecordComment(f.ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("RecordComment: %v", err)
	}
	if len(first.ChallengeProgress) != 1 || first.ChallengeProgress[0].Progress != 1 || len(first.CompletedChallenges) != 0 {
		t.Fatalf("first comment = %+v", first)
	}

	second, err := f.g.RecordComment(f.ctx, "u1", "c2")
	if err != nil {
		t.Fatalf("RecordComment: %v", err)
	}
	if len(second.CompletedChallenges) != 1 || !second.CompletedChallenges[0].Success {
		t.Fatalf("completed = %+v", second.CompletedChallenges)
	}
	if got := second.AwardedXP(); got != 5+200+30 {
		t.Errorf("AwardedXP = %d, want %d", got, 5+200+30)
	}
	if n := f.events.count(services.SubjectChallengeCompleted); n != 1 {
		t.Errorf("challenge_completed events = %d", n)
	}

	third, _ := f.g.RecordComment(f.ctx, "u1", "c3")
	if len(third.ChallengeProgress) != 0 || len(third.CompletedChallenges) != 0 {
		t.Errorf("completed challenge still advancing: %+v", third)
	}

	p := f.load(t, "u1")
	if !p.HasCompleted(c.ID) || p.HasCompleted(other.ID) {
		t.Errorf("CompletedChallenges = %v", p.CompletedChallenges)
	}

	// explicit completion after the threshold path pays nothing more
	out, err := f.g.CompleteChallenge(f.ctx, "u1", c.ID)
	if err != nil {
		t.Fatalf("CompleteChallenge: %v", err)
	}
	if out.AwardedXP() != 0 || out.CompletedChallenges[0].Success {
		t.Errorf("repeat completion = %+v", out)
	}
}

func TestReportChallengeProgress(t *testing.T) {
	f := newFixture(t)
	c := f.activeChallenge(t, "volunteer_hours", 10)
	if _, err := f.g.Challenges.JoinChallenge(f.ctx, "u1", c.ID); err != nil {
		t.Fatalf("JoinChallenge: %v", err)
	}
	out, err := f.g.ReportChallengeProgress(f.ctx, "u1", c.ID, 12)
	if err != nil {
		t.Fatalf("ReportChallengeProgress: %v", err)
	}
	if out.ChallengeProgress[0].Progress != 12 || out.AwardedXP() != 200 {
		t.Errorf("outcome = progress %d xp %d", out.ChallengeProgress[0].Progress, out.AwardedXP())
	}
}

func TestGrantAdminXP(t *testing.T) {
	f := newFixture(t)

	if _, err := f.g.GrantAdminXP(f.ctx, "", 10, "x"); !errors.Is(err, services.ErrMissingUser) {
		t.Errorf("empty user error = %v", err)
	}
	if _, err := f.g.GrantAdminXP(f.ctx, "u1", 0, "x"); !errors.Is(err, services.ErrInvalidAmount) {
		t.Errorf("zero amount error = %v", err)
	}

	out, err := f.g.GrantAdminXP(f.ctx, "u1", 1000, "Community cleanup day")
	if err != nil {
		t.Fatalf("GrantAdminXP: %v", err)
	}
	if got := out.AwardedXP(); got != f.cfg.DailyMaxXP {
		t.Errorf("AwardedXP = %d, want daily cap %d", got, f.cfg.DailyMaxXP)
	}
	if out.Streak != nil {
		t.Errorf("admin grant touched the streak: %+v", out.Streak)
	}
	p := f.load(t, "u1")
	if p.CurrentLevel != 6 || p.CurrentStreak != 0 {
		t.Errorf("profile level %d streak %d", p.CurrentLevel, p.CurrentStreak)
	}
	logs := f.logs(t, "u1")
	if len(logs) != 1 || logs[0].Source != models.SourceAdminAward || logs[0].Reason != "Community cleanup day" {
		t.Errorf("ledger = %+v", logs)
	}
}

func TestUnlockAchievement_PaysReward(t *testing.T) {
	f := newFixture(t)
	a := f.achievement(t, "Town Hall Guest", models.UnlockCondition{
		Type: models.ConditionSpecial, Target: 1, Metric: models.MetricSpecialEvent,
	}, 40)
	f.profile(t, "u1", nil)

	res, out, err := f.g.UnlockAchievement(f.ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("UnlockAchievement: %v", err)
	}
	if !res.Success || out.AwardedXP() != 40 {
		t.Errorf("unlock = %+v xp %d", res, out.AwardedXP())
	}
	res, out, _ = f.g.UnlockAchievement(f.ctx, "u1", a.ID)
	if res.Success || out.AwardedXP() != 0 {
		t.Errorf("second unlock = %+v xp %d", res, out.AwardedXP())
	}
}

func TestRecalculateLeaderboards_PublishesSummary(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", func(p *models.GameProfile) { p.TotalXP = 10 })

	boards, err := f.g.RecalculateLeaderboards(f.ctx)
	if err != nil {
		t.Fatalf("RecalculateLeaderboards: %v", err)
	}
	if len(boards) != 4 {
		t.Errorf("boards = %d, want 4", len(boards))
	}
	if n := f.events.count(services.SubjectLeaderboardsRecalculated); n != 1 {
		t.Errorf("recalculated events = %d, want 1", n)
	}
}
