package services_test

import (
	"errors"
	"testing"

	"civic-gamification/models"
	"civic-gamification/services"
)

func countCond(metric models.Metric, target int64) models.UnlockCondition {
	return models.UnlockCondition{Type: models.ConditionCount, Target: target, Metric: metric}
}

func TestMetricRulesCoverEveryMetric(t *testing.T) {
	for _, m := range models.AllMetrics {
		if !services.HasMetricRule(m) {
			t.Errorf("no rule for metric %q", m)
		}
	}
}

func TestCheckUnlockCondition(t *testing.T) {
	f := newFixture(t)
	p := &models.GameProfile{
		TotalIssuesReported:         12,
		TotalUpvotesReceived:        3,
		TotalCommentsPosted:         50,
		IssueResolutionContribution: 5,
		CurrentStreak:               7,
		LongestStreak:               9,
		CurrentLevel:                10,
	}
	tests := []struct {
		name string
		cond models.UnlockCondition
		want bool
	}{
		{"count reached", countCond(models.MetricIssuesReported, 10), true},
		{"count exact", countCond(models.MetricCommentsPosted, 50), true},
		{"count short", countCond(models.MetricUpvotesReceived, 4), false},
		{"resolutions", countCond(models.MetricResolutionContributions, 5), true},
		{"streak", models.UnlockCondition{Type: models.ConditionStreak, Target: 7, Metric: models.MetricDayStreak}, true},
		{"longest streak", models.UnlockCondition{Type: models.ConditionStreak, Target: 10, Metric: models.MetricLongestStreak}, false},
		{"score", models.UnlockCondition{Type: models.ConditionScore, Target: 10, Metric: models.MetricLevelReached}, true},
		{"type mismatch", models.UnlockCondition{Type: models.ConditionStreak, Target: 1, Metric: models.MetricIssuesReported}, false},
		{"score as count", countCond(models.MetricLevelReached, 1), false},
		{"unknown metric", countCond(models.Metric("bogus"), 1), false},
		{"special event", models.UnlockCondition{Type: models.ConditionSpecial, Target: 1, Metric: models.MetricSpecialEvent}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.g.Achievements.CheckUnlockCondition(p, tt.cond); got != tt.want {
				t.Errorf("CheckUnlockCondition(%+v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestGetAchievementProgress(t *testing.T) {
	f := newFixture(t)
	a := f.achievement(t, "Pothole Patrol", countCond(models.MetricIssuesReported, 10), 100)
	f.profile(t, "u1", func(p *models.GameProfile) { p.TotalIssuesReported = 7 })

	got, err := f.g.Achievements.GetAchievementProgress(f.ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("GetAchievementProgress: %v", err)
	}
	if got.IsUnlocked || got.CurrentProgress != 7 || got.Target != 10 || got.ProgressPercent != 70 {
		t.Errorf("progress = %+v", got)
	}

	f.profile(t, "u1", func(p *models.GameProfile) { p.TotalIssuesReported = 35 })
	got, _ = f.g.Achievements.GetAchievementProgress(f.ctx, "u1", a.ID)
	if got.ProgressPercent != 100 {
		t.Errorf("over target percent = %d, want 100", got.ProgressPercent)
	}
}

func TestUnlockAchievement_Idempotent(t *testing.T) {
	f := newFixture(t)
	a := f.achievement(t, "Town Hall Guest", models.UnlockCondition{Type: models.ConditionSpecial, Target: 1, Metric: models.MetricSpecialEvent}, 40)
	f.profile(t, "u1", nil)

	first, err := f.g.Achievements.UnlockAchievement(f.ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("UnlockAchievement: %v", err)
	}
	if !first.Success || first.XPReward != 40 {
		t.Fatalf("first unlock = %+v", first)
	}
	second, err := f.g.Achievements.UnlockAchievement(f.ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("UnlockAchievement: %v", err)
	}
	if second.Success || second.XPReward != 0 {
		t.Errorf("second unlock = %+v", second)
	}

	if p := f.load(t, "u1"); len(p.UnlockedAchievements) != 1 {
		t.Errorf("UnlockedAchievements = %v", p.UnlockedAchievements)
	}
	stored, _ := f.repo.GetAchievement(f.ctx, a.ID)
	if stored.UnlockedCount != 1 {
		t.Errorf("UnlockedCount = %d, want 1", stored.UnlockedCount)
	}
	// The engine leaves XP to the caller.
	if p := f.load(t, "u1"); p.TotalXP != 0 {
		t.Errorf("TotalXP = %d, engine must not award XP itself", p.TotalXP)
	}
}

func TestUnlockAchievement_NotFound(t *testing.T) {
	f := newFixture(t)
	a := f.achievement(t, "First Report", countCond(models.MetricIssuesReported, 1), 25)

	if _, err := f.g.Achievements.UnlockAchievement(f.ctx, "ghost", a.ID); !errors.Is(err, services.ErrProfileNotFound) {
		t.Errorf("missing profile error = %v", err)
	}
	f.profile(t, "u1", nil)
	if _, err := f.g.Achievements.UnlockAchievement(f.ctx, "u1", "nope"); !errors.Is(err, services.ErrAchievementNotFound) {
		t.Errorf("missing achievement error = %v", err)
	}
}

func TestCheckAndUnlockAchievements(t *testing.T) {
	f := newFixture(t)
	first := f.achievement(t, "First Report", countCond(models.MetricIssuesReported, 1), 25)
	ten := f.achievement(t, "Pothole Patrol", countCond(models.MetricIssuesReported, 10), 100)
	talk := f.achievement(t, "Voice", countCond(models.MetricCommentsPosted, 2), 10)
	f.profile(t, "u1", func(p *models.GameProfile) {
		p.TotalIssuesReported = 3
		p.TotalCommentsPosted = 2
	})

	unlocked, err := f.g.Achievements.CheckAndUnlockAchievements(f.ctx, "u1")
	if err != nil {
		t.Fatalf("CheckAndUnlockAchievements: %v", err)
	}
	if len(unlocked) != 2 || unlocked[0].ID != first.ID || unlocked[1].ID != talk.ID {
		t.Fatalf("unlocked = %+v", unlocked)
	}
	p := f.load(t, "u1")
	if !p.HasUnlocked(first.ID) || !p.HasUnlocked(talk.ID) || p.HasUnlocked(ten.ID) {
		t.Errorf("UnlockedAchievements = %v", p.UnlockedAchievements)
	}

	again, err := f.g.Achievements.CheckAndUnlockAchievements(f.ctx, "u1")
	if err != nil {
		t.Fatalf("CheckAndUnlockAchievements: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second pass unlocked %d achievements", len(again))
	}
}

func TestSpecialEventHook(t *testing.T) {
	f := newFixture(t)
	a := f.achievement(t, "Town Hall Guest", models.UnlockCondition{Type: models.ConditionSpecial, Target: 1, Metric: models.MetricSpecialEvent}, 0)
	f.profile(t, "vip", nil)

	f.g.Achievements.SpecialEvent = func(p *models.GameProfile, _ models.UnlockCondition) bool {
		return p.UserID == "vip"
	}
	unlocked, err := f.g.Achievements.CheckAndUnlockAchievements(f.ctx, "vip")
	if err != nil {
		t.Fatalf("CheckAndUnlockAchievements: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0].ID != a.ID {
		t.Errorf("unlocked = %+v", unlocked)
	}
}

func TestCreateAchievement_Validation(t *testing.T) {
	f := newFixture(t)
	bad := []*models.Achievement{
		{Name: "", UnlockCondition: countCond(models.MetricIssuesReported, 1)},
		{Name: "Negative", XPReward: -1, UnlockCondition: countCond(models.MetricIssuesReported, 1)},
		{Name: "Zero target", UnlockCondition: countCond(models.MetricIssuesReported, 0)},
		{Name: "Bad metric", UnlockCondition: countCond(models.Metric("karma"), 1)},
		{Name: "Mismatch", UnlockCondition: countCond(models.MetricDayStreak, 3)},
	}
	for _, a := range bad {
		if err := f.g.Achievements.CreateAchievement(f.ctx, a); !errors.Is(err, services.ErrInvalidAchievement) {
			t.Errorf("CreateAchievement(%q) error = %v, want ErrInvalidAchievement", a.Name, err)
		}
	}

	a := f.achievement(t, "Neighbourhood Watch", countCond(models.MetricIssuesReported, 50), 300)
	if a.Code != "neighbourhood-watch" {
		t.Errorf("Code = %q", a.Code)
	}
	dup := &models.Achievement{Name: "Neighbourhood Watch", UnlockCondition: countCond(models.MetricIssuesReported, 5)}
	if err := f.g.Achievements.CreateAchievement(f.ctx, dup); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestSeedAchievements_Idempotent(t *testing.T) {
	f := newFixture(t)
	created, err := f.g.Achievements.SeedAchievements(f.ctx)
	if err != nil {
		t.Fatalf("SeedAchievements: %v", err)
	}
	if created != len(models.DefaultAchievements) {
		t.Errorf("created %d, want %d", created, len(models.DefaultAchievements))
	}
	created, err = f.g.Achievements.SeedAchievements(f.ctx)
	if err != nil {
		t.Fatalf("SeedAchievements again: %v", err)
	}
	if created != 0 {
		t.Errorf("second seed created %d", created)
	}
	list, _ := f.g.Achievements.ListAchievements(f.ctx)
	if len(list) != len(models.DefaultAchievements) {
		t.Errorf("catalog has %d entries", len(list))
	}
}

func TestUserAchievements(t *testing.T) {
	f := newFixture(t)
	f.achievement(t, "First Report", countCond(models.MetricIssuesReported, 1), 25)
	f.achievement(t, "Pothole Patrol", countCond(models.MetricIssuesReported, 10), 100)
	f.profile(t, "u1", func(p *models.GameProfile) { p.TotalIssuesReported = 4 })

	list, err := f.g.Achievements.UserAchievements(f.ctx, "u1")
	if err != nil {
		t.Fatalf("UserAchievements: %v", err)
	}
	if len(list) != 2 || list[0].ProgressPercent != 100 || list[1].ProgressPercent != 40 {
		t.Errorf("list = %+v", list)
	}
}
