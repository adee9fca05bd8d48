package services_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"civic-gamification/models"
	"civic-gamification/services"
)

// parallel runs fn n times at once and waits for all of them.
func parallel(n int, fn func(i int)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fn(i)
		}()
	}
	close(start)
	wg.Wait()
}

func TestAwardXP_ConcurrentRespectsDailyCap(t *testing.T) {
	f := newFixture(t)

	var awarded atomic.Int64
	parallel(50, func(int) {
		res, err := f.g.Points.AwardXP(f.ctx, "u1", 60, models.SourceComment, "comment", "")
		if err != nil {
			t.Errorf("AwardXP: %v", err)
			return
		}
		awarded.Add(res.AwardedXP)
	})

	p := f.load(t, "u1")
	if p.TotalXP != f.cfg.DailyMaxXP {
		t.Errorf("TotalXP = %d, want daily cap %d", p.TotalXP, f.cfg.DailyMaxXP)
	}
	if awarded.Load() != p.TotalXP {
		t.Errorf("results reported %d XP, profile holds %d", awarded.Load(), p.TotalXP)
	}
	var ledger int64
	for _, l := range f.logs(t, "u1") {
		ledger += l.XPAmount
	}
	if ledger != p.TotalXP {
		t.Errorf("ledger sum = %d, TotalXP = %d", ledger, p.TotalXP)
	}
	wantLevel := 1 + int(f.cfg.DailyMaxXP/f.cfg.XPPerLevel)
	if p.CurrentLevel != wantLevel || p.CurrentXPInLevel != f.cfg.DailyMaxXP%f.cfg.XPPerLevel {
		t.Errorf("level = %d (%d XP in level), want %d", p.CurrentLevel, p.CurrentXPInLevel, wantLevel)
	}
}

func TestJoinChallenge_ConcurrentJoinsOnce(t *testing.T) {
	f := newFixture(t)
	c := f.activeChallenge(t, services.MetricTypeIssuesReported, 3)

	var joined atomic.Int32
	parallel(30, func(int) {
		res, err := f.g.Challenges.JoinChallenge(f.ctx, "u1", c.ID)
		if err != nil {
			t.Errorf("JoinChallenge: %v", err)
			return
		}
		if res.Success {
			joined.Add(1)
		}
	})

	if joined.Load() != 1 {
		t.Errorf("successful joins = %d, want 1", joined.Load())
	}
	got, err := f.g.Challenges.GetChallenge(f.ctx, c.ID)
	if err != nil {
		t.Fatalf("GetChallenge: %v", err)
	}
	if len(got.Participants) != 1 {
		t.Errorf("participants = %d, want 1", len(got.Participants))
	}
	if p := f.load(t, "u1"); len(p.JoinedChallenges) != 1 {
		t.Errorf("JoinedChallenges = %v", p.JoinedChallenges)
	}
}

func TestUnlockAchievement_ConcurrentUnlocksOnce(t *testing.T) {
	f := newFixture(t)
	a := f.achievement(t, "Town Hall Guest", models.UnlockCondition{Type: models.ConditionSpecial, Target: 1, Metric: models.MetricSpecialEvent}, 40)
	f.profile(t, "u1", nil)

	var unlocked atomic.Int32
	parallel(30, func(int) {
		res, err := f.g.Achievements.UnlockAchievement(f.ctx, "u1", a.ID)
		if err != nil {
			t.Errorf("UnlockAchievement: %v", err)
			return
		}
		if res.Success {
			unlocked.Add(1)
		}
	})

	if unlocked.Load() != 1 {
		t.Errorf("successful unlocks = %d, want 1", unlocked.Load())
	}
	stored, err := f.repo.GetAchievement(f.ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAchievement: %v", err)
	}
	if stored.UnlockedCount != 1 {
		t.Errorf("UnlockedCount = %d, want 1", stored.UnlockedCount)
	}
	if p := f.load(t, "u1"); len(p.UnlockedAchievements) != 1 {
		t.Errorf("UnlockedAchievements = %v", p.UnlockedAchievements)
	}
}

func TestRecordComment_ConcurrentLedgerMatchesProfile(t *testing.T) {
	f := newFixture(t)

	parallel(40, func(i int) {
		if _, err := f.g.RecordComment(f.ctx, "u1", fmt.Sprintf("comment-%d", i)); err != nil {
			t.Errorf("RecordComment: %v", err)
		}
	})

	p := f.load(t, "u1")
	if p.TotalCommentsPosted != 40 {
		t.Errorf("TotalCommentsPosted = %d, want 40", p.TotalCommentsPosted)
	}
	var ledger int64
	for _, l := range f.logs(t, "u1") {
		ledger += l.XPAmount
	}
	if ledger != p.TotalXP || p.TotalXP > f.cfg.DailyMaxXP {
		t.Errorf("ledger sum = %d, TotalXP = %d, cap %d", ledger, p.TotalXP, f.cfg.DailyMaxXP)
	}
}
