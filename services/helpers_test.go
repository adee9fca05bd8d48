package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"civic-gamification/config"
	"civic-gamification/models"
	"civic-gamification/repository"
	"civic-gamification/services"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap/zaptest"
)

// 2026-03-10 10:00 UTC, a Tuesday in the second week of the month.
var epoch = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	cfg    config.Gamification
	clock  *clockwork.FakeClock
	repo   *repository.MemoryRepository
	events *recordingPublisher
	g      *services.Gamification
}

func testGamificationConfig() config.Gamification {
	cfg := config.Defaults().Gamification
	cfg.Timezone = "UTC"
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testGamificationConfig())
}

func newFixtureWithConfig(t *testing.T, cfg config.Gamification) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	repo := repository.NewMemoryRepository(clock)
	events := &recordingPublisher{}
	return &fixture{
		ctx:    context.Background(),
		cfg:    cfg,
		clock:  clock,
		repo:   repo,
		events: events,
		g:      services.NewGamification(repo, cfg, clock, events, zaptest.NewLogger(t)),
	}
}

// profile creates (or loads) a profile and applies fn to it.
func (f *fixture) profile(t *testing.T, userID string, fn func(p *models.GameProfile)) *models.GameProfile {
	t.Helper()
	p, err := f.repo.GetOrCreateProfile(f.ctx, userID)
	if err != nil {
		t.Fatalf("GetOrCreateProfile(%s): %v", userID, err)
	}
	if fn != nil {
		fn(p)
		if err := f.repo.SaveProfile(f.ctx, p); err != nil {
			t.Fatalf("SaveProfile(%s): %v", userID, err)
		}
	}
	return p
}

func (f *fixture) load(t *testing.T, userID string) *models.GameProfile {
	t.Helper()
	p, err := f.repo.GetProfile(f.ctx, userID)
	if err != nil {
		t.Fatalf("GetProfile(%s): %v", userID, err)
	}
	return p
}

func (f *fixture) logs(t *testing.T, userID string) []models.PointsLog {
	t.Helper()
	logs, err := f.repo.ListPointsLogs(f.ctx, userID, 0, 0)
	if err != nil {
		t.Fatalf("ListPointsLogs(%s): %v", userID, err)
	}
	return logs
}

func (f *fixture) achievement(t *testing.T, name string, cond models.UnlockCondition, reward int64) *models.Achievement {
	t.Helper()
	a := &models.Achievement{Name: name, XPReward: reward, UnlockCondition: cond}
	if err := f.g.Achievements.CreateAchievement(f.ctx, a); err != nil {
		t.Fatalf("CreateAchievement(%s): %v", name, err)
	}
	return a
}

// activeChallenge starts an hour ago and runs for a week.
func (f *fixture) activeChallenge(t *testing.T, metric string, target int64, bonuses ...models.BonusReward) *models.Challenge {
	t.Helper()
	now := f.clock.Now()
	c := &models.Challenge{
		Title:          "Clean streets " + metric,
		Difficulty:     "hard",
		StartDate:      now.Add(-time.Hour),
		EndDate:        now.Add(7 * 24 * time.Hour),
		ProgressMetric: models.ProgressMetric{Type: metric, Target: target},
		BonusRewards:   bonuses,
	}
	if err := f.g.Challenges.CreateChallenge(f.ctx, c); err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	return c
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []any
}

func (p *recordingPublisher) Publish(subject string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}
