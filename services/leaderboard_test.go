package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"civic-gamification/models"
	"civic-gamification/services"
)

func seedRanked(t *testing.T, f *fixture, n int) {
	t.Helper()
	for i := range n {
		xp := int64(10_000 - i)
		f.profile(t, fmt.Sprintf("user-%03d", i+1), func(p *models.GameProfile) { p.TotalXP = xp })
	}
}

func TestTierForRank(t *testing.T) {
	cases := map[int]models.Tier{
		1: models.TierPlatinum, 10: models.TierPlatinum,
		11: models.TierGold, 100: models.TierGold,
		101: models.TierSilver, 500: models.TierSilver,
		501: models.TierBronze, 5000: models.TierBronze,
	}
	for rank, want := range cases {
		if got := services.TierForRank(rank); got != want {
			t.Errorf("TierForRank(%d) = %s, want %s", rank, got, want)
		}
	}
}

func TestGetUserRank_Tiers(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f, 700)

	cases := []struct {
		user string
		rank int
		tier models.Tier
	}{
		{"user-005", 5, models.TierPlatinum},
		{"user-045", 45, models.TierGold},
		{"user-300", 300, models.TierSilver},
		{"user-650", 650, models.TierBronze},
	}
	for _, c := range cases {
		r, err := f.g.Leaderboards.GetUserRank(f.ctx, c.user, models.RangeAllTime)
		if err != nil {
			t.Fatalf("GetUserRank(%s): %v", c.user, err)
		}
		if r.Rank == nil || *r.Rank != c.rank || r.Tier != c.tier {
			t.Errorf("%s = rank %v tier %s, want %d %s", c.user, r.Rank, r.Tier, c.rank, c.tier)
		}
		if r.PointsToNextRank != 1 {
			t.Errorf("%s PointsToNextRank = %d, want 1", c.user, r.PointsToNextRank)
		}
	}

	top, _ := f.g.Leaderboards.GetUserRank(f.ctx, "user-001", models.RangeAllTime)
	if top.PointsToNextRank != 0 {
		t.Errorf("leader PointsToNextRank = %d, want 0", top.PointsToNextRank)
	}
}

func TestGetUserRank_Unranked(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f, 3)
	r, err := f.g.Leaderboards.GetUserRank(f.ctx, "nobody", models.RangeWeekly)
	if err != nil {
		t.Fatalf("GetUserRank: %v", err)
	}
	if r.Rank != nil || r.Tier != models.TierBronze || r.Message != "User not ranked" {
		t.Errorf("unranked = %+v", r)
	}
}

func TestGetLeaderboard_Pagination(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f, 25)

	page, err := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeAllTime, 10, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if page.Total != 25 || len(page.Rankings) != 10 {
		t.Fatalf("page total %d len %d", page.Total, len(page.Rankings))
	}
	if first := page.Rankings[0]; first.Rank != 11 || first.UserID != "user-011" || first.Tier != models.TierGold {
		t.Errorf("first entry = %+v", first)
	}

	tail, _ := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeAllTime, 20, 10)
	if len(tail.Rankings) != 5 || tail.Rankings[4].Rank != 25 {
		t.Errorf("tail = %+v", tail.Rankings)
	}
	empty, _ := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeAllTime, 100, 10)
	if len(empty.Rankings) != 0 {
		t.Errorf("past the end = %d entries", len(empty.Rankings))
	}
	def, _ := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeAllTime, 0, 0)
	if len(def.Rankings) != 25 {
		t.Errorf("default page = %d entries", len(def.Rankings))
	}

	if _, err := f.g.Leaderboards.GetLeaderboard(f.ctx, "yearly", 0, 10); !errors.Is(err, services.ErrInvalidTimeRange) {
		t.Errorf("bad range error = %v", err)
	}
}

func TestLeaderboard_TiesKeepCreationOrder(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"first", "second", "third"} {
		f.profile(t, id, func(p *models.GameProfile) { p.TotalXP = 300 })
	}
	page, err := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeAllTime, 0, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if page.Rankings[i].UserID != want {
			t.Errorf("rank %d = %s, want %s", i+1, page.Rankings[i].UserID, want)
		}
	}
}

// A stored snapshot is served until the next recalculation.
func TestLeaderboard_ServesStoredSnapshot(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "a", func(p *models.GameProfile) { p.TotalXP = 100 })
	f.profile(t, "b", func(p *models.GameProfile) { p.TotalXP = 50 })

	if _, err := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeMonthly, 0, 10); err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	f.profile(t, "b", func(p *models.GameProfile) { p.TotalXP = 500 })

	page, _ := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeMonthly, 0, 10)
	if page.Rankings[0].UserID != "a" {
		t.Errorf("stale snapshot leader = %s, want a", page.Rankings[0].UserID)
	}

	if _, err := f.g.Leaderboards.RecalculateAll(f.ctx); err != nil {
		t.Fatalf("RecalculateAll: %v", err)
	}
	page, _ = f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeMonthly, 0, 10)
	if page.Rankings[0].UserID != "b" {
		t.Errorf("recalculated leader = %s, want b", page.Rankings[0].UserID)
	}
}

func TestPeriodKey(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, time.March, d, 12, 0, 0, 0, time.UTC) }
	minus5 := time.FixedZone("UTC-5", -5*60*60)
	late := func(d int) time.Time { return time.Date(2026, time.March, d, 23, 30, 0, 0, minus5) }
	cases := []struct {
		tr   models.TimeRange
		at   time.Time
		want string
	}{
		{models.RangeDaily, day(7), "2026-03-07"},
		{models.RangeWeekly, day(1), "2026-W1"},
		{models.RangeWeekly, day(7), "2026-W1"},
		{models.RangeWeekly, day(8), "2026-W2"},
		{models.RangeWeekly, day(31), "2026-W5"},
		{models.RangeMonthly, day(31), "2026-03"},
		{models.RangeAllTime, day(31), "all_time"},
		// 23:30 on the 7th at UTC-5 is already the 8th in UTC.
		{models.RangeDaily, late(7), "2026-03-07"},
		{models.RangeWeekly, late(7), "2026-W1"},
		{models.RangeMonthly, late(31), "2026-03"},
	}
	for _, c := range cases {
		got, err := services.PeriodKey(c.tr, c.at)
		if err != nil {
			t.Fatalf("PeriodKey(%s): %v", c.tr, err)
		}
		if got != c.want {
			t.Errorf("PeriodKey(%s, %s) = %q, want %q", c.tr, c.at.Format(time.RFC3339), got, c.want)
		}
	}

	if _, err := services.PeriodKey("hourly", day(1)); !errors.Is(err, services.ErrInvalidTimeRange) {
		t.Errorf("invalid range error = %v", err)
	}
}

type fakeArchiver struct {
	ranges []models.TimeRange
	err    error
}

func (a *fakeArchiver) Archive(_ context.Context, lb *models.Leaderboard) error {
	a.ranges = append(a.ranges, lb.TimeRange)
	return a.err
}

func TestRecalculateAll_Archives(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f, 2)
	archiver := &fakeArchiver{err: errors.New("bucket unavailable")}
	f.g.Leaderboards.Archiver = archiver

	boards, err := f.g.Leaderboards.RecalculateAll(f.ctx)
	if err != nil {
		t.Fatalf("RecalculateAll: %v", err)
	}
	if len(boards) != len(models.AllTimeRanges) {
		t.Fatalf("got %d boards", len(boards))
	}
	for i, tr := range models.AllTimeRanges {
		if boards[i].TimeRange != tr || archiver.ranges[i] != tr {
			t.Errorf("position %d = %s/%s, want %s", i, boards[i].TimeRange, archiver.ranges[i], tr)
		}
	}
	if boards[2].Period != "2026-W2" || boards[3].Period != "2026-03-10" {
		t.Errorf("periods = %s, %s", boards[2].Period, boards[3].Period)
	}
}

type fakeCache struct {
	entries map[string]*models.Leaderboard
	sets    int
}

func (c *fakeCache) Get(_ context.Context, tr models.TimeRange, period string) (*models.Leaderboard, error) {
	return c.entries[string(tr)+"/"+period], nil
}

func (c *fakeCache) Set(_ context.Context, lb *models.Leaderboard) error {
	c.sets++
	c.entries[string(lb.TimeRange)+"/"+lb.Period] = lb
	return nil
}

func TestLeaderboard_CacheFirst(t *testing.T) {
	f := newFixture(t)
	seedRanked(t, f, 2)
	cache := &fakeCache{entries: map[string]*models.Leaderboard{}}
	f.g.Leaderboards.Cache = cache

	if _, err := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeAllTime, 0, 10); err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets after cold read = %d, want 1", cache.sets)
	}

	cache.entries["all_time/all_time"] = &models.Leaderboard{
		TimeRange: models.RangeAllTime,
		Period:    "all_time",
		Rankings:  []models.RankingEntry{{Rank: 1, UserID: "cached", XP: 1, Tier: models.TierPlatinum}},
	}
	page, _ := f.g.Leaderboards.GetLeaderboard(f.ctx, models.RangeAllTime, 0, 10)
	if page.Total != 1 || page.Rankings[0].UserID != "cached" {
		t.Errorf("cache hit page = %+v", page.Rankings)
	}
}

func TestCurrentPeriod_UsesConfiguredTimezone(t *testing.T) {
	cfg := testGamificationConfig()
	cfg.Timezone = "America/Bogota"
	f := newFixtureWithConfig(t, cfg)

	// 02:00 UTC on the 11th is 21:00 on the 10th in Bogota.
	f.clock.Advance(16 * time.Hour)
	if utc := f.clock.Now().UTC().Format(time.DateOnly); utc != "2026-03-11" {
		t.Fatalf("UTC date = %s, want 2026-03-11", utc)
	}
	got, err := f.g.Leaderboards.CurrentPeriod(models.RangeDaily)
	if err != nil {
		t.Fatalf("CurrentPeriod: %v", err)
	}
	if got != "2026-03-10" {
		t.Errorf("daily period = %q, want the Bogota date 2026-03-10", got)
	}

	f.clock.Advance(3 * time.Hour)
	if next, _ := f.g.Leaderboards.CurrentPeriod(models.RangeDaily); next != "2026-03-11" {
		t.Errorf("after local midnight = %q, want 2026-03-11", next)
	}
}

func TestCurrentPeriod_MonthlyRoundTrip(t *testing.T) {
	f := newFixture(t)
	first, err := f.g.Leaderboards.CurrentPeriod(models.RangeMonthly)
	if err != nil {
		t.Fatalf("CurrentPeriod: %v", err)
	}
	f.clock.Advance(5 * 24 * time.Hour)
	second, _ := f.g.Leaderboards.CurrentPeriod(models.RangeMonthly)
	if first != second || first != "2026-03" {
		t.Errorf("same month = %q, %q", first, second)
	}
	f.clock.Advance(30 * 24 * time.Hour)
	if next, _ := f.g.Leaderboards.CurrentPeriod(models.RangeMonthly); next != "2026-04" {
		t.Errorf("next month = %q, want 2026-04", next)
	}
}
