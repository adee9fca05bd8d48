package services

import (
	"fmt"
	"time"

	"civic-gamification/models"
)

// PeriodKey names the leaderboard period containing t, using t's calendar date
// in t's own location. LeaderboardEngine passes times in the configured
// TIMEZONE, so a daily key can differ from the UTC date.
// Weekly keys use the week of the month (ceil(day/7)), not the ISO week.
func PeriodKey(timeRange models.TimeRange, t time.Time) (string, error) {
	switch timeRange {
	case models.RangeDaily:
		return t.Format(time.DateOnly), nil
	case models.RangeWeekly:
		return fmt.Sprintf("%d-W%d", t.Year(), (t.Day()+6)/7), nil
	case models.RangeMonthly:
		return t.Format("2006-01"), nil
	case models.RangeAllTime:
		return string(models.RangeAllTime), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, timeRange)
}
