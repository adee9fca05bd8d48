package models

import (
	"time"

	"gorm.io/datatypes"
)

type TimeRange string

const (
	RangeDaily   TimeRange = "daily"
	RangeWeekly  TimeRange = "weekly"
	RangeMonthly TimeRange = "monthly"
	RangeAllTime TimeRange = "all_time"
)

// AllTimeRanges is the recalculation order used by the batch job.
var AllTimeRanges = []TimeRange{RangeAllTime, RangeMonthly, RangeWeekly, RangeDaily}

func (r TimeRange) Valid() bool {
	switch r {
	case RangeDaily, RangeWeekly, RangeMonthly, RangeAllTime:
		return true
	}
	return false
}

type Tier string

const (
	TierPlatinum Tier = "platinum"
	TierGold     Tier = "gold"
	TierSilver   Tier = "silver"
	TierBronze   Tier = "bronze"
)

type RankingEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	XP     int64  `json:"xp"`
	Level  int    `json:"level"`
	Streak int    `json:"streak"`
	Tier   Tier   `json:"tier"`
}

// Leaderboard is a cached ranking snapshot, unique per (time range, period).
type Leaderboard struct {
	ID          string                            `gorm:"primaryKey;type:uuid" json:"id"`
	TimeRange   TimeRange                         `gorm:"type:varchar(16);uniqueIndex:idx_leaderboard_period;not null" json:"time_range"`
	Period      string                            `gorm:"type:varchar(16);uniqueIndex:idx_leaderboard_period;not null" json:"period"`
	Rankings    datatypes.JSONSlice[RankingEntry] `gorm:"type:jsonb" json:"rankings"`
	GeneratedAt time.Time                         `gorm:"not null" json:"generated_at"`
}
