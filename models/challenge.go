package models

import (
	"time"

	"gorm.io/datatypes"
)

type ChallengeStatus string

const (
	ChallengeUpcoming  ChallengeStatus = "upcoming"
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeArchived  ChallengeStatus = "archived"
)

func (s ChallengeStatus) Valid() bool {
	switch s {
	case ChallengeUpcoming, ChallengeActive, ChallengeCompleted, ChallengeArchived:
		return true
	}
	return false
}

type ProgressMetric struct {
	Type   string `json:"type" gorm:"type:varchar(32);not null"` // e.g. issues_reported, comments_posted
	Target int64  `json:"target" gorm:"not null"`
}

// BonusReward is an extra XP grant attached to a challenge. Condition is informational only.
type BonusReward struct {
	Condition string `json:"condition"`
	XPBonus   int64  `json:"xp_bonus"`
}

// Challenge is a time-boxed, admin-managed goal users can join.
type Challenge struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string          `gorm:"not null" json:"title"`
	Description string          `json:"description"`
	Category    string          `gorm:"type:varchar(32)" json:"category"`
	Difficulty  string          `gorm:"type:varchar(16);default:'medium'" json:"difficulty"` // easy, medium, hard, expert
	XPReward    int64           `gorm:"default:0" json:"xp_reward"`
	StartDate   time.Time       `gorm:"not null" json:"start_date"`
	EndDate     time.Time       `gorm:"not null" json:"end_date"`
	Status      ChallengeStatus `gorm:"type:varchar(16);default:'upcoming';index" json:"status"`

	ProgressMetric ProgressMetric `gorm:"embedded;embeddedPrefix:metric_" json:"progress_metric"`

	BonusRewards    datatypes.JSONSlice[BonusReward] `gorm:"type:jsonb" json:"bonus_rewards"`
	CompletionCount int64                            `gorm:"default:0" json:"completion_count"`

	// Relationship: one Challenge has many participants
	Participants []ChallengeParticipant `gorm:"foreignKey:ChallengeID" json:"participants,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsOpen reports whether now falls inside [StartDate, EndDate].
func (c *Challenge) IsOpen(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// TotalReward is the base reward plus every declared bonus.
func (c *Challenge) TotalReward() int64 {
	total := c.XPReward
	for _, b := range c.BonusRewards {
		total += b.XPBonus
	}
	return total
}

// ChallengeParticipant is one user's progress in a challenge.
type ChallengeParticipant struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID   string     `gorm:"uniqueIndex:idx_challenge_user;not null" json:"challenge_id"`
	UserID        string     `gorm:"uniqueIndex:idx_challenge_user;index;not null" json:"user_id"`
	JoinedDate    time.Time  `gorm:"not null" json:"joined_date"`
	Progress      int64      `gorm:"default:0" json:"progress"`
	Completed     bool       `gorm:"default:false" json:"completed"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
}
