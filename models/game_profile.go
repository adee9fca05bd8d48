package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GameProfile is the per-user gamification aggregate (one row per user).
type GameProfile struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // links to auth service

	// Core progression
	TotalXP          int64  `json:"total_xp" gorm:"default:0"`
	CurrentLevel     int    `json:"current_level" gorm:"default:1"`
	CurrentXPInLevel int64  `json:"current_xp_in_level" gorm:"default:0"`
	Title            string `json:"title" gorm:"type:varchar(32);default:'Rookie'"`

	// Streaks
	CurrentStreak    int       `json:"current_streak" gorm:"default:0"`
	LongestStreak    int       `json:"longest_streak" gorm:"default:0"`
	LastActivityDate time.Time `json:"last_activity_date"`

	// Activity counters, bumped by events from the issue/engagement services
	TotalIssuesReported         int64 `json:"total_issues_reported" gorm:"default:0"`
	TotalCommentsPosted         int64 `json:"total_comments_posted" gorm:"default:0"`
	TotalUpvotesReceived        int64 `json:"total_upvotes_received" gorm:"default:0"`
	IssueResolutionContribution int64 `json:"issue_resolution_contribution" gorm:"default:0"`

	UnlockedAchievements datatypes.JSONSlice[string] `json:"unlocked_achievements" gorm:"type:jsonb"`
	JoinedChallenges     datatypes.JSONSlice[string] `json:"joined_challenges" gorm:"type:jsonb"`
	CompletedChallenges  datatypes.JSONSlice[string] `json:"completed_challenges" gorm:"type:jsonb"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (p *GameProfile) HasUnlocked(achievementID string) bool {
	return slices.Contains(p.UnlockedAchievements, achievementID)
}

func (p *GameProfile) HasJoined(challengeID string) bool {
	return slices.Contains(p.JoinedChallenges, challengeID)
}

func (p *GameProfile) HasCompleted(challengeID string) bool {
	return slices.Contains(p.CompletedChallenges, challengeID)
}

// Snapshot captures the progression fields recorded in the points ledger.
func (p *GameProfile) Snapshot() LevelSnapshot {
	return LevelSnapshot{Level: p.CurrentLevel, XPInLevel: p.CurrentXPInLevel, TotalXP: p.TotalXP}
}

// Clone returns a deep copy; the id sets are not shared with the original.
func (p *GameProfile) Clone() *GameProfile {
	c := *p
	c.UnlockedAchievements = slices.Clone(p.UnlockedAchievements)
	c.JoinedChallenges = slices.Clone(p.JoinedChallenges)
	c.CompletedChallenges = slices.Clone(p.CompletedChallenges)
	return &c
}
