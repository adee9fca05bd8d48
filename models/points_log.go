package models

import "time"

// XPSource names what earned a points ledger entry.
type XPSource string

const (
	SourceIssueReport       XPSource = "issue_report"
	SourceComment           XPSource = "comment"
	SourceHelpfulVote       XPSource = "helpful_vote"
	SourceChallengeComplete XPSource = "challenge_complete"
	SourceAchievementUnlock XPSource = "achievement_unlock"
	SourceStreakBonus       XPSource = "streak_bonus"
	SourceQualityBonus      XPSource = "quality_bonus"
	SourceAdminAward        XPSource = "admin_award"
)

func (s XPSource) Valid() bool {
	switch s {
	case SourceIssueReport, SourceComment, SourceHelpfulVote, SourceChallengeComplete,
		SourceAchievementUnlock, SourceStreakBonus, SourceQualityBonus, SourceAdminAward:
		return true
	}
	return false
}

// LevelSnapshot is the {level, xpInLevel, totalXP} triple stored before and after an award.
type LevelSnapshot struct {
	Level     int   `json:"level"`
	XPInLevel int64 `json:"xp_in_level"`
	TotalXP   int64 `json:"total_xp"`
}

// PointsLog is an immutable ledger row, written once per successful award.
type PointsLog struct {
	ID       string   `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string   `gorm:"index:idx_points_user_created,priority:1;not null" json:"user_id"`
	XPAmount int64    `gorm:"not null;check:xp_amount > 0" json:"xp_amount"`
	Source   XPSource `gorm:"type:varchar(32);not null" json:"source"`
	SourceID *string  `gorm:"index" json:"source_id,omitempty"`
	Reason   string   `json:"reason"`

	Before LevelSnapshot `gorm:"embedded;embeddedPrefix:before_" json:"before"`
	After  LevelSnapshot `gorm:"embedded;embeddedPrefix:after_" json:"after"`

	CreatedAt time.Time `gorm:"index:idx_points_user_created,priority:2;not null" json:"created_at"`
}

func (PointsLog) TableName() string { return "points_logs" }
