package models

import "time"

// ConditionType is the class of counter an unlock condition compares against.
type ConditionType string

const (
	ConditionCount   ConditionType = "count"
	ConditionStreak  ConditionType = "streak"
	ConditionScore   ConditionType = "score"
	ConditionSpecial ConditionType = "special"
)

// Metric names the GameProfile counter an unlock condition reads.
type Metric string

const (
	MetricIssuesReported          Metric = "issues_reported"
	MetricUpvotesReceived         Metric = "upvotes_received"
	MetricDayStreak               Metric = "day_streak"
	MetricLongestStreak           Metric = "longest_streak"
	MetricLevelReached            Metric = "level_reached"
	MetricCommentsPosted          Metric = "comments_posted"
	MetricResolutionContributions Metric = "resolution_contributions"
	MetricSpecialEvent            Metric = "special_event"
)

// AllMetrics lists every metric kind; the achievement engine must handle each one.
var AllMetrics = []Metric{
	MetricIssuesReported,
	MetricUpvotesReceived,
	MetricDayStreak,
	MetricLongestStreak,
	MetricLevelReached,
	MetricCommentsPosted,
	MetricResolutionContributions,
	MetricSpecialEvent,
}

type UnlockCondition struct {
	Type   ConditionType `json:"type" gorm:"type:varchar(16);not null"`
	Target int64         `json:"target" gorm:"not null"`
	Metric Metric        `json:"metric" gorm:"type:varchar(32);not null"`
}

// Achievement is an admin-managed catalog entry.
type Achievement struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // slug of Name, e.g. "pothole-patrol"
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	Category    string `gorm:"type:varchar(32);default:'reporting'" json:"category"`
	Rarity      string `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	XPReward    int64  `gorm:"default:0;check:xp_reward >= 0" json:"xp_reward"`

	UnlockCondition UnlockCondition `gorm:"embedded;embeddedPrefix:condition_" json:"unlock_condition"`

	// Aggregate across all users, only ever incremented.
	UnlockedCount int64 `gorm:"default:0" json:"unlocked_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultAchievements is the catalog seeded into a fresh deployment.
var DefaultAchievements = []Achievement{
	{
		Name: "First Report", Description: "Reported your first issue", Icon: "📍",
		Category: "reporting", Rarity: "common", XPReward: 25,
		UnlockCondition: UnlockCondition{Type: ConditionCount, Target: 1, Metric: MetricIssuesReported},
	},
	{
		Name: "Pothole Patrol", Description: "Reported 10 issues", Icon: "🚧",
		Category: "reporting", Rarity: "common", XPReward: 100,
		UnlockCondition: UnlockCondition{Type: ConditionCount, Target: 10, Metric: MetricIssuesReported},
	},
	{
		Name: "Neighbourhood Watch", Description: "Reported 50 issues", Icon: "🏘️",
		Category: "reporting", Rarity: "rare", XPReward: 300,
		UnlockCondition: UnlockCondition{Type: ConditionCount, Target: 50, Metric: MetricIssuesReported},
	},
	{
		Name: "Voice of the Street", Description: "Posted 50 comments", Icon: "💬",
		Category: "engagement", Rarity: "common", XPReward: 100,
		UnlockCondition: UnlockCondition{Type: ConditionCount, Target: 50, Metric: MetricCommentsPosted},
	},
	{
		Name: "Trusted Reporter", Description: "Received 100 helpful votes", Icon: "👍",
		Category: "community", Rarity: "rare", XPReward: 250,
		UnlockCondition: UnlockCondition{Type: ConditionCount, Target: 100, Metric: MetricUpvotesReceived},
	},
	{
		Name: "Week of Service", Description: "Kept a 7 day activity streak", Icon: "🔥",
		Category: "streaks", Rarity: "common", XPReward: 150,
		UnlockCondition: UnlockCondition{Type: ConditionStreak, Target: 7, Metric: MetricDayStreak},
	},
	{
		Name: "Civic Habit", Description: "Kept a 30 day activity streak", Icon: "📅",
		Category: "streaks", Rarity: "epic", XPReward: 500,
		UnlockCondition: UnlockCondition{Type: ConditionStreak, Target: 30, Metric: MetricLongestStreak},
	},
	{
		Name: "Rising Advocate", Description: "Reached level 10", Icon: "⭐",
		Category: "progression", Rarity: "rare", XPReward: 200,
		UnlockCondition: UnlockCondition{Type: ConditionScore, Target: 10, Metric: MetricLevelReached},
	},
	{
		Name: "City Champion", Description: "Reached level 25", Icon: "🏆",
		Category: "progression", Rarity: "epic", XPReward: 500,
		UnlockCondition: UnlockCondition{Type: ConditionScore, Target: 25, Metric: MetricLevelReached},
	},
	{
		Name: "Fixer", Description: "Helped resolve 5 issues", Icon: "🛠️",
		Category: "resolution", Rarity: "rare", XPReward: 250,
		UnlockCondition: UnlockCondition{Type: ConditionCount, Target: 5, Metric: MetricResolutionContributions},
	},
	{
		Name: "Town Hall Guest", Description: "Attended a special civic event", Icon: "🎟️",
		Category: "events", Rarity: "legendary", XPReward: 0,
		UnlockCondition: UnlockCondition{Type: ConditionSpecial, Target: 1, Metric: MetricSpecialEvent},
	},
}
