package services

import (
	"encoding/json"
	"fmt"
	"time"

	"civic-gamification/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectXPAwarded                = "gamification.xp_awarded"
	SubjectLevelUp                  = "gamification.level_up"
	SubjectAchievementUnlocked      = "gamification.achievement_unlocked"
	SubjectChallengeCompleted       = "gamification.challenge_completed"
	SubjectLeaderboardsRecalculated = "gamification.leaderboards_recalculated"
)

type XPAwardedEvent struct {
	UserID     string          `json:"user_id"`
	AwardedXP  int64           `json:"awarded_xp"`
	Source     models.XPSource `json:"source"`
	Reason     string          `json:"reason"`
	TotalXP    int64           `json:"total_xp"`
	Level      int             `json:"level"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type LevelUpEvent struct {
	UserID     string    `json:"user_id"`
	NewLevel   int       `json:"new_level"`
	NewTitle   string    `json:"new_title"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AchievementUnlockedEvent struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	XPReward      int64     `json:"xp_reward"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type ChallengeCompletedEvent struct {
	UserID      string    `json:"user_id"`
	ChallengeID string    `json:"challenge_id"`
	Title       string    `json:"title"`
	XPReward    int64     `json:"xp_reward"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type LeaderboardSummary struct {
	TimeRange models.TimeRange `json:"time_range"`
	Period    string           `json:"period"`
	Entries   int              `json:"entries"`
}

type LeaderboardsRecalculatedEvent struct {
	Leaderboards []LeaderboardSummary `json:"leaderboards"`
	OccurredAt   time.Time            `json:"occurred_at"`
}

// Publisher sends domain events to other services.
type Publisher interface {
	Publish(subject string, event any) error
}

// NATSPublisher publishes JSON-encoded events on a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSPublisher(conn *nats.Conn, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

func (p *NATSPublisher) Publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject), zap.Int("bytes", len(data)))
	return nil
}

// NopPublisher drops every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }
