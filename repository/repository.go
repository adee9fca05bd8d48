// Package repository is the persistence boundary for the gamification aggregates.
// Engines depend on Repository only; the gorm implementation backs production and
// the memory implementation backs tests and STORE_DRIVER=memory.
package repository

import (
	"context"
	"errors"
	"time"

	"civic-gamification/models"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique key (achievement code or name) is already taken.
var ErrDuplicate = errors.New("duplicate record")

// Repository is the single owner of GameProfile and its satellite records.
type Repository interface {
	// Transaction runs fn atomically. Profile and participant reads inside fn hold
	// a lock until fn returns, so check-then-write sequences cannot interleave.
	Transaction(ctx context.Context, fn func(repo Repository) error) error

	GetProfile(ctx context.Context, userID string) (*models.GameProfile, error)
	GetOrCreateProfile(ctx context.Context, userID string) (*models.GameProfile, error)
	SaveProfile(ctx context.Context, profile *models.GameProfile) error
	// TopProfilesByXP returns up to limit profiles ordered by total XP, highest first.
	TopProfilesByXP(ctx context.Context, limit int) ([]models.GameProfile, error)

	AppendPointsLog(ctx context.Context, entry *models.PointsLog) error
	SumXPSince(ctx context.Context, userID string, since time.Time) (int64, error)
	ListPointsLogs(ctx context.Context, userID string, limit, offset int) ([]models.PointsLog, error)

	CreateAchievement(ctx context.Context, achievement *models.Achievement) error
	GetAchievement(ctx context.Context, id string) (*models.Achievement, error)
	GetAchievementByCode(ctx context.Context, code string) (*models.Achievement, error)
	ListAchievements(ctx context.Context) ([]models.Achievement, error)
	IncrementAchievementUnlocks(ctx context.Context, id string) error

	CreateChallenge(ctx context.Context, challenge *models.Challenge) error
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
	ListChallenges(ctx context.Context, status models.ChallengeStatus) ([]models.Challenge, error)
	UpdateChallengeStatus(ctx context.Context, id string, status models.ChallengeStatus) error
	IncrementChallengeCompletions(ctx context.Context, id string) error
	// AddParticipant inserts a participant; created is false when the user had already joined.
	AddParticipant(ctx context.Context, participant *models.ChallengeParticipant) (created bool, err error)
	GetParticipant(ctx context.Context, challengeID, userID string) (*models.ChallengeParticipant, error)
	SaveParticipant(ctx context.Context, participant *models.ChallengeParticipant) error
	ListParticipations(ctx context.Context, userID string) ([]models.ChallengeParticipant, error)

	GetLeaderboard(ctx context.Context, timeRange models.TimeRange, period string) (*models.Leaderboard, error)
	UpsertLeaderboard(ctx context.Context, leaderboard *models.Leaderboard) error
}
