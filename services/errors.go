package services

import "errors"

// Validation and not-found failures. Policy outcomes (daily cap, already unlocked,
// already joined, already completed) are reported in result structs instead.
var (
	ErrMissingUser         = errors.New("user id is required")
	ErrInvalidAmount       = errors.New("xp amount must be positive")
	ErrInvalidSource       = errors.New("unknown xp source")
	ErrInvalidProgress     = errors.New("progress amount must be positive")
	ErrProfileNotFound     = errors.New("game profile not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrNotJoined           = errors.New("user has not joined this challenge")
	ErrInvalidTimeRange    = errors.New("invalid leaderboard time range")
	ErrInvalidStatus       = errors.New("invalid challenge status")
	ErrInvalidChallenge    = errors.New("invalid challenge definition")
	ErrInvalidAchievement  = errors.New("invalid achievement definition")
)
