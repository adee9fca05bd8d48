package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Gamification holds the tunable XP economy. Every engine reads from it.
type Gamification struct {
	BaseIssueXP           int64   `env:"BASE_ISSUE_XP" envDefault:"50"`
	QualityMultiplierMin  float64 `env:"QUALITY_MULTIPLIER_MIN" envDefault:"0.5"`
	QualityMultiplierMax  float64 `env:"QUALITY_MULTIPLIER_MAX" envDefault:"2.0"`
	CommentXP             int64   `env:"COMMENT_XP" envDefault:"5"`
	IssueResolutionXP     int64   `env:"ISSUE_RESOLUTION_XP" envDefault:"100"`
	HelpfulVoteXP         int64   `env:"HELPFUL_VOTE_XP" envDefault:"2"`
	HelpfulVoteCapPerPost int64   `env:"HELPFUL_VOTE_CAP_PER_POST" envDefault:"10"`
	XPPerLevel            int64   `env:"XP_PER_LEVEL" envDefault:"100"`
	MaxLevel              int     `env:"MAX_LEVEL" envDefault:"50"`
	DailyMaxXP            int64   `env:"DAILY_MAX_XP" envDefault:"500"`
	StreakBonusXP         int64   `env:"STREAK_BONUS_XP" envDefault:"10"`
	StreakExpiryHours     float64 `env:"STREAK_EXPIRY_HOURS" envDefault:"48"`

	ChallengeXPEasy   int64 `env:"CHALLENGE_XP_EASY" envDefault:"50"`
	ChallengeXPMedium int64 `env:"CHALLENGE_XP_MEDIUM" envDefault:"100"`
	ChallengeXPHard   int64 `env:"CHALLENGE_XP_HARD" envDefault:"200"`
	ChallengeXPExpert int64 `env:"CHALLENGE_XP_EXPERT" envDefault:"400"`

	LeaderboardMaxEntries int `env:"LEADERBOARD_MAX_ENTRIES" envDefault:"1000"`
	LeaderboardPageSize   int `env:"LEADERBOARD_PAGE_SIZE" envDefault:"50"`

	// Timezone decides where "today" starts for the daily cap and the period keys.
	Timezone string `env:"TIMEZONE" envDefault:"Local"`
}

// Config is the full service configuration.
type Config struct {
	AppEnv         string `env:"APP_ENV" envDefault:"production"`
	Port           string `env:"PORT" envDefault:"5300"`
	StoreDriver    string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	ServiceToken   string `env:"GAME_SERVICE_TOKEN"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	RedisAddr           string        `env:"REDIS_ADDR"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB" envDefault:"0"`
	LeaderboardCacheTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"15m"`

	NATSURL string `env:"NATS_URL"`

	R2AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket          string `env:"R2_BUCKET_NAME"`

	LeaderboardRefreshInterval time.Duration `env:"LEADERBOARD_REFRESH_INTERVAL" envDefault:"15m"`
	ChallengeStatusInterval    time.Duration `env:"CHALLENGE_STATUS_INTERVAL" envDefault:"1m"`

	Gamification Gamification
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults returns the configuration built purely from envDefault tags.
func Defaults() Config {
	var cfg Config
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL environment variable not set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return c.Gamification.Validate()
}

func (g Gamification) Validate() error {
	switch {
	case g.XPPerLevel <= 0:
		return errors.New("XP_PER_LEVEL must be positive")
	case g.MaxLevel < 1:
		return errors.New("MAX_LEVEL must be at least 1")
	case g.DailyMaxXP <= 0:
		return errors.New("DAILY_MAX_XP must be positive")
	case g.QualityMultiplierMin < 0 || g.QualityMultiplierMin > g.QualityMultiplierMax:
		return fmt.Errorf("quality multiplier range [%v, %v] is invalid", g.QualityMultiplierMin, g.QualityMultiplierMax)
	case g.StreakExpiryHours < 24:
		return errors.New("STREAK_EXPIRY_HOURS must be at least 24")
	case g.HelpfulVoteCapPerPost < 0:
		return errors.New("HELPFUL_VOTE_CAP_PER_POST must not be negative")
	case g.LeaderboardMaxEntries < 1 || g.LeaderboardPageSize < 1:
		return errors.New("leaderboard sizes must be positive")
	}
	if _, err := g.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. "Local" and "" mean the process zone.
func (g Gamification) Location() (*time.Location, error) {
	if g.Timezone == "" || g.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE %q: %w", g.Timezone, err)
	}
	return loc, nil
}

// ChallengeXPForDifficulty maps a difficulty to its XP tier. Unknown difficulties get the medium tier.
func (g Gamification) ChallengeXPForDifficulty(difficulty string) int64 {
	switch difficulty {
	case "easy":
		return g.ChallengeXPEasy
	case "hard":
		return g.ChallengeXPHard
	case "expert":
		return g.ChallengeXPExpert
	default:
		return g.ChallengeXPMedium
	}
}

// R2Enabled reports whether leaderboard archiving is configured.
func (c Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2Bucket != ""
}
