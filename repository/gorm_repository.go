package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civic-gamification/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepository struct {
	DB *gorm.DB

	clock clockwork.Clock
	inTx  bool
}

// NewGormRepository stamps profiles and gorm's auto timestamps from clock.
func NewGormRepository(db *gorm.DB, clock clockwork.Clock) *GormRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GormRepository{DB: db.Session(&gorm.Session{NowFunc: clock.Now}), clock: clock}
}

// AutoMigrate creates or updates every gamification table.
func (r *GormRepository) AutoMigrate() error {
	return r.DB.AutoMigrate(
		&models.GameProfile{},
		&models.PointsLog{},
		&models.Achievement{},
		&models.Challenge{},
		&models.ChallengeParticipant{},
		&models.Leaderboard{},
	)
}

func (r *GormRepository) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{DB: tx, clock: r.clock, inTx: true})
	})
}

// locked adds SELECT ... FOR UPDATE when running inside a transaction.
func (r *GormRepository) locked(ctx context.Context) *gorm.DB {
	db := r.DB.WithContext(ctx)
	if r.inTx {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *GormRepository) GetProfile(ctx context.Context, userID string) (*models.GameProfile, error) {
	var prog models.GameProfile
	if err := r.locked(ctx).Where("user_id = ?", userID).First(&prog).Error; err != nil {
		return nil, notFound(err)
	}
	return &prog, nil
}

// GetOrCreateProfile inserts a fresh profile unless one exists, then loads it (locked in a tx).
func (r *GormRepository) GetOrCreateProfile(ctx context.Context, userID string) (*models.GameProfile, error) {
	fresh := newProfile(userID, r.clock.Now())
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(fresh).Error
	if err != nil {
		return nil, fmt.Errorf("create profile for %s: %w", userID, err)
	}
	return r.GetProfile(ctx, userID)
}

func (r *GormRepository) SaveProfile(ctx context.Context, profile *models.GameProfile) error {
	return r.DB.WithContext(ctx).Save(profile).Error
}

func (r *GormRepository) TopProfilesByXP(ctx context.Context, limit int) ([]models.GameProfile, error) {
	var profiles []models.GameProfile
	err := r.DB.WithContext(ctx).
		Order("total_xp DESC").
		Order("created_at ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

func (r *GormRepository) AppendPointsLog(ctx context.Context, entry *models.PointsLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.DB.WithContext(ctx).Create(entry).Error
}

func (r *GormRepository) SumXPSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).
		Model(&models.PointsLog{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Select("COALESCE(SUM(xp_amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *GormRepository) ListPointsLogs(ctx context.Context, userID string, limit, offset int) ([]models.PointsLog, error) {
	var logs []models.PointsLog
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&logs).Error
	return logs, err
}

func (r *GormRepository) CreateAchievement(ctx context.Context, achievement *models.Achievement) error {
	if achievement.ID == "" {
		achievement.ID = uuid.NewString()
	}
	err := r.DB.WithContext(ctx).Create(achievement).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *GormRepository) GetAchievement(ctx context.Context, id string) (*models.Achievement, error) {
	var a models.Achievement
	if err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *GormRepository) GetAchievementByCode(ctx context.Context, code string) (*models.Achievement, error) {
	var a models.Achievement
	if err := r.DB.WithContext(ctx).First(&a, "code = ?", code).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *GormRepository) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := r.DB.WithContext(ctx).Order("created_at ASC").Find(&achievements).Error
	return achievements, err
}

func (r *GormRepository) IncrementAchievementUnlocks(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Achievement{}).
		Where("id = ?", id).
		UpdateColumn("unlocked_count", gorm.Expr("unlocked_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) CreateChallenge(ctx context.Context, challenge *models.Challenge) error {
	if challenge.ID == "" {
		challenge.ID = uuid.NewString()
	}
	return r.DB.WithContext(ctx).Omit("Participants").Create(challenge).Error
}

func (r *GormRepository) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var c models.Challenge
	err := r.DB.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("joined_date ASC") }).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *GormRepository) ListChallenges(ctx context.Context, status models.ChallengeStatus) ([]models.Challenge, error) {
	var challenges []models.Challenge
	db := r.DB.WithContext(ctx).Order("start_date ASC")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Find(&challenges).Error
	return challenges, err
}

func (r *GormRepository) UpdateChallengeStatus(ctx context.Context, id string, status models.ChallengeStatus) error {
	res := r.DB.WithContext(ctx).Model(&models.Challenge{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) IncrementChallengeCompletions(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("id = ?", id).
		UpdateColumn("completion_count", gorm.Expr("completion_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) AddParticipant(ctx context.Context, participant *models.ChallengeParticipant) (bool, error) {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(participant)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) GetParticipant(ctx context.Context, challengeID, userID string) (*models.ChallengeParticipant, error) {
	var p models.ChallengeParticipant
	err := r.locked(ctx).Where("challenge_id = ? AND user_id = ?", challengeID, userID).First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *GormRepository) SaveParticipant(ctx context.Context, participant *models.ChallengeParticipant) error {
	return r.DB.WithContext(ctx).Save(participant).Error
}

func (r *GormRepository) ListParticipations(ctx context.Context, userID string) ([]models.ChallengeParticipant, error) {
	var parts []models.ChallengeParticipant
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("joined_date DESC").Find(&parts).Error
	return parts, err
}

func (r *GormRepository) GetLeaderboard(ctx context.Context, timeRange models.TimeRange, period string) (*models.Leaderboard, error) {
	var lb models.Leaderboard
	err := r.DB.WithContext(ctx).Where("time_range = ? AND period = ?", timeRange, period).First(&lb).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &lb, nil
}

// UpsertLeaderboard replaces the rankings of the (time range, period) row in one statement.
func (r *GormRepository) UpsertLeaderboard(ctx context.Context, leaderboard *models.Leaderboard) error {
	if leaderboard.ID == "" {
		leaderboard.ID = uuid.NewString()
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "time_range"}, {Name: "period"}},
			DoUpdates: clause.AssignmentColumns([]string{"rankings", "generated_at"}),
		}).
		Create(leaderboard).Error
}

func newProfile(userID string, now time.Time) *models.GameProfile {
	return &models.GameProfile{
		ID:                   uuid.NewString(),
		UserID:               userID,
		CurrentLevel:         1,
		Title:                "Rookie",
		LastActivityDate:     now,
		UnlockedAchievements: []string{},
		JoinedChallenges:     []string{},
		CompletedChallenges:  []string{},
	}
}
