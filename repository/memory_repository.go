package repository

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"civic-gamification/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MemoryRepository keeps everything in process. Every call, transactional or
// not, holds txMu, so a rollback only ever undoes its own transaction's writes
// and plain reads never see uncommitted state.
type MemoryRepository struct {
	txMu  sync.Mutex
	store *memoryStore
}

func NewMemoryRepository(clock clockwork.Clock) *MemoryRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryRepository{store: &memoryStore{
		clock:        clock,
		profiles:     map[string]*models.GameProfile{},
		leaderboards: map[string]models.Leaderboard{},
	}}
}

// memoryStore is the unlocked data. It is only reached with txMu held.
type memoryStore struct {
	clock clockwork.Clock

	profiles     map[string]*models.GameProfile // by user id
	profileOrder []string
	logs         []models.PointsLog
	achievements []models.Achievement
	challenges   []models.Challenge
	participants []models.ChallengeParticipant
	leaderboards map[string]models.Leaderboard
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = memoryTx{}
)

// memoryTx is the repository handed to Transaction callbacks.
type memoryTx struct {
	*memoryStore
}

func (t memoryTx) Transaction(_ context.Context, fn func(repo Repository) error) error {
	return fn(t)
}

func (m *memoryStore) snapshot() *memoryStore {
	profiles := make(map[string]*models.GameProfile, len(m.profiles))
	for k, p := range m.profiles {
		profiles[k] = p.Clone()
	}
	challenges := make([]models.Challenge, len(m.challenges))
	for i, c := range m.challenges {
		challenges[i] = cloneChallenge(c)
	}
	return &memoryStore{
		clock:        m.clock,
		profiles:     profiles,
		profileOrder: slices.Clone(m.profileOrder),
		logs:         slices.Clone(m.logs),
		achievements: slices.Clone(m.achievements),
		challenges:   challenges,
		participants: slices.Clone(m.participants),
		leaderboards: maps.Clone(m.leaderboards),
	}
}

func (m *MemoryRepository) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	saved := m.store.snapshot()
	if err := fn(memoryTx{m.store}); err != nil {
		*m.store = *saved
		return err
	}
	return nil
}

func (m *MemoryRepository) GetProfile(ctx context.Context, userID string) (*models.GameProfile, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.GetProfile(ctx, userID)
}

func (m *MemoryRepository) GetOrCreateProfile(ctx context.Context, userID string) (*models.GameProfile, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.GetOrCreateProfile(ctx, userID)
}

func (m *MemoryRepository) SaveProfile(ctx context.Context, profile *models.GameProfile) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.SaveProfile(ctx, profile)
}

func (m *MemoryRepository) TopProfilesByXP(ctx context.Context, limit int) ([]models.GameProfile, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.TopProfilesByXP(ctx, limit)
}

func (m *MemoryRepository) AppendPointsLog(ctx context.Context, entry *models.PointsLog) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.AppendPointsLog(ctx, entry)
}

func (m *MemoryRepository) SumXPSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.SumXPSince(ctx, userID, since)
}

func (m *MemoryRepository) ListPointsLogs(ctx context.Context, userID string, limit, offset int) ([]models.PointsLog, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.ListPointsLogs(ctx, userID, limit, offset)
}

func (m *MemoryRepository) CreateAchievement(ctx context.Context, achievement *models.Achievement) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.CreateAchievement(ctx, achievement)
}

func (m *MemoryRepository) GetAchievement(ctx context.Context, id string) (*models.Achievement, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.GetAchievement(ctx, id)
}

func (m *MemoryRepository) GetAchievementByCode(ctx context.Context, code string) (*models.Achievement, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.GetAchievementByCode(ctx, code)
}

func (m *MemoryRepository) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.ListAchievements(ctx)
}

func (m *MemoryRepository) IncrementAchievementUnlocks(ctx context.Context, id string) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.IncrementAchievementUnlocks(ctx, id)
}

func (m *MemoryRepository) CreateChallenge(ctx context.Context, challenge *models.Challenge) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.CreateChallenge(ctx, challenge)
}

func (m *MemoryRepository) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.GetChallenge(ctx, id)
}

func (m *MemoryRepository) ListChallenges(ctx context.Context, status models.ChallengeStatus) ([]models.Challenge, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.ListChallenges(ctx, status)
}

func (m *MemoryRepository) UpdateChallengeStatus(ctx context.Context, id string, status models.ChallengeStatus) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.UpdateChallengeStatus(ctx, id, status)
}

func (m *MemoryRepository) IncrementChallengeCompletions(ctx context.Context, id string) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.IncrementChallengeCompletions(ctx, id)
}

func (m *MemoryRepository) AddParticipant(ctx context.Context, participant *models.ChallengeParticipant) (bool, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.AddParticipant(ctx, participant)
}

func (m *MemoryRepository) GetParticipant(ctx context.Context, challengeID, userID string) (*models.ChallengeParticipant, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.GetParticipant(ctx, challengeID, userID)
}

func (m *MemoryRepository) SaveParticipant(ctx context.Context, participant *models.ChallengeParticipant) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.SaveParticipant(ctx, participant)
}

func (m *MemoryRepository) ListParticipations(ctx context.Context, userID string) ([]models.ChallengeParticipant, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.ListParticipations(ctx, userID)
}

func (m *MemoryRepository) GetLeaderboard(ctx context.Context, timeRange models.TimeRange, period string) (*models.Leaderboard, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.GetLeaderboard(ctx, timeRange, period)
}

func (m *MemoryRepository) UpsertLeaderboard(ctx context.Context, leaderboard *models.Leaderboard) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.store.UpsertLeaderboard(ctx, leaderboard)
}

func (m *memoryStore) GetProfile(_ context.Context, userID string) (*models.GameProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memoryStore) GetOrCreateProfile(ctx context.Context, userID string) (*models.GameProfile, error) {
	if _, ok := m.profiles[userID]; !ok {
		p := newProfile(userID, m.clock.Now())
		p.CreatedAt = p.LastActivityDate
		p.UpdatedAt = p.LastActivityDate
		m.profiles[userID] = p
		m.profileOrder = append(m.profileOrder, userID)
	}
	return m.GetProfile(ctx, userID)
}

func (m *memoryStore) SaveProfile(_ context.Context, profile *models.GameProfile) error {
	stored := profile.Clone()
	stored.UpdatedAt = m.clock.Now()
	if _, ok := m.profiles[profile.UserID]; !ok {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = stored.UpdatedAt
		}
		m.profileOrder = append(m.profileOrder, profile.UserID)
	}
	m.profiles[profile.UserID] = stored
	return nil
}

// TopProfilesByXP sorts stably so equal XP keeps creation order.
func (m *memoryStore) TopProfilesByXP(_ context.Context, limit int) ([]models.GameProfile, error) {
	out := make([]models.GameProfile, 0, len(m.profileOrder))
	for _, id := range m.profileOrder {
		out = append(out, *m.profiles[id].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalXP > out[j].TotalXP })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) AppendPointsLog(_ context.Context, entry *models.PointsLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.clock.Now()
	}
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memoryStore) SumXPSince(_ context.Context, userID string, since time.Time) (int64, error) {
	var total int64
	for _, l := range m.logs {
		if l.UserID == userID && !l.CreatedAt.Before(since) {
			total += l.XPAmount
		}
	}
	return total, nil
}

func (m *memoryStore) ListPointsLogs(_ context.Context, userID string, limit, offset int) ([]models.PointsLog, error) {
	var out []models.PointsLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].UserID == userID {
			out = append(out, m.logs[i])
		}
	}
	return page(out, limit, offset), nil
}

func (m *memoryStore) CreateAchievement(_ context.Context, achievement *models.Achievement) error {
	for _, a := range m.achievements {
		if a.Code == achievement.Code || a.Name == achievement.Name {
			return ErrDuplicate
		}
	}
	if achievement.ID == "" {
		achievement.ID = uuid.NewString()
	}
	now := m.clock.Now()
	achievement.CreatedAt, achievement.UpdatedAt = now, now
	m.achievements = append(m.achievements, *achievement)
	return nil
}

func (m *memoryStore) GetAchievement(_ context.Context, id string) (*models.Achievement, error) {
	for _, a := range m.achievements {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) GetAchievementByCode(_ context.Context, code string) (*models.Achievement, error) {
	for _, a := range m.achievements {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) ListAchievements(_ context.Context) ([]models.Achievement, error) {
	return slices.Clone(m.achievements), nil
}

func (m *memoryStore) IncrementAchievementUnlocks(_ context.Context, id string) error {
	for i := range m.achievements {
		if m.achievements[i].ID == id {
			m.achievements[i].UnlockedCount++
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) CreateChallenge(_ context.Context, challenge *models.Challenge) error {
	if challenge.ID == "" {
		challenge.ID = uuid.NewString()
	}
	now := m.clock.Now()
	challenge.CreatedAt, challenge.UpdatedAt = now, now
	stored := cloneChallenge(*challenge)
	stored.Participants = nil
	m.challenges = append(m.challenges, stored)
	return nil
}

func (m *memoryStore) GetChallenge(_ context.Context, id string) (*models.Challenge, error) {
	for _, c := range m.challenges {
		if c.ID == id {
			out := cloneChallenge(c)
			for _, p := range m.participants {
				if p.ChallengeID == id {
					out.Participants = append(out.Participants, p)
				}
			}
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) ListChallenges(_ context.Context, status models.ChallengeStatus) ([]models.Challenge, error) {
	var out []models.Challenge
	for _, c := range m.challenges {
		if status == "" || c.Status == status {
			out = append(out, cloneChallenge(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *memoryStore) UpdateChallengeStatus(_ context.Context, id string, status models.ChallengeStatus) error {
	return m.updateChallenge(id, func(c *models.Challenge) { c.Status = status })
}

func (m *memoryStore) IncrementChallengeCompletions(_ context.Context, id string) error {
	return m.updateChallenge(id, func(c *models.Challenge) { c.CompletionCount++ })
}

func (m *memoryStore) updateChallenge(id string, fn func(c *models.Challenge)) error {
	for i := range m.challenges {
		if m.challenges[i].ID == id {
			fn(&m.challenges[i])
			m.challenges[i].UpdatedAt = m.clock.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) AddParticipant(_ context.Context, participant *models.ChallengeParticipant) (bool, error) {
	for _, p := range m.participants {
		if p.ChallengeID == participant.ChallengeID && p.UserID == participant.UserID {
			return false, nil
		}
	}
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	m.participants = append(m.participants, *participant)
	return true, nil
}

func (m *memoryStore) GetParticipant(_ context.Context, challengeID, userID string) (*models.ChallengeParticipant, error) {
	for _, p := range m.participants {
		if p.ChallengeID == challengeID && p.UserID == userID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) SaveParticipant(_ context.Context, participant *models.ChallengeParticipant) error {
	for i := range m.participants {
		if m.participants[i].ID == participant.ID {
			m.participants[i] = *participant
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) ListParticipations(_ context.Context, userID string) ([]models.ChallengeParticipant, error) {
	var out []models.ChallengeParticipant
	for i := len(m.participants) - 1; i >= 0; i-- {
		if m.participants[i].UserID == userID {
			out = append(out, m.participants[i])
		}
	}
	return out, nil
}

func (m *memoryStore) GetLeaderboard(_ context.Context, timeRange models.TimeRange, period string) (*models.Leaderboard, error) {
	lb, ok := m.leaderboards[leaderboardKey(timeRange, period)]
	if !ok {
		return nil, ErrNotFound
	}
	lb.Rankings = slices.Clone(lb.Rankings)
	return &lb, nil
}

func (m *memoryStore) UpsertLeaderboard(_ context.Context, leaderboard *models.Leaderboard) error {
	key := leaderboardKey(leaderboard.TimeRange, leaderboard.Period)
	if existing, ok := m.leaderboards[key]; ok {
		leaderboard.ID = existing.ID
	} else if leaderboard.ID == "" {
		leaderboard.ID = uuid.NewString()
	}
	stored := *leaderboard
	stored.Rankings = slices.Clone(leaderboard.Rankings)
	m.leaderboards[key] = stored
	return nil
}

func leaderboardKey(timeRange models.TimeRange, period string) string {
	return string(timeRange) + "|" + period
}

func cloneChallenge(c models.Challenge) models.Challenge {
	c.BonusRewards = slices.Clone(c.BonusRewards)
	c.Participants = slices.Clone(c.Participants)
	return c
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
