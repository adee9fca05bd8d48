package main

import (
	"context"
	"fmt"

	"civic-gamification/config"
	"civic-gamification/repository"
	"civic-gamification/services"
	"civic-gamification/utils"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// application holds the wired dependencies shared by every subcommand.
type application struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    clockwork.Clock
	g        *services.Gamification
	natsConn *nats.Conn
	closers  []func()
}

func newLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.AppEnv)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &application{cfg: cfg, logger: logger, clock: clockwork.NewRealClock()}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	repo, err := a.openRepository()
	if err != nil {
		a.Close()
		return nil, err
	}

	var publisher services.Publisher = services.NopPublisher{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("gamification-service"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = nc
		a.closers = append(a.closers, func() { _ = nc.Drain() })
		publisher = services.NewNATSPublisher(nc, logger.Named("events"))
		logger.Info("connected to NATS", zap.String("url", nc.ConnectedUrl()))
	}

	a.g = services.NewGamification(repo, cfg.Gamification, a.clock, publisher, logger)

	if cfg.RedisAddr != "" {
		cache := services.NewRedisLeaderboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LeaderboardCacheTTL, logger.Named("cache"))
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("⚠️  redis unreachable, leaderboard cache disabled", zap.Error(err))
			_ = cache.Close()
		} else {
			a.g.Leaderboards.Cache = cache
			a.closers = append(a.closers, func() { _ = cache.Close() })
		}
	}

	if cfg.R2Enabled() {
		client, err := utils.NewR2Client(ctx, cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.g.Leaderboards.Archiver = utils.NewR2Archiver(client, cfg.R2Bucket, logger.Named("archive"))
	}

	return a, nil
}

func (a *application) openRepository() (repository.Repository, error) {
	if a.cfg.StoreDriver == "memory" {
		a.logger.Warn("⚠️  using in-memory store, data is lost on exit")
		return repository.NewMemoryRepository(a.clock), nil
	}

	db, err := gorm.Open(postgres.Open(a.cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}

	repo := repository.NewGormRepository(db, a.clock)
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return repo, nil
}

// Close releases connections in reverse order of opening.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
