// Package app wires the account services from configuration. It is shared by
// the api, worker and createsuperuser commands.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/database"
	"github.com/pageza/extended-accounts/backend/internal/queue"
	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/storage"
	"github.com/pageza/extended-accounts/backend/internal/store"
)

const (
	queuePrefix   = "accounts:jobs"
	s3ImagePrefix = "profile_images"
	storageLocal  = "local"
	storageS3     = "s3"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	DB       *gorm.DB
	Redis    *redis.Client
	Queue    *queue.RedisQueue
	Storage  storage.Storage
	Images   *service.ImageService
	Sweeper  *service.Sweeper
	Accounts *service.AccountService
	Auth     *service.AuthService
	Mailer   service.Mailer
}

// New connects to the database, redis and blob storage and builds the services.
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	db, err := database.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, err
	}

	rdb, err := database.NewRedisClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	blobs, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	q := queue.NewRedisQueue(rdb, queuePrefix, 0)
	identities := store.NewIdentityStore(db)
	perms := store.NewPermissionStore(db)
	backends := service.NewBackendRegistry(
		service.NewModelBackend(identities, perms),
		service.NewEmailBackend(identities),
	)
	tokens := service.NewTokenGenerator(cfg.JWTSecret, service.ConfirmationTTL)
	images := service.NewImageService(blobs, log)
	sweeper := service.NewSweeper(q, cfg.Sweeper, log)

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Redis:    rdb,
		Queue:    q,
		Storage:  blobs,
		Images:   images,
		Sweeper:  sweeper,
		Accounts: service.NewAccountService(db, images, sweeper, backends, tokens, log),
		Auth:     service.NewAuthService(backends, identities, cfg.JWTSecret, log),
		Mailer:   service.NewSMTPMailer(cfg, log),
	}, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case storageS3:
		s3cfg, err := config.NewS3Config(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure s3: %w", err)
		}
		return storage.NewS3Storage(s3cfg, s3ImagePrefix), nil
	case storageLocal, "":
		return storage.NewLocalStorage(cfg.MediaRoot)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Close releases the database and redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warnw("failed to close redis", "error", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Warnw("failed to close database", "error", err)
		}
	}
}
