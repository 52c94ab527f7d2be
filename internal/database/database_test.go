package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/logging"
	"github.com/pageza/extended-accounts/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteAndMigrate(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := New(cfg, logging.Nop())
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db))
	assert.True(t, db.Migrator().HasTable(&models.Account{}))
	assert.True(t, db.Migrator().HasTable(&models.Profile{}))
	assert.True(t, db.Migrator().HasTable(&models.AccountPermission{}))

	assert.NoError(t, HealthCheck(context.Background(), db))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(&config.Config{DBDriver: "oracle"}, logging.Nop())
	assert.Error(t, err)
}

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions(&config.Config{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = RedisOptions(&config.Config{RedisHost: "ignored", RedisURL: "redis://:pw@queue:6379/3"})
	require.NoError(t, err)
	assert.Equal(t, "queue:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = RedisOptions(&config.Config{RedisURL: "http://bad"})
	assert.Error(t, err)
}
