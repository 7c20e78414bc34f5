package gormdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storacha/silo/pkg/config/app"
	"github.com/storacha/silo/pkg/database"
)

func TestOpen_SQLite(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		cs, err := database.ParseConnectionString("sqlite::memory:")
		require.NoError(t, err)

		db, err := Open(context.Background(), cs, "ignored", app.PoolConfig{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = Close(db) })

		var one int
		require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
		assert.Equal(t, 1, one)
	})

	t.Run("file in WAL mode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "silo.db")
		cs, err := database.ParseConnectionString("sqlite:" + path)
		require.NoError(t, err)

		db, err := Open(context.Background(), cs, "", app.PoolConfig{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = Close(db) })

		var mode string
		require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
		assert.Equal(t, "wal", mode)
	})
}

func TestOpen_RejectsRedis(t *testing.T) {
	cs, err := database.ParseConnectionString("redis://localhost:6379")
	require.NoError(t, err)

	_, err = Open(context.Background(), cs, "", app.PoolConfig{})
	assert.Error(t, err)
}

func TestSchemaName(t *testing.T) {
	assert.Equal(t, "silo_grain_state", SchemaName("grain-state"))
	assert.Equal(t, "silo_storage_pubsub", SchemaName("Storage:PubSub"))
}
