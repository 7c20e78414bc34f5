package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storacha/silo/pkg/config/app"
	"github.com/storacha/silo/pkg/database"
	"github.com/storacha/silo/pkg/testutil"
)

func testIdentity(cluster, address string, generation int64) SiloIdentity {
	return SiloIdentity{
		ClusterID:      cluster,
		ServiceID:      "svc",
		SiloName:       address,
		SiloAddress:    address,
		GatewayAddress: address,
		Generation:     generation,
	}
}

func openDirectory(t *testing.T, connStr string) Directory {
	t.Helper()
	cs, err := database.ParseConnectionString(connStr)
	require.NoError(t, err)
	dir, err := OpenDirectory(context.Background(), cs, app.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dir.Close() })
	return dir
}

func TestDirectory_SQLite(t *testing.T) {
	testDirectory(t, func(t *testing.T) Directory {
		return openDirectory(t, "sqlite::memory:")
	})
}

func TestDirectory_Postgres(t *testing.T) {
	connStr := testutil.PostgresConnectionString(t)
	testDirectory(t, func(t *testing.T) Directory {
		return openDirectory(t, connStr)
	})
}

func TestDirectory_Redis(t *testing.T) {
	connStr := testutil.RedisConnectionString(t)
	testDirectory(t, func(t *testing.T) Directory {
		return openDirectory(t, connStr)
	})
}

func testDirectory(t *testing.T, newDir func(t *testing.T) Directory) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("join then progress status", func(t *testing.T) {
		dir := newDir(t)
		cluster := "c-" + t.Name()
		id := testIdentity(cluster, "10.0.0.1:11111", 1)

		require.NoError(t, dir.Join(ctx, Entry{Identity: id, Status: StatusJoining, StartTime: now, IAmAliveTime: now}))
		require.ErrorIs(t, dir.Join(ctx, Entry{Identity: id, Status: StatusJoining}), ErrAlreadyJoined)

		require.NoError(t, dir.UpdateStatus(ctx, id, StatusActive))
		require.NoError(t, dir.Heartbeat(ctx, id))

		members, err := dir.Members(ctx, cluster)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, id, members[0].Identity)
		assert.Equal(t, StatusActive, members[0].Status)
		assert.False(t, members[0].IAmAliveTime.Before(now))
	})

	t.Run("new generation retires the old one", func(t *testing.T) {
		dir := newDir(t)
		cluster := "c-" + t.Name()
		old := testIdentity(cluster, "10.0.0.2:11111", 1)
		other := testIdentity(cluster, "10.0.0.3:11111", 1)
		restarted := testIdentity(cluster, "10.0.0.2:11111", 2)

		require.NoError(t, dir.Join(ctx, Entry{Identity: old, Status: StatusActive, StartTime: now, IAmAliveTime: now}))
		require.NoError(t, dir.Join(ctx, Entry{Identity: other, Status: StatusActive, StartTime: now, IAmAliveTime: now}))
		require.NoError(t, dir.Join(ctx, Entry{Identity: restarted, Status: StatusJoining, StartTime: now, IAmAliveTime: now}))

		members, err := dir.Members(ctx, cluster)
		require.NoError(t, err)
		require.Len(t, members, 3)
		statuses := map[string]Status{}
		for _, m := range members {
			statuses[m.Identity.ID()] = m.Status
		}
		assert.Equal(t, StatusDead, statuses[old.ID()])
		assert.Equal(t, StatusActive, statuses[other.ID()])
		assert.Equal(t, StatusJoining, statuses[restarted.ID()])
	})

	t.Run("unknown silo", func(t *testing.T) {
		dir := newDir(t)
		ghost := testIdentity("c-"+t.Name(), "10.0.0.9:11111", 1)
		assert.ErrorIs(t, dir.UpdateStatus(ctx, ghost, StatusActive), ErrUnknownSilo)
		assert.ErrorIs(t, dir.Heartbeat(ctx, ghost), ErrUnknownSilo)
	})

	t.Run("members are scoped to the cluster", func(t *testing.T) {
		dir := newDir(t)
		require.NoError(t, dir.Join(ctx, Entry{Identity: testIdentity("a-"+t.Name(), "h:1", 1), Status: StatusActive, StartTime: now, IAmAliveTime: now}))
		members, err := dir.Members(ctx, "b-"+t.Name())
		require.NoError(t, err)
		assert.Empty(t, members)
	})
}

func TestOpenDirectory_Unsupported(t *testing.T) {
	_, err := OpenDirectory(context.Background(), database.ConnectionString{Kind: "mysql"}, app.PoolConfig{})
	assert.ErrorIs(t, err, database.ErrUnsupportedScheme)
}

func TestNewSiloIdentity(t *testing.T) {
	started := time.UnixMilli(1_700_000_000_000)
	id := NewSiloIdentity(app.AppConfig{
		Cluster:   app.ClusterConfig{ClusterID: "prod", ServiceID: "orders"},
		Endpoints: app.EndpointsConfig{SiloPort: 11111, GatewayPort: 30000, AdvertisedHost: "silo-0"},
	}, started)

	assert.Equal(t, "prod", id.ClusterID)
	assert.Equal(t, "orders", id.ServiceID)
	assert.Equal(t, "silo-0:11111", id.SiloAddress)
	assert.Equal(t, "silo-0:30000", id.GatewayAddress)
	assert.Equal(t, "silo-0:11111@1700000000000", id.ID())
}
