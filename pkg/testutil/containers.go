package testutil

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SkipContainersEnv disables every container backed test when set to 1.
const SkipContainersEnv = "SILO_SKIP_CONTAINER_TESTS"

type container struct {
	once    sync.Once
	connStr string
	err     error
}

var (
	pg    container
	redis container
)

func skipContainers(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests skipped in short mode")
	}
	if os.Getenv(SkipContainersEnv) == "1" {
		t.Skipf("container tests disabled by %s", SkipContainersEnv)
	}
	// Skip on darwin in CI, no docker there
	if runtime.GOOS == "darwin" && os.Getenv("CI") != "" {
		t.Skip("containers unavailable on darwin CI")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// PostgresConnectionString starts a postgres container once per test binary
// and returns its connection string. The test is skipped when docker is not
// available. The container is reaped by testcontainers when the process exits.
func PostgresConnectionString(t *testing.T) string {
	t.Helper()
	skipContainers(t)

	pg.once.Do(func() {
		ctx := context.Background()
		c, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("silo"),
			postgres.WithUsername("silo"),
			postgres.WithPassword("silo"),
			// logged twice at startup, only the second one means ready
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2)),
		)
		if err != nil {
			pg.err = fmt.Errorf("starting postgres container: %w", err)
			return
		}
		pg.connStr, pg.err = c.ConnectionString(ctx, "sslmode=disable")
	})
	if pg.err != nil {
		t.Skipf("postgres not available: %v", pg.err)
	}
	return pg.connStr
}

// RedisConnectionString starts a redis container once per test binary and
// returns a redis:// connection string for it.
func RedisConnectionString(t *testing.T) string {
	t.Helper()
	skipContainers(t)

	redis.once.Do(func() {
		ctx := context.Background()
		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		if err != nil {
			redis.err = fmt.Errorf("starting redis container: %w", err)
			return
		}
		endpoint, err := c.Endpoint(ctx, "")
		if err != nil {
			redis.err = fmt.Errorf("resolving redis endpoint: %w", err)
			return
		}
		redis.connStr = "redis://" + endpoint + "/0"
	})
	if redis.err != nil {
		t.Skipf("redis not available: %v", redis.err)
	}
	return redis.connStr
}
