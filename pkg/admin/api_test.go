package admin

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	e := echo.New()
	RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return NewClient(strings.TrimPrefix(srv.URL, "http://"))
}

func TestLogLevels(t *testing.T) {
	ctx := context.Background()
	_ = logging.Logger("admin-test")
	c := newTestClient(t)

	require.NoError(t, c.SetLogLevel(ctx, "admin-test", "debug"))

	levels, err := c.ListLogLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, "debug", levels.Levels["admin-test"])

	subsystems, err := c.ListLogSubsystems(ctx)
	require.NoError(t, err)
	assert.Contains(t, subsystems.Subsystems, "admin-test")
	assert.IsIncreasing(t, subsystems.Subsystems)
}

func TestSetLogLevel_Errors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	tests := []struct {
		name      string
		subsystem string
		level     string
	}{
		{"missing subsystem", "", "info"},
		{"missing level", "admin-test", ""},
		{"unknown level", "admin-test", "loud"},
		{"unknown subsystem", "no-such-subsystem", "info"},
		{"unknown level for all", AllSubsystems, "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, c.SetLogLevel(ctx, tt.subsystem, tt.level))
		})
	}
}

func TestSetLogLevel_ErrorCarriesResponse(t *testing.T) {
	c := newTestClient(t)

	err := c.SetLogLevel(context.Background(), "no-such-subsystem", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting level of no-such-subsystem")
	assert.Contains(t, err.Error(), "POST "+Prefix+"/log/level")
}
