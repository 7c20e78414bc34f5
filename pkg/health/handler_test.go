package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, checker *Checker, path string, fn func(*Handler, echo.Context) error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()

	require.NoError(t, fn(NewHandler(checker), e.NewContext(req, rec)))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandler(t *testing.T) {
	running := NewChecker("s1")
	running.SetState("Running", true)
	starting := NewChecker("s1")
	starting.SetState("Starting", false)

	tests := []struct {
		name    string
		checker *Checker
		path    string
		fn      func(*Handler, echo.Context) error
		code    int
		status  Status
	}{
		{"health running", running, "/healthz", (*Handler).Health, http.StatusOK, StatusOK},
		{"health starting", starting, "/healthz", (*Handler).Health, http.StatusServiceUnavailable, StatusFailed},
		{"liveness starting", starting, "/livez", (*Handler).Liveness, http.StatusOK, StatusOK},
		{"readiness running", running, "/readyz", (*Handler).Readiness, http.StatusOK, StatusOK},
		{"readiness starting", starting, "/readyz", (*Handler).Readiness, http.StatusServiceUnavailable, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := serve(t, tt.checker, tt.path, tt.fn)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.status, resp.Status)
		})
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(NewChecker("s1")).RegisterRoutes(e)

	var paths []string
	for _, r := range e.Routes() {
		paths = append(paths, r.Path)
	}
	assert.Contains(t, paths, "/healthz")
	assert.Contains(t, paths, "/livez")
	assert.Contains(t, paths, "/readyz")
}

func TestServer(t *testing.T) {
	checker := NewChecker("s1")
	checker.SetState("Running", true)
	srv := NewServer(checker, "127.0.0.1:0")
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	resp, err := http.Get(fmt.Sprintf("http://%s/readyz", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}

func TestServer_PortInUse(t *testing.T) {
	first := NewServer(NewChecker("s1"), "127.0.0.1:0")
	require.NoError(t, first.Listen())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	second := NewServer(NewChecker("s2"), first.Addr().String())
	assert.Error(t, second.Listen())
}

func TestServer_ExtraRoutes(t *testing.T) {
	srv := NewServer(NewChecker("s1"), "127.0.0.1:0", func(e *echo.Echo) {
		e.GET("/extra", func(c echo.Context) error { return c.String(http.StatusOK, "extra") })
	})
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extra", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "extra", rec.Body.String())
}

func TestHandler_Head(t *testing.T) {
	checker := NewChecker("s1")
	e := echo.New()
	NewHandler(checker).RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	checker.SetState("Running", true)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
