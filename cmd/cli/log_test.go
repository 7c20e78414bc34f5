package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storacha/silo/pkg/admin"
)

func TestLogListCmd(t *testing.T) {
	expected := map[string]string{
		"system1": "info",
		"system2": "debug",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, admin.Prefix+"/log/level", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(admin.ListLogLevelsResponse{Levels: expected})
	}))
	defer server.Close()

	out, err := execute(t, "log", "list", "--admin-addr", strings.TrimPrefix(server.URL, "http://"))
	require.NoError(t, err)

	for k, v := range expected {
		require.Contains(t, out, k)
		require.Contains(t, out, v)
	}
	require.Less(t, strings.Index(out, "system1"), strings.Index(out, "system2"))
}

func TestLogSetLevelCmd(t *testing.T) {
	t.Run("sets level for a single system", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, admin.Prefix+"/log/level", r.URL.Path)
			require.Equal(t, http.MethodPost, r.Method)

			var req admin.SetLogLevelRequest
			json.NewDecoder(r.Body).Decode(&req)

			require.Equal(t, "system1", req.Subsystem)
			require.Equal(t, "DEBUG", req.Level)
		}))
		defer server.Close()

		_, err := execute(t, "log", "set-level", "--system", "system1", "DEBUG", "--admin-addr", strings.TrimPrefix(server.URL, "http://"))
		require.NoError(t, err)
	})

	t.Run("sets level for multiple systems", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			var req admin.SetLogLevelRequest
			json.NewDecoder(r.Body).Decode(&req)

			require.Contains(t, []string{"system1", "system2"}, req.Subsystem)
			require.Equal(t, "WARN", req.Level)
		}))
		defer server.Close()

		_, err := execute(t, "log", "set-level", "--system", "system1", "--system", "system2", "WARN", "--admin-addr", strings.TrimPrefix(server.URL, "http://"))
		require.NoError(t, err)
		require.Equal(t, 2, requests)
	})

	t.Run("sets level for all systems", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			var req admin.SetLogLevelRequest
			json.NewDecoder(r.Body).Decode(&req)
			require.Equal(t, "*", req.Subsystem)
			require.Equal(t, "FATAL", req.Level)
		}))
		defer server.Close()

		_, err := execute(t, "log", "set-level", "FATAL", "--admin-addr", strings.TrimPrefix(server.URL, "http://"))
		require.NoError(t, err)
		require.Equal(t, 1, requests)
	})

	t.Run("reports rejected levels", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unrecognized level", http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := execute(t, "log", "set-level", "LOUD", "--admin-addr", strings.TrimPrefix(server.URL, "http://"))
		require.ErrorContains(t, err, "unrecognized level")
	})
}
