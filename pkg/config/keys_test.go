package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Storage__ConnectionString", "storage.connectionstring"},
		{"STORAGE__CONNECTIONSTRING", "storage.connectionstring"},
		{"Storage:ConnectionString", "storage.connectionstring"},
		{"storage.connectionString", "storage.connectionstring"},
		{"  Cluster__ : ClusterId ", "cluster.clusterid"},
		{"PATH", "path"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestSetNestedValue(t *testing.T) {
	t.Run("merges sibling keys", func(t *testing.T) {
		m := map[string]any{}
		setNestedValue(m, "storage.connectionstring", "a")
		setNestedValue(m, "storage.other", "b")

		assert.Equal(t, map[string]any{
			"storage": map[string]any{"connectionstring": "a", "other": "b"},
		}, m)
	})

	t.Run("later scalar replaces a map and vice versa", func(t *testing.T) {
		m := map[string]any{}
		setNestedValue(m, "a.b", "x")
		setNestedValue(m, "a", "scalar")
		assert.Equal(t, "scalar", m["a"])

		setNestedValue(m, "a.c", "y")
		assert.Equal(t, map[string]any{"c": "y"}, m["a"])
	})

	t.Run("merging does not alias the source map", func(t *testing.T) {
		src := map[string]any{"x": "1"}
		dst := map[string]any{}
		setNestedValue(dst, "a", src)
		src["x"] = "2"
		assert.Equal(t, "1", dst["a"].(map[string]any)["x"])
	})
}

func TestNormalizeMap(t *testing.T) {
	in := map[string]any{
		"Cluster": map[string]any{"ClusterId": "c1"},
		"cluster": map[string]any{"ServiceId": "s1"},
	}
	out := normalizeMap(in)
	assert.Equal(t, map[string]any{
		"cluster": map[string]any{"clusterid": "c1", "serviceid": "s1"},
	}, out)
}

func TestKeyPerFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Storage__ConnectionString"), []byte("postgres://x\r\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("ignored"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "..data"), 0700))

	m, err := KeyPerFile(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"storage": map[string]any{"connectionstring": "postgres://x"},
	}, m)

	m, err = KeyPerFile(filepath.Join(dir, "missing")).Load()
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestParseOverride(t *testing.T) {
	k, v, err := ParseOverride("--Storage:ConnectionString=a=b")
	require.NoError(t, err)
	assert.Equal(t, "storage.connectionstring", k)
	assert.Equal(t, "a=b", v)

	k, v, err = ParseOverride("/Cluster__ClusterId=c")
	require.NoError(t, err)
	assert.Equal(t, "cluster.clusterid", k)
	assert.Equal(t, "c", v)

	_, _, err = ParseOverride("=value")
	assert.Error(t, err)
}

func TestRender_RedactsSecrets(t *testing.T) {
	opts := Options{
		Storage:   StorageConfig{ConnectionString: "postgres://user:hunter2@db/silo"},
		Telemetry: &TelemetryConfig{Endpoint: "collector", Headers: map[string]string{"authorization": "Bearer x"}},
	}
	for _, format := range []string{"toml", "json"} {
		out, err := Render(opts, format)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "hunter2")
		assert.NotContains(t, string(out), "Bearer x")
		assert.Contains(t, string(out), redacted)
	}
	// the original is untouched
	assert.Equal(t, "Bearer x", opts.Telemetry.Headers["authorization"])

	_, err := Render(opts, "xml")
	assert.Error(t, err)
}
