package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestResolver(t *testing.T, root string, environ []string, opts ...ResolverOption) *Resolver {
	t.Helper()
	base := []ResolverOption{
		WithEnviron(environ),
		WithUserConfigDir(filepath.Join(root, "userconfig")),
		WithHostOverrides(HostSettings{
			ContentRoot: root,
			SecretsDir:  filepath.Join(root, "secrets"),
		}),
	}
	return NewResolver(append(base, opts...)...)
}

func TestResolve_Precedence(t *testing.T) {
	t.Run("environment variable overrides base file", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "appsettings.json"), `{"Storage":{"ConnectionString":"A"}}`)

		r := newTestResolver(t, root, []string{"Storage__ConnectionString=B"})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		assert.Equal(t, "B", resolved.Viper().GetString(string(StorageConnectionString)))
	})

	t.Run("command line wins over every other layer", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "appsettings.json"), `{"Storage":{"ConnectionString":"file"}}`)
		writeFile(t, filepath.Join(root, "appsettings.Production.json"), `{"Storage":{"ConnectionString":"envfile"}}`)
		writeFile(t, filepath.Join(root, "secrets", "Storage__ConnectionString"), "secret\n")

		r := newTestResolver(t, root,
			[]string{"STORAGE__CONNECTIONSTRING=env"},
			WithCommandLine(CommandLine(nil, []string{"--Storage:ConnectionString=cli"})),
		)
		resolved, err := r.Resolve()
		require.NoError(t, err)

		assert.Equal(t, "cli", resolved.Viper().GetString(string(StorageConnectionString)))
	})

	t.Run("each layer overrides the one before it", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "appsettings.json"), `{"Cluster":{"ClusterId":"base","ServiceId":"base"},"Streams":{"ProviderName":"base"}}`)
		writeFile(t, filepath.Join(root, "appsettings.Production.json"), `{"Cluster":{"ClusterId":"envfile"}}`)
		writeFile(t, filepath.Join(root, "secrets", "Cluster__ServiceId"), "fromsecret")

		r := newTestResolver(t, root, nil)
		resolved, err := r.Resolve()
		require.NoError(t, err)

		v := resolved.Viper()
		assert.Equal(t, "envfile", v.GetString(string(ClusterID)))
		assert.Equal(t, "fromsecret", v.GetString(string(ServiceID)))
		assert.Equal(t, "base", v.GetString(string(StreamsProviderName)))
	})

	t.Run("flag values override free form arguments of lower layers", func(t *testing.T) {
		root := t.TempDir()
		r := newTestResolver(t, root,
			[]string{"Endpoints__SiloPort=12000"},
			WithCommandLine(CommandLine(map[string]string{"endpoints.siloport": "13000"}, nil)),
		)
		resolved, err := r.Resolve()
		require.NoError(t, err)
		assert.Equal(t, 13000, resolved.Viper().GetInt(string(EndpointsSiloPort)))
	})
}

func TestResolve_OptionalSources(t *testing.T) {
	root := t.TempDir()
	r := newTestResolver(t, root, []string{})

	resolved, err := r.Resolve()
	require.NoError(t, err)

	require.Len(t, resolved.Layers, 4)
	assert.Equal(t, "file:appsettings.json", resolved.Layers[0].Name)
	assert.False(t, resolved.Layers[0].Applied)
	assert.Equal(t, "file:appsettings.Production.json", resolved.Layers[1].Name)
	assert.False(t, resolved.Layers[1].Applied)
	assert.False(t, resolved.Layers[2].Applied, "absent secrets directory is skipped")
	assert.Equal(t, "env", resolved.Layers[3].Name)

	// defaults still apply
	assert.Equal(t, DefaultSiloPort, resolved.Viper().GetInt(string(EndpointsSiloPort)))
	assert.Equal(t, DefaultGatewayPort, resolved.Viper().GetInt(string(EndpointsGatewayPort)))
}

func TestResolve_MalformedSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "appsettings.json"), `{"Storage": {`)

	r := newTestResolver(t, root, nil)
	_, err := r.Resolve()
	require.Error(t, err)

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "file:appsettings.json", srcErr.Source)
}

func TestResolve_MalformedCommandLine(t *testing.T) {
	root := t.TempDir()
	r := newTestResolver(t, root, nil, WithCommandLine(CommandLine(nil, []string{"no-equals-sign"})))

	_, err := r.Resolve()
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "commandline", srcErr.Source)
}

func TestResolve_UserSecrets(t *testing.T) {
	secrets := `{"Storage":{"ConnectionString":"from-user-secrets"}}`

	t.Run("applied in Development with an application name", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "userconfig", "orders", "secrets.json"), secrets)

		r := newTestResolver(t, root, []string{"SILO_ENVIRONMENT=Development", "SILO_APPLICATIONNAME=orders"})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		assert.True(t, r.Host().IsDevelopment())
		assert.Equal(t, "from-user-secrets", resolved.Viper().GetString(string(StorageConnectionString)))
	})

	t.Run("ignored outside Development", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "userconfig", "orders", "secrets.json"), secrets)

		r := newTestResolver(t, root, []string{"SILO_ENVIRONMENT=Staging", "SILO_APPLICATIONNAME=orders"})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		assert.Empty(t, resolved.Viper().GetString(string(StorageConnectionString)))
		for _, l := range resolved.Layers {
			assert.NotContains(t, l.Name, "usersecrets")
		}
	})

	t.Run("ignored without an application name", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "userconfig", "orders", "secrets.json"), secrets)

		r := newTestResolver(t, root, []string{"SILO_ENVIRONMENT=Development"})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		assert.Empty(t, resolved.Viper().GetString(string(StorageConnectionString)))
	})
}

func TestResolve_HostSettings(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "appsettings.Staging.json"), `{"Cluster":{"ClusterId":"staging"}}`)

	t.Run("prefixed environment selects the environment file", func(t *testing.T) {
		r := newTestResolver(t, root, []string{"SILO_ENVIRONMENT=Staging"})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		assert.Equal(t, "Staging", resolved.Host.Environment)
		assert.Equal(t, "staging", resolved.Viper().GetString(string(ClusterID)))
	})

	t.Run("command line host override wins", func(t *testing.T) {
		r := NewResolver(
			WithEnviron([]string{"SILO_ENVIRONMENT=Staging"}),
			WithHostOverrides(HostSettings{ContentRoot: root, Environment: "Development"}),
		)
		assert.Equal(t, "Development", r.Host().Environment)
	})

	t.Run("prefixed variables stay out of the application layer", func(t *testing.T) {
		r := newTestResolver(t, root, []string{"SILO_ENVIRONMENT=Staging"})
		resolved, err := r.Resolve()
		require.NoError(t, err)
		assert.NotContains(t, resolved.Settings(), "siloenvironment")
	})
}

func TestLoad(t *testing.T) {
	t.Run("scenario from file and environment", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "appsettings.json"), `{"Storage":{"ConnectionString":"A"},"Membership":{"HeartbeatInterval":"2s"}}`)

		r := newTestResolver(t, root, []string{"Storage__ConnectionString=B", "SILO_ENVIRONMENT=Development"})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		cfg, err := Load(resolved)
		require.NoError(t, err)

		assert.Equal(t, "B", cfg.Storage.ConnectionString)
		assert.Equal(t, 2*time.Second, cfg.Membership.HeartbeatInterval)
		assert.Equal(t, "dev", cfg.Cluster.ClusterID)
		assert.Equal(t, "127.0.0.1", cfg.Endpoints.AdvertisedHost)
		assert.False(t, cfg.Endpoints.ListenOnAnyHostAddress)
		assert.Nil(t, cfg.Telemetry)
	})

	t.Run("missing connection string is a validation error", func(t *testing.T) {
		r := newTestResolver(t, t.TempDir(), []string{})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		_, err = Load(resolved)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasField(string(StorageConnectionString)), verr.Error())
	})

	t.Run("same silo and gateway port is rejected", func(t *testing.T) {
		r := newTestResolver(t, t.TempDir(), []string{
			"Storage__ConnectionString=sqlite::memory:",
			"Endpoints__SiloPort=30000",
		})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		_, err = Load(resolved)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasField(string(EndpointsGatewayPort)), verr.Error())
	})

	t.Run("telemetry feature requires an endpoint", func(t *testing.T) {
		r := newTestResolver(t, t.TempDir(), []string{
			"Storage__ConnectionString=sqlite::memory:",
			"Features__Telemetry=true",
		})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		_, err = Load(resolved)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasField(string(TelemetryEndpoint)))
	})

	t.Run("telemetry sub-config gets a publish interval", func(t *testing.T) {
		r := newTestResolver(t, t.TempDir(), []string{
			"Storage__ConnectionString=sqlite::memory:",
			"Telemetry__Endpoint=collector:4318",
		})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		cfg, err := Load(resolved)
		require.NoError(t, err)
		require.NotNil(t, cfg.Telemetry)
		assert.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
		assert.Equal(t, defaultTelemetryPublishInterval, cfg.Telemetry.PublishInterval)
	})

	t.Run("explicit listen flag beats the environment default", func(t *testing.T) {
		r := newTestResolver(t, t.TempDir(), []string{
			"Storage__ConnectionString=sqlite::memory:",
			"Endpoints__ListenOnAnyHostAddress=false",
			"Endpoints__AdvertisedHost=silo-0.internal",
		})
		resolved, err := r.Resolve()
		require.NoError(t, err)

		cfg, err := Load(resolved)
		require.NoError(t, err)
		assert.False(t, cfg.IsDevelopment())
		assert.False(t, cfg.Endpoints.ListenOnAnyHostAddress)
		assert.Equal(t, "silo-0.internal", cfg.Endpoints.AdvertisedHost)
	})
}
