package app

import (
	"strings"
	"time"
)

// EnvironmentDevelopment is the environment name that switches the silo to
// loopback endpoints and enables the user secret store.
const EnvironmentDevelopment = "Development"

// AppConfig is the root configuration for the entire application
type AppConfig struct {
	// Host level settings resolved before any other configuration layer
	Environment     string
	ApplicationName string

	// Cluster identity of this silo
	Cluster ClusterConfig

	// Backing store shared by the membership directory and every storage binding
	Storage StorageConfig

	// Silo-to-silo and gateway listen endpoints
	Endpoints EndpointsConfig

	Streams    StreamsConfig
	Membership MembershipConfig
	Host       HostConfig
	Features   FeaturesConfig
	Health     HealthConfig

	// Telemetry is optional, nil when not configured
	Telemetry *TelemetryConfig
}

// IsDevelopment reports whether the silo runs in the Development environment.
func (c AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvironmentDevelopment)
}

// ClusterConfig identifies the cluster and the logical service the silo belongs to
type ClusterConfig struct {
	ClusterID string
	ServiceID string
}

// StorageConfig contains the connection string of the backing store
type StorageConfig struct {
	ConnectionString string
	// Pool sizes each postgres pool, zero values use the driver package defaults
	Pool PoolConfig
}

// PoolConfig configures a SQL connection pool. Every storage binding and the
// membership directory open their own pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// EndpointsConfig contains the listen port pair and advertised host
type EndpointsConfig struct {
	SiloPort               int
	GatewayPort            int
	AdvertisedHost         string
	ListenOnAnyHostAddress bool
}

// StreamsConfig names the stream provider whose pub/sub metadata is persisted
type StreamsConfig struct {
	ProviderName string
}

type MembershipConfig struct {
	HeartbeatInterval time.Duration
}

type HostConfig struct {
	ShutdownTimeout time.Duration
}

// FeaturesConfig toggles optional startup steps
type FeaturesConfig struct {
	HealthCheck  bool
	Transactions bool
	Telemetry    bool
}

type HealthConfig struct {
	Port  int
	Admin bool
}
