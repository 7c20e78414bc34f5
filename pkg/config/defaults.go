package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default port pair of a silo, one for silo-to-silo traffic and one for client gateway traffic.
const (
	DefaultSiloPort    = 11111
	DefaultGatewayPort = 30000
)

// DefaultStreamProviderName is the stream provider whose pub/sub metadata is persisted.
const DefaultStreamProviderName = "StreamProvider"

// Key is a normalized configuration key path.
type Key string

// Cluster
const (
	ClusterID Key = "cluster.clusterid"
	ServiceID Key = "cluster.serviceid"
)

// Storage
const (
	StorageConnectionString Key = "storage.connectionstring"
)

// Endpoints
const (
	EndpointsSiloPort               Key = "endpoints.siloport"
	EndpointsGatewayPort            Key = "endpoints.gatewayport"
	EndpointsAdvertisedHost         Key = "endpoints.advertisedhost"
	EndpointsListenOnAnyHostAddress Key = "endpoints.listenonanyhostaddress"
)

// Runtime
const (
	StreamsProviderName         Key = "streams.providername"
	MembershipHeartbeatInterval Key = "membership.heartbeatinterval"
	HostShutdownTimeout         Key = "host.shutdowntimeout"
	HealthPort                  Key = "health.port"
	HealthAdmin                 Key = "health.admin"
	FeaturesHealthCheck         Key = "features.healthcheck"
	FeaturesTransactions        Key = "features.transactions"
	FeaturesTelemetry           Key = "features.telemetry"
	TelemetryEndpoint           Key = "telemetry.endpoint"
)

// telemetry has no viper defaults, the sub-config stays nil unless a layer sets it
const defaultTelemetryPublishInterval = 30 * time.Second

var defaultValues = map[Key]any{
	ClusterID: "dev",
	ServiceID: "silo",

	EndpointsSiloPort:    DefaultSiloPort,
	EndpointsGatewayPort: DefaultGatewayPort,

	StreamsProviderName:         DefaultStreamProviderName,
	MembershipHeartbeatInterval: 5 * time.Second,
	HostShutdownTimeout:         30 * time.Second,
	HealthPort:                  8080,
	HealthAdmin:                 false,

	FeaturesHealthCheck:  true,
	FeaturesTransactions: true,
	FeaturesTelemetry:    false,
}

// SetDefaults sets all defaults on v.
// Called before v.Unmarshal() to ensure defaults are available.
func SetDefaults(v *viper.Viper) {
	for k, val := range defaultValues {
		v.SetDefault(string(k), val)
	}
}
