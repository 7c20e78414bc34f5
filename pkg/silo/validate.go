package silo

import (
	"errors"
	"fmt"

	"github.com/storacha/silo/pkg/config/app"
	"github.com/storacha/silo/pkg/database"
)

var errRequired = errors.New("value is required")

// validate checks what a silo needs before it contacts anything. The
// configuration layer validates user input too, this guards silos built
// from an AppConfig assembled in code.
func validate(cfg app.AppConfig) (database.ConnectionString, error) {
	if cfg.Storage.ConnectionString == "" {
		return database.ConnectionString{}, &ConfigError{Field: "storage.connectionstring", Cause: errRequired}
	}
	conn, err := database.ParseConnectionString(cfg.Storage.ConnectionString)
	if err != nil {
		return database.ConnectionString{}, &ConfigError{Field: "storage.connectionstring", Cause: err}
	}

	switch {
	case cfg.Cluster.ClusterID == "":
		return conn, &ConfigError{Field: "cluster.clusterid", Cause: errRequired}
	case cfg.Cluster.ServiceID == "":
		return conn, &ConfigError{Field: "cluster.serviceid", Cause: errRequired}
	case cfg.Streams.ProviderName == "":
		return conn, &ConfigError{Field: "streams.providername", Cause: errRequired}
	case cfg.Membership.HeartbeatInterval <= 0:
		return conn, &ConfigError{Field: "membership.heartbeatinterval", Cause: fmt.Errorf("must be positive, got %s", cfg.Membership.HeartbeatInterval)}
	}

	if err := validPort(cfg.Endpoints.SiloPort); err != nil {
		return conn, &ConfigError{Field: "endpoints.siloport", Cause: err}
	}
	if err := validPort(cfg.Endpoints.GatewayPort); err != nil {
		return conn, &ConfigError{Field: "endpoints.gatewayport", Cause: err}
	}
	if cfg.Endpoints.SiloPort == cfg.Endpoints.GatewayPort {
		return conn, &ConfigError{Field: "endpoints.gatewayport", Cause: fmt.Errorf("must differ from the silo port %d", cfg.Endpoints.SiloPort)}
	}

	if cfg.Features.HealthCheck {
		if err := validPort(cfg.Health.Port); err != nil {
			return conn, &ConfigError{Field: "health.port", Cause: err}
		}
		if cfg.Health.Port == cfg.Endpoints.SiloPort || cfg.Health.Port == cfg.Endpoints.GatewayPort {
			return conn, &ConfigError{Field: "health.port", Cause: fmt.Errorf("port %d is already used by an endpoint", cfg.Health.Port)}
		}
	}
	if cfg.Features.Telemetry && (cfg.Telemetry == nil || cfg.Telemetry.Endpoint == "") {
		return conn, &ConfigError{Field: "telemetry.endpoint", Cause: errors.New("required when features.telemetry is enabled")}
	}
	return conn, nil
}

func validPort(p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("port %d outside valid range [1, 65535]", p)
	}
	return nil
}
