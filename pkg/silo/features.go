package silo

import "github.com/storacha/silo/pkg/config/app"

// Features are the optional startup steps. They are read once when the silo
// is built and never change afterwards.
type Features struct {
	HealthCheck  bool
	Transactions bool
	Telemetry    bool
}

func FeaturesFromConfig(cfg app.FeaturesConfig) Features {
	return Features{
		HealthCheck:  cfg.HealthCheck,
		Transactions: cfg.Transactions,
		Telemetry:    cfg.Telemetry,
	}
}
