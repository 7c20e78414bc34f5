package config

import (
	"time"

	"github.com/storacha/silo/pkg/config/app"
)

type TelemetryConfig struct {
	Endpoint        string            `mapstructure:"endpoint" validate:"required" toml:"endpoint"`
	Insecure        bool              `mapstructure:"insecure" toml:"insecure,omitempty"`
	Headers         map[string]string `mapstructure:"headers" toml:"headers,omitempty"`
	PublishInterval time.Duration     `mapstructure:"publishinterval" validate:"gte=0" toml:"publish_interval,omitempty"`
}

func (t TelemetryConfig) Validate() error {
	return validateConfig(t)
}

func (t TelemetryConfig) ToAppConfig() *app.TelemetryConfig {
	interval := t.PublishInterval
	if interval == 0 {
		interval = defaultTelemetryPublishInterval
	}
	return &app.TelemetryConfig{
		Endpoint:        t.Endpoint,
		Insecure:        t.Insecure,
		Headers:         t.Headers,
		PublishInterval: interval,
	}
}
