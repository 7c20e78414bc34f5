package config

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/silo/pkg/config/app"
)

var log = logging.Logger("config")

type Validatable interface {
	Validate() error
}

// Decode unmarshals the resolved configuration into T and validates it.
func Decode[T Validatable](r *Resolved) (T, error) {
	var out T
	if err := r.Viper().Unmarshal(&out); err != nil {
		return out, &SourceError{Source: "merged", Cause: err}
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// Load decodes, validates and converts the resolved configuration into the
// immutable application configuration.
func Load(r *Resolved) (app.AppConfig, error) {
	opts, err := Decode[Options](r)
	if err != nil {
		return app.AppConfig{}, err
	}

	cfg, err := opts.ToAppConfig(r.Host)
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
