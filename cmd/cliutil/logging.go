package cliutil

import (
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
)

const defaultApplicationName = "silo"

// subsystem levels used unless a level is requested explicitly
var defaultLevels = map[string]string{
	"database/gorm":  "error",
	"database/redis": "warn",
	"config":         "warn",
	"telemetry":      "warn",
	"health":         "warn",
	"storage":        "info",
	"membership":     "info",
	"host":           "info",
	"silo":           "info",
	"cmd":            "info",
}

// SetupLogging configures every subsystem logger. Each entry carries the
// application name and a trace id unique to this process.
func SetupLogging(level, application string) (traceID string, err error) {
	if application == "" {
		application = defaultApplicationName
	}
	traceID = uuid.NewString()

	cfg := logging.GetConfig()
	cfg.Labels = map[string]string{
		"application": application,
		"trace_id":    traceID,
	}

	if level != "" {
		ll, err := logging.LevelFromString(level)
		if err != nil {
			return "", err
		}
		cfg.Level = ll
		logging.SetupLogging(cfg)
		logging.SetAllLoggers(ll)
		return traceID, nil
	}

	logging.SetupLogging(cfg)
	for subsystem, lvl := range defaultLevels {
		_ = logging.SetLogLevel(subsystem, lvl)
	}
	return traceID, nil
}
