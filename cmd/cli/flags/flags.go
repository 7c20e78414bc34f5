package flags

import (
	"github.com/spf13/pflag"

	"github.com/storacha/silo/pkg/config"
)

// FlagBinding maps a command line flag to the configuration key it sets.
type FlagBinding struct {
	FlagName string
	Key      config.Key
}

// SetFlag is the repeatable free form override flag, "--set key=value".
const SetFlag = "set"

// Values returns the keys set by flags the user passed explicitly. Flag
// defaults are left out so they never shadow lower configuration layers.
func Values(fs *pflag.FlagSet, bindings []FlagBinding) map[string]string {
	out := make(map[string]string)
	for _, b := range bindings {
		f := fs.Lookup(b.FlagName)
		if f == nil || !f.Changed {
			continue
		}
		out[string(b.Key)] = f.Value.String()
	}
	return out
}

// Overrides returns the raw "--set" values.
func Overrides(fs *pflag.FlagSet) ([]string, error) {
	if fs.Lookup(SetFlag) == nil {
		return nil, nil
	}
	return fs.GetStringArray(SetFlag)
}

// SetupOverrideFlag registers "--set".
func SetupOverrideFlag(fs *pflag.FlagSet) {
	fs.StringArray(SetFlag, nil, "Override a configuration key, e.g. --set storage:connectionString=postgres://... (repeatable)")
}

// SetupSiloFlags registers the named flags of the most common settings.
func SetupSiloFlags(fs *pflag.FlagSet) []FlagBinding {
	fs.String("cluster-id", "", "Cluster the silo joins")
	fs.String("service-id", "", "Logical service the silo belongs to")
	fs.String("connection-string", "", "Connection string of the membership directory and every storage binding")
	fs.Int("silo-port", config.DefaultSiloPort, "Silo-to-silo port")
	fs.Int("gateway-port", config.DefaultGatewayPort, "Client gateway port")
	fs.String("advertised-host", "", "Host other silos reach this silo at")
	fs.Int("health-port", 8080, "Health endpoint port")

	return []FlagBinding{
		{"cluster-id", config.ClusterID},
		{"service-id", config.ServiceID},
		{"connection-string", config.StorageConnectionString},
		{"silo-port", config.EndpointsSiloPort},
		{"gateway-port", config.EndpointsGatewayPort},
		{"advertised-host", config.EndpointsAdvertisedHost},
		{"health-port", config.HealthPort},
	}
}
