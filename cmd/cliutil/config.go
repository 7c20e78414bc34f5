package cliutil

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storacha/silo/cmd/cli/flags"
	"github.com/storacha/silo/pkg/config"
)

// Root flags that select the configuration layers.
const (
	ContentRootFlag     = "content-root"
	EnvironmentFlag     = "environment"
	ApplicationNameFlag = "application-name"
	SecretsDirFlag      = "secrets-dir"
	LogLevelFlag        = "log-level"
)

// ExitError carries a process exit code out of a command. The cause has
// already been reported when it is returned.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// HostOverrides reads the host settings passed on the command line.
func HostOverrides(cmd *cobra.Command) config.HostSettings {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return config.HostSettings{
		Environment:     get(EnvironmentFlag),
		ApplicationName: get(ApplicationNameFlag),
		ContentRoot:     get(ContentRootFlag),
		SecretsDir:      get(SecretsDirFlag),
	}
}

// NewResolver builds the configuration resolver of a command. The host flags
// pick the layers, the bound flags and "--set" overrides form the command
// line layer.
func NewResolver(cmd *cobra.Command, bindings []flags.FlagBinding, opts ...config.ResolverOption) (*config.Resolver, error) {
	overrides, err := flags.Overrides(cmd.Flags())
	if err != nil {
		return nil, err
	}
	opts = append([]config.ResolverOption{
		config.WithHostOverrides(HostOverrides(cmd)),
		config.WithCommandLine(config.CommandLine(flags.Values(cmd.Flags(), bindings), overrides)),
	}, opts...)
	return config.NewResolver(opts...), nil
}
