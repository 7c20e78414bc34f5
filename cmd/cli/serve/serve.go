package serve

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"

	"github.com/storacha/silo/cmd/cli/flags"
	"github.com/storacha/silo/cmd/cliutil"
	"github.com/storacha/silo/pkg/config"
	"github.com/storacha/silo/pkg/config/app"
	"github.com/storacha/silo/pkg/host"
	"github.com/storacha/silo/pkg/silo"
)

var log = logging.Logger("cmd/serve")

func NewCmd() *cobra.Command {
	var bindings []flags.FlagBinding
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the silo and run until it is stopped",
		Long: `Start the silo and run until SIGINT or SIGTERM arrives or the silo faults.
The process exits 0 after a clean stop and 1 after any fault.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, bindings)
		},
	}
	bindings = flags.SetupSiloFlags(cmd.Flags())
	flags.SetupOverrideFlag(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, bindings []flags.FlagBinding) error {
	cfg, err := load(cmd, bindings)
	if err != nil {
		// configuration errors end the process like any other fault
		return &cliutil.ExitError{Code: host.Abort(log.Desugar(), err)}
	}

	if code := silo.Run(cmd.Context(), cfg, silo.Dependencies{}); code != host.ExitOK {
		return &cliutil.ExitError{Code: code}
	}
	return nil
}

func load(cmd *cobra.Command, bindings []flags.FlagBinding) (app.AppConfig, error) {
	r, err := cliutil.NewResolver(cmd, bindings)
	if err != nil {
		return app.AppConfig{}, &silo.ConfigError{Field: flags.SetFlag, Cause: err}
	}
	resolved, err := r.Resolve()
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("resolving configuration: %w", err)
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("loading configuration: %w", err)
	}
	log.Infow("configuration resolved",
		"environment", cfg.Environment,
		"content_root", resolved.Host.ContentRoot,
		"layers", appliedLayers(resolved.Layers))
	return cfg, nil
}

func appliedLayers(layers []config.Layer) []string {
	var names []string
	for _, l := range layers {
		if l.Applied {
			names = append(names, l.Name)
		}
	}
	return names
}
