package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storacha/silo/cmd/cli/flags"
	"github.com/storacha/silo/cmd/cliutil"
	"github.com/storacha/silo/cmd/cliutil/format"
	"github.com/storacha/silo/pkg/config"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	cmd.AddCommand(newShowCmd(), newLayersCmd())
	return cmd
}

func newShowCmd() *cobra.Command {
	var (
		bindings []flags.FlagBinding
		out      string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := format.ParseOutputFormat(out, format.TOMLFormat, format.JSONFormat)
			if err != nil {
				return err
			}
			resolved, err := resolve(cmd, bindings)
			if err != nil {
				return err
			}
			opts, err := config.Decode[config.Options](resolved)
			if err != nil {
				return err
			}
			rendered, err := config.Render(opts, string(f))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(rendered))
			return err
		},
	}
	bindings = flags.SetupSiloFlags(cmd.Flags())
	flags.SetupOverrideFlag(cmd.Flags())
	cmd.Flags().StringVar(&out, "format", "toml", "Output format, toml or json")
	return cmd
}

func newLayersCmd() *cobra.Command {
	var (
		bindings []flags.FlagBinding
		out      string
	)
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List the configuration layers in precedence order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := format.ParseOutputFormat(out)
			if err != nil {
				return err
			}
			resolved, err := resolve(cmd, bindings)
			if err != nil {
				return err
			}
			return format.NewFormatter(f, cmd.OutOrStdout()).Format(resolved.Layers)
		},
	}
	bindings = flags.SetupSiloFlags(cmd.Flags())
	flags.SetupOverrideFlag(cmd.Flags())
	cmd.Flags().StringVar(&out, "format", "table", "Output format, table, json or toml")
	return cmd
}

func resolve(cmd *cobra.Command, bindings []flags.FlagBinding) (*config.Resolved, error) {
	r, err := cliutil.NewResolver(cmd, bindings)
	if err != nil {
		return nil, err
	}
	return r.Resolve()
}
