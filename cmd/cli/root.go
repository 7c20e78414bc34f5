package cli

import (
	"context"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"

	"github.com/storacha/silo/cmd/cli/configcmd"
	"github.com/storacha/silo/cmd/cli/serve"
	"github.com/storacha/silo/cmd/cliutil"
)

var log = logging.Logger("cmd")

const siloShortDescription = `
Silo runs one member of a virtual actor cluster
`

const siloLongDescription = `
Silo resolves its configuration from layered sources, joins the cluster
membership directory, binds grain state, reminder, transactional state and
pub/sub storage to a single connection string and opens its silo and
gateway endpoints.
`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "silo",
		Short:         siloShortDescription,
		Long:          siloLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString(cliutil.LogLevelFlag)
			application := cliutil.HostOverrides(cmd).ApplicationName
			traceID, err := cliutil.SetupLogging(level, application)
			if err != nil {
				return err
			}
			log.Debugw("logging configured", "trace_id", traceID)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.String(cliutil.LogLevelFlag, "", "logging level")
	pf.String(cliutil.ContentRootFlag, "", "Directory holding appsettings.json (defaults to the working directory)")
	pf.String(cliutil.EnvironmentFlag, "", "Host environment, e.g. Development or Production")
	pf.String(cliutil.ApplicationNameFlag, "", "Application name, selects the user secrets in Development")
	pf.String(cliutil.SecretsDirFlag, "", "Directory of key-per-file secrets")
	cobra.CheckErr(cmd.MarkPersistentFlagDirname(cliutil.ContentRootFlag))
	cobra.CheckErr(cmd.MarkPersistentFlagDirname(cliutil.SecretsDirFlag))

	cmd.AddCommand(serve.NewCmd())
	cmd.AddCommand(configcmd.NewCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args ...string) int {
	cmd := newRootCmd()
	if len(args) > 0 {
		cmd.SetArgs(args)
	}
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *cliutil.ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return 1
}
