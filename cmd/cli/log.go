package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/storacha/silo/pkg/admin"
)

const adminAddrFlag = "admin-addr"

func newLogCmd() *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Manage logging subsystems and levels of a running silo",
		Long: `Manage logging subsystems and levels of a running silo.
The silo must run with health:admin=true.`,
	}
	logCmd.PersistentFlags().String(adminAddrFlag, "127.0.0.1:8080", "Health endpoint address of the silo")

	logListCmd := &cobra.Command{
		Use:   "list",
		Short: "List all logging subsystems and their levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := admin.NewClient(mustGetAdminAddr(cmd))
			resp, err := client.ListLogLevels(cmd.Context())
			if err != nil {
				return err
			}

			subsystems := make([]string, 0, len(resp.Levels))
			for subsystem := range resp.Levels {
				subsystems = append(subsystems, subsystem)
			}
			sort.Strings(subsystems)
			for _, subsystem := range subsystems {
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %s\n", subsystem, resp.Levels[subsystem])
			}
			return nil
		},
	}

	logSetLevelCmd := &cobra.Command{
		Use:   "set-level <level>",
		Short: "Set log level for a subsystem or all subsystems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := args[0]
			systems, err := cmd.Flags().GetStringSlice("system")
			if err != nil {
				return err
			}

			client := admin.NewClient(mustGetAdminAddr(cmd))
			if len(systems) == 0 {
				return client.SetLogLevel(cmd.Context(), admin.AllSubsystems, level)
			}
			for _, system := range systems {
				if err := client.SetLogLevel(cmd.Context(), system, level); err != nil {
					return err
				}
			}
			return nil
		},
	}
	logSetLevelCmd.Flags().StringSlice("system", []string{}, "Subsystem to target. Pass multiple times for multiple systems.")

	logCmd.AddCommand(logListCmd)
	logCmd.AddCommand(logSetLevelCmd)
	return logCmd
}

func mustGetAdminAddr(cmd *cobra.Command) string {
	addr, err := cmd.Flags().GetString(adminAddrFlag)
	cobra.CheckErr(err)
	return addr
}
