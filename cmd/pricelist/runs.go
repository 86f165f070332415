package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the extraction run log",
	}
	cmd.PersistentFlags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root.cfg.Database.DSN == "" {
				return fmt.Errorf("no run log configured: set DB_URL or database.dsn")
			}
			svc, _, cleanup, err := root.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			runs, err := svc.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), format, runs)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.cfg.Database.DSN == "" {
				return fmt.Errorf("no run log configured: set DB_URL or database.dsn")
			}
			svc, _, cleanup, err := root.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			run, err := svc.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), format, run)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}
