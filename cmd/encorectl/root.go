package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "encorectl",
		Short:         "Operator tool for the encore data pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newIngestCommand())
	rootCmd.AddCommand(newTransformCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newReconcileCommand())
	rootCmd.AddCommand(newRunsCommand())

	return rootCmd
}
