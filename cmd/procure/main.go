package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/procure/internal/cli"
	"github.com/example/procure/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "procure",
		Short:   "procure - health commodity procurement requests",
		Version: version.String(),
		Long: `procure builds procurement requests from program forecasts, moves them
through review and procurement, and compares them against program budgets.`,
		SilenceUsage: true,
	}
	cli.BindGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.SeedCmd())
	rootCmd.AddCommand(cli.RoleCmd())

	// Request lifecycle
	rootCmd.AddCommand(cli.DraftCmd())
	rootCmd.AddCommand(cli.RequestCmd())
	rootCmd.AddCommand(cli.TransitionCmd())
	rootCmd.AddCommand(cli.TimelineCmd())
	rootCmd.AddCommand(cli.BudgetCmd())
	rootCmd.AddCommand(cli.ReconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
