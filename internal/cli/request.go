package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/wire"
)

// RequestCmd returns the request command
func RequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Inspect procurement requests",
	}

	cmd.AddCommand(requestShowCmd())
	cmd.AddCommand(requestListCmd())

	return cmd
}

func requestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [request-id]",
		Short: "Show a request with its items and totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			_, err = wire.RequestAdapter().Show(ctx, actor, args[0])
			return err
		},
	}
}

func requestListCmd() *cobra.Command {
	var filters primary.RequestFilters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests visible to the acting user",
		Long: `List the requests whose facility lies in the acting user's scope, newest first.

Examples:
  procure --as tigist request list
  procure --as hana request list --stage approved --program MAL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			return wire.RequestAdapter().List(ctx, actor, filters)
		},
	}

	cmd.Flags().StringVar(&filters.ProgramID, "program", "", "Filter by program")
	cmd.Flags().IntVar(&filters.Year, "year", 0, "Filter by year")
	cmd.Flags().StringVar(&filters.Stage, "stage", "", "Filter by stage")
	cmd.Flags().IntVar(&filters.Limit, "limit", 0, "Maximum number of requests")

	return cmd
}
