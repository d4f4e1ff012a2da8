package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/wire"
)

// TransitionCmd returns the transition command
func TransitionCmd() *cobra.Command {
	var decision, comment, attachment string

	cmd := &cobra.Command{
		Use:   "transition [request-id] [stage]",
		Short: "Move a request to another stage",
		Long: `Move a request along its lifecycle:

  draft → submitted → approved → in_procurement → completed | cancelled
  submitted | approved → returned → draft | submitted

Returning a request requires --comment.

Examples:
  procure --as abebe transition REQ-1 submitted
  procure --as tigist transition REQ-1 returned --comment "quantities too high"
  procure --as hana transition REQ-1 completed --attachment po-2026-118.pdf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			return wire.StageAdapter().Transition(ctx, primary.TransitionRequest{
				ActorID:       actor,
				RequestID:     args[0],
				ToStage:       args[1],
				Decision:      decision,
				Comment:       comment,
				AttachmentRef: attachment,
			})
		},
	}

	cmd.Flags().StringVar(&decision, "decision", "", "Decision label (defaults to the target stage)")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment recorded with the transition")
	cmd.Flags().StringVar(&attachment, "attachment", "", "Reference to a supporting document")

	return cmd
}

// TimelineCmd returns the timeline command
func TimelineCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "timeline [request-id]",
		Short: "Show the stage history of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			adapter := wire.StageAdapter()
			if err := adapter.Timeline(ctx, actor, args[0]); err != nil {
				return err
			}
			if verify {
				return adapter.Verify(ctx, args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Also check that the history is an unbroken chain")

	return cmd
}

// BudgetCmd returns the budget command
func BudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget [request-id]",
		Short: "Compare a request against its program budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			return wire.StageAdapter().Budget(ctx, actor, args[0])
		},
	}
}
