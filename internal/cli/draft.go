package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/wire"
)

// DraftCmd returns the draft command
func DraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Build and edit draft requests",
		Long:  `Create procurement requests from forecast lines and adjust their items while they are editable.`,
	}

	cmd.AddCommand(draftCreateCmd())
	cmd.AddCommand(draftOverrideCmd())
	cmd.AddCommand(draftAddItemCmd())
	cmd.AddCommand(draftRemoveItemCmd())

	return cmd
}

func draftCreateCmd() *cobra.Command {
	var (
		program, facility, funding, notes string
		year                              int
		lines                             []string
	)

	cmd := &cobra.Command{
		Use:   "create [forecast-ref...]",
		Short: "Create a draft request",
		Long: `Create a draft procurement request from forecast lines.

Forecast refs are looked up in the program's forecast for the year.
Lines not in the stored forecast can be passed inline with --line.

Examples:
  procure --as abebe draft create MAL-2026-001 MAL-2026-002 --program MAL --year 2026 --facility FAC-ADA-HC
  procure --as abebe draft create --program TB --year 2026 --facility FAC-ADA-HC --funding GOV \
      --line "TB-X|Isoniazid 300mg|pack|40|2.50"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			req := primary.CreateDraftRequest{
				ActorID:         actor,
				ProgramID:       program,
				Year:            year,
				FundingSourceID: funding,
				FacilityID:      facility,
				Notes:           notes,
				ForecastRefs:    args,
			}
			for _, l := range lines {
				line, err := parseLine(l)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, line)
			}

			_, err = wire.RequestAdapter().CreateDraft(ctx, req)
			return err
		},
	}

	cmd.Flags().StringVar(&program, "program", "", "Program ID (required)")
	cmd.Flags().IntVar(&year, "year", 0, "Program year (required)")
	cmd.Flags().StringVar(&facility, "facility", "", "Requesting facility ID (required)")
	cmd.Flags().StringVar(&funding, "funding", "", "Earmarked funding source (default pooled)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "Inline forecast line REF|PRODUCT|UNIT|QUANTITY|UNIT_PRICE (repeatable)")
	_ = cmd.MarkFlagRequired("program")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("facility")

	return cmd
}

func draftOverrideCmd() *cobra.Command {
	var quantity, price, reason string

	cmd := &cobra.Command{
		Use:   "override [request-id] [item-id]",
		Short: "Override an item's quantity or unit price",
		Long: `Override the quantity and/or unit price of an item. A reason is required.

Examples:
  procure --as abebe draft override REQ-1 ITEM-1 --quantity 120 --reason "consumption spike"
  procure --as tigist draft override REQ-1 ITEM-2 --price 4.75 --reason "new supplier quote"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			qty, err := parseDecimalFlag("quantity", quantity)
			if err != nil {
				return err
			}
			unitPrice, err := parseDecimalFlag("price", price)
			if err != nil {
				return err
			}

			return wire.RequestAdapter().Override(ctx, primary.AddOverrideRequest{
				ActorID:   actor,
				RequestID: args[0],
				ItemID:    args[1],
				Quantity:  qty,
				UnitPrice: unitPrice,
				Reason:    reason,
			})
		},
	}

	cmd.Flags().StringVar(&quantity, "quantity", "", "New requested quantity")
	cmd.Flags().StringVar(&price, "price", "", "New unit price")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the forecast value is overridden (required)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func draftAddItemCmd() *cobra.Command {
	var name, unit, quantity, price, reason string

	cmd := &cobra.Command{
		Use:   "add-item [request-id]",
		Short: "Add an item that is not in the forecast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			qty, err := decimal.NewFromString(quantity)
			if err != nil {
				return fmt.Errorf("invalid --quantity %q: %w", quantity, err)
			}
			unitPrice, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid --price %q: %w", price, err)
			}

			return wire.RequestAdapter().AddItem(ctx, primary.AddItemRequest{
				ActorID:   actor,
				RequestID: args[0],
				ItemName:  name,
				Unit:      unit,
				Quantity:  qty,
				UnitPrice: unitPrice,
				Reason:    reason,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Item name (required)")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit of measure")
	cmd.Flags().StringVar(&quantity, "quantity", "", "Requested quantity (required)")
	cmd.Flags().StringVar(&price, "price", "", "Unit price (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the item is added (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("quantity")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func draftRemoveItemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-item [request-id] [item-id]",
		Short: "Remove an item from a draft",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}

			return wire.RequestAdapter().RemoveItem(ctx, primary.RemoveItemRequest{
				ActorID:   actor,
				RequestID: args[0],
				ItemID:    args[1],
			})
		},
	}
}
