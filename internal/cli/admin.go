package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/procure/internal/config"
	"github.com/example/procure/internal/wire"
)

// ReconcileCmd returns the reconcile command
func ReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [request-id]",
		Short: "Recompute stored totals from request items",
		Long: `Recompute request totals from the persisted items and fix any drift.
Without a request ID every request is reconciled.

Requires --as to name a national admin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}
			requestID := ""
			if len(args) == 1 {
				requestID = args[0]
			}
			return wire.RequestAdapter().Reconcile(ctx, actor, requestID)
		},
	}
}

// SeedCmd returns the seed command
func SeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Load a demo hierarchy, programs, forecasts and users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.SeedDemo(); err != nil {
				return fmt.Errorf("failed to seed demo data: %w", err)
			}

			fmt.Println("✓ Demo data loaded")
			fmt.Println()
			fmt.Println("Try:")
			fmt.Println("  procure --as abebe draft create MAL-2026-001 MAL-2026-002 --program MAL --year 2026 --facility FAC-ADA-HC")
			fmt.Println("  procure --as tigist request list")
			return nil
		},
	})

	return cmd
}

// RoleCmd returns the role command
func RoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage user roles",
	}

	var level, unit string
	assign := &cobra.Command{
		Use:   "assign [user-id] [role]",
		Short: "Assign a role to a user",
		Long: `Replace a user's role and organizational unit.

Roles: requester, reviewer, procurement_officer, admin
Levels: facility, woreda, zone, regional, national

Requires --as to name a national admin.

Examples:
  procure --as meron role assign tigist reviewer --level woreda --unit WOR-ADA
  procure --as meron role assign selam admin --level national`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			actor, err := requireActor(ctx)
			if err != nil {
				return err
			}
			req, err := assignRoleRequest(args[0], args[1], level, unit)
			if err != nil {
				return err
			}
			req.ActorID = actor
			return wire.RequestAdapter().AssignRole(ctx, req)
		},
	}
	assign.Flags().StringVar(&level, "level", "", "Administrative level (required)")
	assign.Flags().StringVar(&unit, "unit", "", "Organizational unit ID at that level")
	_ = assign.MarkFlagRequired("level")

	cmd.AddCommand(assign)
	return cmd
}

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration",
		Long:  `Write .procure/config.yaml with a SQLite store under ~/.procure and an in-process scope cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			path := config.ConfigPath(dir)

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.SaveConfig(dir, config.Default()); err != nil {
				return err
			}

			fmt.Printf("✓ Wrote %s\n", path)
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  procure seed demo")
			fmt.Println("  procure --as tigist request list")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	return cmd
}
