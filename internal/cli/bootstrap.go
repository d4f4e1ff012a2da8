// Package cli provides CLI commands for the procure application.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/procure/internal/ctxutil"
	"github.com/example/procure/internal/wire"
)

// globalActorID stores the acting user for the current CLI invocation.
// Set once at startup by BindGlobalFlags' pre-run hook.
var globalActorID string

// BindGlobalFlags adds the persistent --as and --dir flags to root and
// stores their values before any subcommand runs.
func BindGlobalFlags(root *cobra.Command) {
	var actor, dir string
	root.PersistentFlags().StringVar(&actor, "as", "", "acting user id (defaults to $PROCURE_USER)")
	root.PersistentFlags().StringVar(&dir, "dir", ".", "directory holding .procure/config.yaml")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if actor == "" {
			actor = os.Getenv("PROCURE_USER")
		}
		globalActorID = strings.TrimSpace(actor)
		wire.SetConfigDir(dir)
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		wire.Close()
	}
}

// GetActorID returns the stored actor ID from CLI startup.
func GetActorID() string {
	return globalActorID
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() context.Context {
	ctx := context.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}

// requireActor returns the acting user carried by ctx.
func requireActor(ctx context.Context) (string, error) {
	actor := ctxutil.ActorFromContext(ctx)
	if actor == "" {
		return "", fmt.Errorf("no acting user: pass --as <user-id> or set PROCURE_USER")
	}
	return actor, nil
}
