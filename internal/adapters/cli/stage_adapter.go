package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/primary"
)

// StageAdapter translates CLI lifecycle operations to StageService,
// AuditService and BudgetService calls.
type StageAdapter struct {
	stages primary.StageService
	audit  primary.AuditService
	budget primary.BudgetService
	out    io.Writer
}

// NewStageAdapter creates a new StageAdapter.
func NewStageAdapter(stages primary.StageService, audit primary.AuditService, budget primary.BudgetService, out io.Writer) *StageAdapter {
	return &StageAdapter{
		stages: stages,
		audit:  audit,
		budget: budget,
		out:    out,
	}
}

// Transition moves a request to a new stage.
func (a *StageAdapter) Transition(ctx context.Context, req primary.TransitionRequest) error {
	resp, err := a.stages.Transition(ctx, req)
	if err != nil {
		var stale *errs.StaleStageError
		if errors.As(err, &stale) {
			return fmt.Errorf("%w: re-read the request and retry", err)
		}
		return err
	}

	t := resp.Transition
	fmt.Fprintf(a.out, "✓ %s: %s → %s\n", t.RequestID, colorStage(t.FromStage, 0), colorStage(t.ToStage, 0))
	if resp.Request.Status == "closed" {
		fmt.Fprintf(a.out, "  Request closed at %s\n", resp.Request.ClosedAt)
	}
	return nil
}

// Timeline prints the stage ledger of a request oldest first.
func (a *StageAdapter) Timeline(ctx context.Context, actorID, requestID string) error {
	transitions, err := a.audit.Timeline(ctx, actorID, requestID)
	if err != nil {
		return fmt.Errorf("failed to get timeline: %w", err)
	}

	if len(transitions) == 0 {
		fmt.Fprintf(a.out, "No transitions recorded for %s\n", requestID)
		return nil
	}

	fmt.Fprintf(a.out, "\n%-4s %-32s %-16s %-16s %-10s %s\n", "SEQ", "AT", "FROM", "TO", "ACTOR", "DECISION")
	fmt.Fprintln(a.out, rule)
	for _, t := range transitions {
		fmt.Fprintf(a.out, "%-4d %-32s %s %s %-10s %s\n",
			t.Sequence, t.CreatedAt, colorStage(t.FromStage, 16), colorStage(t.ToStage, 16), t.ActorID, t.Decision)
		if t.Comment != "" {
			fmt.Fprintf(a.out, "     comment: %s\n", t.Comment)
		}
		if t.AttachmentRef != "" {
			fmt.Fprintf(a.out, "     attachment: %s\n", t.AttachmentRef)
		}
	}
	fmt.Fprintln(a.out)

	return nil
}

// Verify checks the ledger chain of a request.
func (a *StageAdapter) Verify(ctx context.Context, requestID string) error {
	report, err := a.audit.Verify(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to verify ledger: %w", err)
	}

	if report.Intact {
		fmt.Fprintf(a.out, "✓ %s ledger intact (%d transitions, at %s)\n",
			report.RequestID, report.Transitions, report.CurrentStage)
		return nil
	}

	fmt.Fprintf(a.out, "✗ %s ledger broken:\n", report.RequestID)
	for _, p := range report.Problems {
		fmt.Fprintf(a.out, "  - %s\n", p)
	}
	return fmt.Errorf("ledger for %s has %d problem(s)", report.RequestID, len(report.Problems))
}

// Budget prints the budget comparison of a request.
func (a *StageAdapter) Budget(ctx context.Context, actorID, requestID string) error {
	c, err := a.budget.Compare(ctx, actorID, requestID)
	if err != nil {
		return fmt.Errorf("failed to compare budget: %w", err)
	}

	fmt.Fprintf(a.out, "\nBudget for %s (%s/%d)\n", c.RequestID, c.ProgramID, c.Year)
	fmt.Fprintln(a.out, rule)
	fmt.Fprintf(a.out, "%-24s %14s\n", "Request total", money(c.RequestTotal))
	if !c.BudgetKnown {
		fmt.Fprintln(a.out, "Program budget           unknown")
	} else {
		fmt.Fprintf(a.out, "%-24s %14s\n", "Program budget", money(c.BudgetTotal))
		fmt.Fprintf(a.out, "%-24s %14s\n", "Allocated", money(c.AllocatedTotal))
		fmt.Fprintf(a.out, "%-24s %14s\n", "Gap", colorGap(c.Gap))
	}
	if c.FundingSourceID != "" {
		if c.EarmarkedKnown {
			fmt.Fprintf(a.out, "%-24s %14s\n", c.FundingSourceID+" allocation", money(c.EarmarkedAllocation))
			fmt.Fprintf(a.out, "%-24s %14s\n", c.FundingSourceID+" gap", colorGap(c.EarmarkedGap))
		} else {
			fmt.Fprintf(a.out, "%-24s %14s\n", c.FundingSourceID+" allocation", "none")
		}
	}
	if c.OverBudget {
		fmt.Fprintln(a.out, "\nOver budget")
	}
	fmt.Fprintln(a.out)

	return nil
}
