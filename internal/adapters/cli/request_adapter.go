package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/procure/internal/ports/primary"
)

// RequestAdapter is a thin adapter that translates CLI operations to
// RequestService and ScopeService calls.
type RequestAdapter struct {
	requests primary.RequestService
	scopes   primary.ScopeService
	out      io.Writer
}

// NewRequestAdapter creates a new RequestAdapter.
func NewRequestAdapter(requests primary.RequestService, scopes primary.ScopeService, out io.Writer) *RequestAdapter {
	return &RequestAdapter{
		requests: requests,
		scopes:   scopes,
		out:      out,
	}
}

// CreateDraft creates a draft request from forecast lines.
func (a *RequestAdapter) CreateDraft(ctx context.Context, req primary.CreateDraftRequest) (*primary.CreateDraftResponse, error) {
	resp, err := a.requests.CreateDraft(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Created draft %s (%d items, total %s)\n",
		resp.RequestID, len(resp.Request.Items), money(resp.Request.Total))
	if !resp.BudgetKnown {
		fmt.Fprintf(a.out, "  No settings for %s/%d: PSM charge is zero and budget is unknown\n",
			resp.Request.ProgramID, resp.Request.Year)
	}
	return resp, nil
}

// Override changes the quantity and/or unit price of an item.
func (a *RequestAdapter) Override(ctx context.Context, req primary.AddOverrideRequest) error {
	if req.Quantity == nil && req.UnitPrice == nil {
		return fmt.Errorf("must specify at least --quantity or --price")
	}

	request, err := a.requests.AddOverride(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to override item: %w", err)
	}

	for _, item := range request.Items {
		if item.ID == req.ItemID {
			fmt.Fprintf(a.out, "✓ Item %s now %s × %s = %s\n",
				item.ID, item.Quantity.String(), money(item.UnitPrice), money(item.LineSubtotal))
		}
	}
	fmt.Fprintf(a.out, "  Request %s total %s\n", request.ID, money(request.Total))
	return nil
}

// AddItem appends a manual item.
func (a *RequestAdapter) AddItem(ctx context.Context, req primary.AddItemRequest) error {
	request, err := a.requests.AddItem(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Added %s to %s (total %s)\n", req.ItemName, request.ID, money(request.Total))
	return nil
}

// RemoveItem removes an item.
func (a *RequestAdapter) RemoveItem(ctx context.Context, req primary.RemoveItemRequest) error {
	request, err := a.requests.RemoveItem(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Removed %s from %s (total %s)\n", req.ItemID, request.ID, money(request.Total))
	return nil
}

// Show displays a request with its items and totals.
func (a *RequestAdapter) Show(ctx context.Context, actorID, requestID string) (*primary.Request, error) {
	r, err := a.requests.GetRequest(ctx, actorID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	fmt.Fprintf(a.out, "\nRequest:  %s\n", r.ID)
	fmt.Fprintf(a.out, "Program:  %s/%d\n", r.ProgramID, r.Year)
	fmt.Fprintf(a.out, "Facility: %s\n", r.FacilityID)
	if r.FundingSourceID != "" {
		fmt.Fprintf(a.out, "Funding:  %s\n", r.FundingSourceID)
	} else {
		fmt.Fprintln(a.out, "Funding:  pooled")
	}
	fmt.Fprintf(a.out, "Stage:    %s (%s)\n", colorStage(r.Stage, 0), r.Status)
	fmt.Fprintf(a.out, "Owner:    %s\n", orDash(r.OwnerID))
	if r.Notes != "" {
		fmt.Fprintf(a.out, "Notes:    %s\n", r.Notes)
	}

	fmt.Fprintf(a.out, "\n%-4s %-16s %-28s %12s %12s %14s\n", "#", "FORECAST", "ITEM", "QTY", "PRICE", "SUBTOTAL")
	fmt.Fprintln(a.out, rule)
	for _, item := range r.Items {
		marker := ""
		if item.Override {
			marker = " *"
		}
		fmt.Fprintf(a.out, "%-4d %-16s %-28s %12s %12s %14s%s\n",
			item.LineNumber, orDash(item.ForecastLineRef), item.ItemName,
			item.Quantity.String(), money(item.UnitPrice), money(item.LineSubtotal), marker)
	}
	fmt.Fprintln(a.out, rule)
	fmt.Fprintf(a.out, "%-77s %14s\n", "Subtotal", money(r.Subtotal))
	fmt.Fprintf(a.out, "%-77s %14s\n", fmt.Sprintf("PSM (%s%%)", r.PSMPercent.String()), money(r.PSMAmount))
	fmt.Fprintf(a.out, "%-77s %14s\n", "Total", money(r.Total))
	for _, item := range r.Items {
		if item.Override && item.OverrideReason != "" {
			fmt.Fprintf(a.out, "  * line %d: %s\n", item.LineNumber, item.OverrideReason)
		}
	}
	fmt.Fprintln(a.out)

	return r, nil
}

// List lists the requests visible to the actor.
func (a *RequestAdapter) List(ctx context.Context, actorID string, filters primary.RequestFilters) error {
	requests, err := a.scopes.VisibleRequests(ctx, actorID, filters)
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}

	if len(requests) == 0 {
		fmt.Fprintln(a.out, "No requests found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-10s %-14s %-16s %14s\n", "ID", "PROGRAM", "FACILITY", "STAGE", "TOTAL")
	fmt.Fprintln(a.out, rule)
	for _, r := range requests {
		fmt.Fprintf(a.out, "%-38s %-10s %-14s %s %14s\n",
			r.ID, fmt.Sprintf("%s/%d", r.ProgramID, r.Year), r.FacilityID, colorStage(r.Stage, 16), money(r.Total))
	}
	fmt.Fprintln(a.out)

	return nil
}

// Reconcile recomputes one request's totals, or every request's when
// requestID is empty.
func (a *RequestAdapter) Reconcile(ctx context.Context, actorID, requestID string) error {
	var results []*primary.ReconcileResult
	if requestID != "" {
		result, err := a.requests.Reconcile(ctx, actorID, requestID)
		if err != nil {
			return fmt.Errorf("failed to reconcile %s: %w", requestID, err)
		}
		results = append(results, result)
	} else {
		all, err := a.requests.ReconcileAll(ctx, actorID)
		if err != nil {
			return fmt.Errorf("failed to reconcile: %w", err)
		}
		results = all
	}

	changed := 0
	for _, r := range results {
		if !r.Changed {
			continue
		}
		changed++
		fmt.Fprintf(a.out, "  %s: %s → %s\n", r.RequestID, money(r.PreviousTotal), money(r.Total))
	}
	fmt.Fprintf(a.out, "✓ Reconciled %d request(s), %d corrected\n", len(results), changed)
	return nil
}

// AssignRole replaces a user's role.
func (a *RequestAdapter) AssignRole(ctx context.Context, req primary.AssignRoleRequest) error {
	if err := a.scopes.ReassignRole(ctx, req); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	scope, err := a.scopes.ResolveScope(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve scope: %w", err)
	}

	if scope.Wildcard {
		fmt.Fprintf(a.out, "✓ %s is now %s at national level (all facilities)\n", req.UserID, req.Role)
		return nil
	}
	fmt.Fprintf(a.out, "✓ %s is now %s at %s %s (%d facilities)\n",
		req.UserID, req.Role, scope.Level, scope.RootID, len(scope.FacilityIDs))
	return nil
}
