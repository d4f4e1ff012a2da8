package app

import (
	"context"
	"testing"

	"github.com/example/procure/internal/ports/primary"
)

func TestBudgetCompare(t *testing.T) {
	tests := []struct {
		name          string
		fundingSource string
		dropSettings  bool
		wantKnown     bool
		wantGap       string
		wantEarmarked bool
		wantEarGap    string
		wantOver      bool
	}{
		{name: "pooled", wantKnown: true, wantGap: "230"},
		{name: "earmarked", fundingSource: "GF", wantKnown: true, wantGap: "230", wantEarmarked: true, wantEarGap: "-270", wantOver: true},
		{name: "unknown budget", dropSettings: true, wantKnown: false, wantGap: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			resp, err := f.request.CreateDraft(ctx, primary.CreateDraftRequest{
				ActorID:         "alice",
				ProgramID:       "MAL",
				Year:            2026,
				FacilityID:      "F1",
				FundingSourceID: tt.fundingSource,
				ForecastRefs:    []string{"FL-1", "FL-2", "FL-3"},
			})
			if err != nil {
				t.Fatalf("CreateDraft failed: %v", err)
			}
			if tt.dropSettings {
				// Settings removed after creation: the budget becomes unknown.
				delete(f.refs.settings, settingsKey("MAL", 2026))
			}

			c, err := f.budget.Compare(ctx, "wanda", resp.RequestID)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}
			if c.BudgetKnown != tt.wantKnown {
				t.Errorf("BudgetKnown = %v, want %v", c.BudgetKnown, tt.wantKnown)
			}
			if !c.Gap.Equal(dec(tt.wantGap)) {
				t.Errorf("Gap = %s, want %s", c.Gap, tt.wantGap)
			}
			if !c.AllocatedTotal.Equal(dec("900")) {
				t.Errorf("AllocatedTotal = %s, want 900", c.AllocatedTotal)
			}
			if c.EarmarkedKnown != tt.wantEarmarked {
				t.Errorf("EarmarkedKnown = %v, want %v", c.EarmarkedKnown, tt.wantEarmarked)
			}
			if tt.wantEarmarked && !c.EarmarkedGap.Equal(dec(tt.wantEarGap)) {
				t.Errorf("EarmarkedGap = %s, want %s", c.EarmarkedGap, tt.wantEarGap)
			}
			if c.OverBudget != tt.wantOver {
				t.Errorf("OverBudget = %v, want %v", c.OverBudget, tt.wantOver)
			}

			stored := f.storedRequest(t, resp.RequestID)
			if !stored.Total.Equal(dec("770")) {
				t.Errorf("stored Total = %s, comparison must not mutate it", stored.Total)
			}
		})
	}
}

func TestBudgetCompare_ScopeGated(t *testing.T) {
	f := newFixture(t)
	req := f.createThreeLineDraft(t)

	if _, err := f.budget.Compare(context.Background(), "fred", req.ID); !isPermissionDenied(err) {
		t.Errorf("err = %v, want PermissionDeniedError", err)
	}
}
