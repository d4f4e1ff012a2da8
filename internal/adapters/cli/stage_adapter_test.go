package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/primary"
)

func newStageAdapter(stages *mockStageService, audit *mockAuditService, budget *mockBudgetService, buf *bytes.Buffer) *StageAdapter {
	return NewStageAdapter(stages, audit, budget, buf)
}

// ============================================================================
// Transition Tests
// ============================================================================

func TestStageAdapter_Transition_Success(t *testing.T) {
	stages := &mockStageService{
		transitionFn: func(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResponse, error) {
			return &primary.TransitionResponse{
				Request:    &primary.Request{ID: req.RequestID, Stage: req.ToStage, Status: "active"},
				Transition: &primary.Transition{RequestID: req.RequestID, FromStage: "draft", ToStage: req.ToStage},
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := newStageAdapter(stages, &mockAuditService{}, &mockBudgetService{}, &buf)

	err := adapter.Transition(context.Background(), primary.TransitionRequest{
		ActorID:   "abebe",
		RequestID: "REQ-001",
		ToStage:   "submitted",
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stages.lastTransReq.ActorID != "abebe" {
		t.Errorf("expected actor passed through, got %q", stages.lastTransReq.ActorID)
	}
	output := buf.String()
	if !strings.Contains(output, "REQ-001") || !strings.Contains(output, "submitted") {
		t.Errorf("unexpected output: %s", output)
	}
	if strings.Contains(output, "closed") {
		t.Errorf("active request should not be reported closed: %s", output)
	}
}

func TestStageAdapter_Transition_Closed(t *testing.T) {
	stages := &mockStageService{
		transitionFn: func(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResponse, error) {
			return &primary.TransitionResponse{
				Request:    &primary.Request{ID: req.RequestID, Stage: "completed", Status: "closed", ClosedAt: "2026-03-01T10:00:00Z"},
				Transition: &primary.Transition{RequestID: req.RequestID, FromStage: "in_procurement", ToStage: "completed"},
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := newStageAdapter(stages, &mockAuditService{}, &mockBudgetService{}, &buf)

	if err := adapter.Transition(context.Background(), primary.TransitionRequest{RequestID: "REQ-001", ToStage: "completed"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "Request closed at 2026-03-01T10:00:00Z") {
		t.Errorf("expected close notice, got %s", buf.String())
	}
}

func TestStageAdapter_Transition_Stale(t *testing.T) {
	stages := &mockStageService{
		transitionFn: func(ctx context.Context, req primary.TransitionRequest) (*primary.TransitionResponse, error) {
			return nil, &errs.StaleStageError{RequestID: req.RequestID, Expected: "submitted"}
		},
	}
	var buf bytes.Buffer
	adapter := newStageAdapter(stages, &mockAuditService{}, &mockBudgetService{}, &buf)

	err := adapter.Transition(context.Background(), primary.TransitionRequest{RequestID: "REQ-001", ToStage: "approved"})

	var stale *errs.StaleStageError
	if !errors.As(err, &stale) {
		t.Fatalf("expected StaleStageError to survive wrapping, got %v", err)
	}
	if !strings.Contains(err.Error(), "retry") {
		t.Errorf("expected retry hint, got %v", err)
	}
}

// ============================================================================
// Timeline / Verify Tests
// ============================================================================

func TestStageAdapter_Timeline(t *testing.T) {
	audit := &mockAuditService{
		timelineFn: func(ctx context.Context, actorID, requestID string) ([]*primary.Transition, error) {
			return []*primary.Transition{
				{Sequence: 1, FromStage: "draft", ToStage: "submitted", ActorID: "abebe", Decision: "submitted"},
				{Sequence: 2, FromStage: "submitted", ToStage: "returned", ActorID: "tigist", Decision: "returned", Comment: "quantities too high", AttachmentRef: "memo-12.pdf"},
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := newStageAdapter(&mockStageService{}, audit, &mockBudgetService{}, &buf)

	if err := adapter.Timeline(context.Background(), "tigist", "REQ-001"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	output := buf.String()
	for _, want := range []string{"abebe", "tigist", "comment: quantities too high", "attachment: memo-12.pdf"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
	if strings.Index(output, "abebe") > strings.Index(output, "tigist") {
		t.Errorf("expected oldest transition first, got:\n%s", output)
	}
}

func TestStageAdapter_Timeline_Empty(t *testing.T) {
	var buf bytes.Buffer
	adapter := newStageAdapter(&mockStageService{}, &mockAuditService{}, &mockBudgetService{}, &buf)

	if err := adapter.Timeline(context.Background(), "abebe", "REQ-001"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "No transitions recorded for REQ-001") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestStageAdapter_Verify_Broken(t *testing.T) {
	audit := &mockAuditService{
		verifyFn: func(ctx context.Context, requestID string) (*primary.ChainReport, error) {
			return &primary.ChainReport{
				RequestID: requestID,
				Problems:  []string{"transition 2 starts at approved, previous ended at submitted"},
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := newStageAdapter(&mockStageService{}, audit, &mockBudgetService{}, &buf)

	err := adapter.Verify(context.Background(), "REQ-001")

	if err == nil {
		t.Fatal("expected error for broken ledger")
	}
	if !strings.Contains(buf.String(), "starts at approved") {
		t.Errorf("expected problem listed, got %s", buf.String())
	}
}

func TestStageAdapter_Verify_Intact(t *testing.T) {
	var buf bytes.Buffer
	adapter := newStageAdapter(&mockStageService{}, &mockAuditService{}, &mockBudgetService{}, &buf)

	if err := adapter.Verify(context.Background(), "REQ-001"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "ledger intact") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

// ============================================================================
// Budget Tests
// ============================================================================

func TestStageAdapter_Budget(t *testing.T) {
	tests := []struct {
		name       string
		comparison *primary.BudgetComparison
		want       []string
		notWant    []string
	}{
		{
			name: "pooled within budget",
			comparison: &primary.BudgetComparison{
				RequestID: "REQ-001", ProgramID: "MAL", Year: 2026,
				BudgetKnown: true, BudgetTotal: d("1000"), AllocatedTotal: d("900"),
				RequestTotal: d("550"), Gap: d("450"),
			},
			want:    []string{"Program budget", "1000.00", "450.00"},
			notWant: []string{"Over budget", "allocation"},
		},
		{
			name: "earmarked over allocation",
			comparison: &primary.BudgetComparison{
				RequestID: "REQ-001", ProgramID: "MAL", Year: 2026,
				BudgetKnown: true, BudgetTotal: d("1000"), RequestTotal: d("550"), Gap: d("450"),
				FundingSourceID: "GOV", EarmarkedKnown: true,
				EarmarkedAllocation: d("400"), EarmarkedGap: d("-150"), OverBudget: true,
			},
			want: []string{"GOV allocation", "400.00", "-150.00", "Over budget"},
		},
		{
			name: "unknown budget",
			comparison: &primary.BudgetComparison{
				RequestID: "REQ-001", ProgramID: "TB", Year: 2030, RequestTotal: d("10"),
			},
			want:    []string{"unknown"},
			notWant: []string{"Gap"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budget := &mockBudgetService{
				compareFn: func(ctx context.Context, actorID, requestID string) (*primary.BudgetComparison, error) {
					return tt.comparison, nil
				},
			}
			var buf bytes.Buffer
			adapter := newStageAdapter(&mockStageService{}, &mockAuditService{}, budget, &buf)

			if err := adapter.Budget(context.Background(), "hana", "REQ-001"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			output := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(output, w) {
					t.Errorf("expected %q in output, got:\n%s", w, output)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(output, w) {
					t.Errorf("did not expect %q in output, got:\n%s", w, output)
				}
			}
		})
	}
}
