package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/primary"
)

func TestTransition_RejectsIllegalEdges(t *testing.T) {
	f := newFixture(t)
	req := f.createThreeLineDraft(t)

	tests := []struct {
		name    string
		actor   string
		toStage string
	}{
		{"draft cannot skip to procurement", "nina", "in_procurement"},
		{"draft cannot be approved", "nina", "approved"},
		{"draft cannot complete", "nina", "completed"},
		{"unknown stage", "nina", "rejected"},
		{"self loop", "alice", "draft"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.stage.Transition(context.Background(), primary.TransitionRequest{
				ActorID:  tt.actor,
				Snapshot: req,
				ToStage:  tt.toStage,
			})
			var ite *errs.IllegalTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("err = %v, want IllegalTransitionError", err)
			}
			if ite.From != "draft" || ite.To != tt.toStage {
				t.Errorf("error = %s -> %s, want draft -> %s", ite.From, ite.To, tt.toStage)
			}
		})
	}

	if got := f.storedRequest(t, req.ID).CurrentStage; got != "draft" {
		t.Errorf("CurrentStage = %q, want draft", got)
	}
	if n := len(f.requests.transitions); n != 0 {
		t.Errorf("len(transitions) = %d, want 0", n)
	}
}

func TestTransition_WoredaReviewerOutsideScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.createThreeLineDraft(t)

	submitted, err := f.stage.Submit(ctx, primary.ActionRequest{ActorID: "alice", Snapshot: req})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_, err = f.stage.Approve(ctx, primary.ActionRequest{ActorID: "walt", Snapshot: submitted.Request})
	var pde *errs.PermissionDeniedError
	if !errors.As(err, &pde) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
	if !strings.Contains(pde.Reason, "outside the woreda scope") {
		t.Errorf("Reason = %q, want scope reason", pde.Reason)
	}
	if got := f.storedRequest(t, req.ID).CurrentStage; got != "submitted" {
		t.Errorf("CurrentStage = %q, want submitted", got)
	}
}

func TestTransition_SnapshotCannotMoveFacility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.createThreeLineDraft(t)

	if _, err := f.stage.Submit(ctx, primary.ActionRequest{ActorID: "alice", Snapshot: req}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// walt reviews W3 (F4 only); the request lives at F1.
	forged := &primary.Request{ID: req.ID, Stage: "submitted", FacilityID: "F4"}
	_, err := f.stage.Approve(ctx, primary.ActionRequest{ActorID: "walt", Snapshot: forged})
	if !isPermissionDenied(err) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}

	stored := f.storedRequest(t, req.ID)
	if stored.CurrentStage != "submitted" {
		t.Errorf("CurrentStage = %q, want submitted", stored.CurrentStage)
	}
	if stored.FacilityID != "F1" {
		t.Errorf("FacilityID = %q, want F1", stored.FacilityID)
	}
}

func TestTransition_SnapshotCannotChangeOwner(t *testing.T) {
	f := newFixture(t)
	req := f.createThreeLineDraft(t)

	forged := *req
	forged.OwnerID = "bob"
	_, err := f.stage.Submit(context.Background(), primary.ActionRequest{ActorID: "bob", Snapshot: &forged})
	if !isPermissionDenied(err) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
	if got := f.storedRequest(t, req.ID).CurrentStage; got != "draft" {
		t.Errorf("CurrentStage = %q, want draft", got)
	}
}

func TestTransition_PermissionMatrix(t *testing.T) {
	tests := []struct {
		name    string
		actor   string
		allowed bool
	}{
		{"requester cannot approve own request", "alice", false},
		{"woreda reviewer approves", "wanda", true},
		{"zone reviewer approves", "zoe", true},
		{"regional procurement officer cannot approve", "paul", false},
		{"national admin approves", "nina", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			req := f.createThreeLineDraft(t)
			submitted, err := f.stage.Submit(ctx, primary.ActionRequest{ActorID: "alice", Snapshot: req})
			if err != nil {
				t.Fatalf("Submit failed: %v", err)
			}

			_, err = f.stage.Approve(ctx, primary.ActionRequest{ActorID: tt.actor, Snapshot: submitted.Request})
			if tt.allowed && err != nil {
				t.Errorf("Approve by %s failed: %v", tt.actor, err)
			}
			if !tt.allowed && !isPermissionDenied(err) {
				t.Errorf("Approve by %s: err = %v, want PermissionDeniedError", tt.actor, err)
			}
		})
	}
}

func TestTransition_OnlyOwnerSubmits(t *testing.T) {
	f := newFixture(t)
	req := f.createThreeLineDraft(t)

	_, err := f.stage.Submit(context.Background(), primary.ActionRequest{ActorID: "bob", Snapshot: req})
	if !isPermissionDenied(err) {
		t.Errorf("err = %v, want PermissionDeniedError", err)
	}
}

func TestTransition_ReturnRequiresComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.createThreeLineDraft(t)
	submitted, err := f.stage.Submit(ctx, primary.ActionRequest{ActorID: "alice", Snapshot: req})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_, err = f.stage.Return(ctx, primary.ActionRequest{ActorID: "wanda", Snapshot: submitted.Request})
	if !isValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestTransition_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.createThreeLineDraft(t)

	steps := []struct {
		actor     string
		toStage   string
		comment   string
		wantState string
	}{
		{"alice", "submitted", "", "active"},
		{"zoe", "returned", "split by quarter", "active"},
		{"alice", "draft", "", "active"},
		{"alice", "submitted", "", "active"},
		{"wanda", "approved", "", "active"},
		{"paul", "in_procurement", "", "active"},
		{"paul", "completed", "", "closed"},
	}

	snapshot := req
	for _, step := range steps {
		resp, err := f.stage.Transition(ctx, primary.TransitionRequest{
			ActorID:  step.actor,
			Snapshot: snapshot,
			ToStage:  step.toStage,
			Comment:  step.comment,
		})
		if err != nil {
			t.Fatalf("%s -> %s by %s failed: %v", snapshot.Stage, step.toStage, step.actor, err)
		}
		if resp.Request.Stage != step.toStage || resp.Request.Status != step.wantState {
			t.Errorf("after %s: stage/status = %s/%s", step.toStage, resp.Request.Stage, resp.Request.Status)
		}
		snapshot = resp.Request
	}

	if snapshot.ClosedAt == "" {
		t.Error("ClosedAt should be set on completion")
	}

	timeline, err := f.audit.Timeline(ctx, "nina", req.ID)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if len(timeline) != len(steps) {
		t.Fatalf("len(timeline) = %d, want %d", len(timeline), len(steps))
	}
	prev := "draft"
	for i, tr := range timeline {
		if tr.FromStage != prev {
			t.Errorf("timeline[%d].FromStage = %q, want %q", i, tr.FromStage, prev)
		}
		prev = tr.ToStage
	}
	if timeline[1].Comment != "split by quarter" || timeline[1].ActorID != "zoe" {
		t.Errorf("timeline[1] = %+v", timeline[1])
	}

	report, err := f.audit.Verify(ctx, req.ID)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.Intact {
		t.Errorf("report problems: %v", report.Problems)
	}

	// Terminal stages have no way out.
	_, err = f.stage.Transition(ctx, primary.TransitionRequest{ActorID: "nina", Snapshot: snapshot, ToStage: "cancelled"})
	var ite *errs.IllegalTransitionError
	if !errors.As(err, &ite) {
		t.Errorf("err = %v, want IllegalTransitionError", err)
	}
}

func TestTransition_StaleSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.createThreeLineDraft(t)

	if _, err := f.stage.Submit(ctx, primary.ActionRequest{ActorID: "alice", Snapshot: req}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Same draft snapshot again: the stored stage moved on.
	_, err := f.stage.Submit(ctx, primary.ActionRequest{ActorID: "alice", Snapshot: req})
	var sse *errs.StaleStageError
	if !errors.As(err, &sse) {
		t.Fatalf("err = %v, want StaleStageError", err)
	}
	if !errs.IsRetryable(err) {
		t.Error("StaleStageError should be retryable")
	}
	if n := len(f.requests.transitions); n != 1 {
		t.Errorf("len(transitions) = %d, want 1", n)
	}
}

func TestTransition_ByRequestID(t *testing.T) {
	f := newFixture(t)
	req := f.createThreeLineDraft(t)

	resp, err := f.stage.Submit(context.Background(), primary.ActionRequest{ActorID: "alice", RequestID: req.ID})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if resp.Transition.Decision != "submitted" {
		t.Errorf("Decision = %q, want default %q", resp.Transition.Decision, "submitted")
	}
}

func TestTransition_ConcurrentApprovals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.createThreeLineDraft(t)

	submitted, err := f.stage.Submit(ctx, primary.ActionRequest{ActorID: "alice", Snapshot: req})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	snapshot := submitted.Request

	approvers := []string{"wanda", "zoe"}
	errCh := make(chan error, len(approvers))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, actor := range approvers {
		wg.Add(1)
		go func(actor string) {
			defer wg.Done()
			<-start
			_, err := f.stage.Approve(ctx, primary.ActionRequest{ActorID: actor, Snapshot: snapshot})
			errCh <- err
		}(actor)
	}
	close(start)
	wg.Wait()
	close(errCh)

	var successes, stale int
	for err := range errCh {
		var sse *errs.StaleStageError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &sse):
			stale++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 || stale != 1 {
		t.Errorf("successes = %d, stale = %d, want 1 and 1", successes, stale)
	}

	timeline, err := f.audit.Timeline(ctx, "nina", req.ID)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	approvals := 0
	for _, tr := range timeline {
		if tr.FromStage == "submitted" {
			approvals++
		}
	}
	if approvals != 1 {
		t.Errorf("transitions from submitted = %d, want 1", approvals)
	}
}
