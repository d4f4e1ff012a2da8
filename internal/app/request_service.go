package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	corerequest "github.com/example/procure/internal/core/request"
	corescope "github.com/example/procure/internal/core/scope"
	corestage "github.com/example/procure/internal/core/stage"
	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/ports/secondary"
)

// RequestServiceImpl implements the RequestService interface.
type RequestServiceImpl struct {
	requestRepo secondary.RequestRepository
	refRepo     secondary.ReferenceRepository
	scopes      authorizer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRequestService creates a new RequestService with injected dependencies.
func NewRequestService(
	requestRepo secondary.RequestRepository,
	refRepo secondary.ReferenceRepository,
	scopes *ScopeServiceImpl,
	logger zerolog.Logger,
) *RequestServiceImpl {
	return &RequestServiceImpl{
		requestRepo: requestRepo,
		refRepo:     refRepo,
		scopes:      scopes,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateDraft builds a draft request from the selected forecast lines.
func (s *RequestServiceImpl) CreateDraft(ctx context.Context, req primary.CreateDraftRequest) (*primary.CreateDraftResponse, error) {
	// 1. Validate input
	if strings.TrimSpace(req.ProgramID) == "" {
		return nil, errs.Invalid("program_id", "is required")
	}
	if req.Year <= 0 {
		return nil, errs.Invalid("year", "must be positive")
	}
	if strings.TrimSpace(req.FacilityID) == "" {
		return nil, errs.Invalid("facility_id", "is required")
	}

	// 2. Authorize against the requesting facility
	if err := s.scopes.authorize(ctx, req.ActorID, req.FacilityID, "", corescope.ActionCreate); err != nil {
		return nil, err
	}

	// 3. Gather lines and build items
	lines, err := s.collectLines(ctx, req)
	if err != nil {
		return nil, err
	}
	items, err := corerequest.BuildItems(lines)
	if err != nil {
		return nil, err
	}

	// 4. Snapshot the margin; a program year without settings has none
	psmPercent := decimal.Zero
	budgetKnown := true
	settings, err := s.refRepo.GetProgramSettings(ctx, req.ProgramID, req.Year)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		budgetKnown = false
	case err != nil:
		return nil, fmt.Errorf("failed to load program settings: %w", err)
	default:
		psmPercent = settings.PSMPercent
	}

	items, t, err := corerequest.Recalculate(items, psmPercent)
	if err != nil {
		return nil, err
	}

	// 5. Persist request and items together
	now := s.timestamp()
	record := &secondary.RequestRecord{
		ID:              uuid.NewString(),
		ProgramID:       req.ProgramID,
		Year:            req.Year,
		FundingSourceID: req.FundingSourceID,
		FacilityID:      req.FacilityID,
		CurrentStage:    string(corestage.InitialStage()),
		Status:          string(corestage.InitialStage().Status()),
		PSMPercent:      psmPercent,
		PSMAmount:       t.PSMAmount,
		Subtotal:        t.Subtotal,
		Total:           t.Total,
		Notes:           req.Notes,
		OwnerID:         req.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	itemRecords := make([]*secondary.ItemRecord, len(items))
	for i, it := range items {
		it.ID = uuid.NewString()
		it.RequestID = record.ID
		itemRecords[i] = itemToRecord(it)
	}

	if err := s.requestRepo.CreateWithItems(ctx, record, itemRecords); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Info().
		Str("request_id", record.ID).
		Str("program_id", record.ProgramID).
		Int("year", record.Year).
		Str("facility_id", record.FacilityID).
		Int("items", len(itemRecords)).
		Str("total", record.Total.StringFixed(2)).
		Bool("budget_known", budgetKnown).
		Msg("draft created")

	return &primary.CreateDraftResponse{
		RequestID:   record.ID,
		Request:     recordToRequest(record, itemRecords),
		BudgetKnown: budgetKnown,
	}, nil
}

// AddOverride changes the quantity and/or price of one item.
func (s *RequestServiceImpl) AddOverride(ctx context.Context, req primary.AddOverrideRequest) (*primary.Request, error) {
	return s.editItems(ctx, req.ActorID, req.RequestID, func(items []corerequest.Item) ([]corerequest.Item, []string, error) {
		idx := indexOfItem(items, req.ItemID)
		if idx < 0 {
			return nil, nil, errs.NotFound("item", req.ItemID)
		}
		updated, err := corerequest.ApplyOverride(items[idx], corerequest.OverrideInput{
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			Reason:    req.Reason,
		})
		if err != nil {
			return nil, nil, err
		}
		items[idx] = updated
		return items, nil, nil
	})
}

// AddItem appends a manual, unlinked item.
func (s *RequestServiceImpl) AddItem(ctx context.Context, req primary.AddItemRequest) (*primary.Request, error) {
	return s.editItems(ctx, req.ActorID, req.RequestID, func(items []corerequest.Item) ([]corerequest.Item, []string, error) {
		it, err := corerequest.NewManualItem(req.ItemName, req.Unit, req.Quantity, req.UnitPrice, req.Reason)
		if err != nil {
			return nil, nil, err
		}
		it.ID = uuid.NewString()
		it.RequestID = req.RequestID
		it.LineNumber = corerequest.NextLineNumber(items)
		return append(items, it), nil, nil
	})
}

// RemoveItem removes one item. The last item cannot be removed.
func (s *RequestServiceImpl) RemoveItem(ctx context.Context, req primary.RemoveItemRequest) (*primary.Request, error) {
	return s.editItems(ctx, req.ActorID, req.RequestID, func(items []corerequest.Item) ([]corerequest.Item, []string, error) {
		idx := indexOfItem(items, req.ItemID)
		if idx < 0 {
			return nil, nil, errs.NotFound("item", req.ItemID)
		}
		if len(items) == 1 {
			return nil, nil, errs.Invalid("items", "a request must keep at least one item")
		}
		kept := append(items[:idx:idx], items[idx+1:]...)
		return kept, []string{req.ItemID}, nil
	})
}

// GetRequest retrieves a request and its items.
func (s *RequestServiceImpl) GetRequest(ctx context.Context, actorID, requestID string) (*primary.Request, error) {
	record, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if err := s.scopes.authorize(ctx, actorID, record.FacilityID, record.OwnerID, corescope.ActionView); err != nil {
		return nil, err
	}
	items, err := s.requestRepo.GetItems(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	return recordToRequest(record, items), nil
}

// Reconcile recomputes the request totals from its persisted items and
// rewrites them when they drifted.
func (s *RequestServiceImpl) Reconcile(ctx context.Context, actorID, requestID string) (*primary.ReconcileResult, error) {
	if err := s.scopes.authorizeAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, requestID)
}

// ReconcileAll reconciles every request.
func (s *RequestServiceImpl) ReconcileAll(ctx context.Context, actorID string) ([]*primary.ReconcileResult, error) {
	if err := s.scopes.authorizeAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	records, err := s.requestRepo.List(ctx, secondary.RequestFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	results := make([]*primary.ReconcileResult, 0, len(records))
	for _, r := range records {
		res, err := s.reconcile(ctx, r.ID)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *RequestServiceImpl) reconcile(ctx context.Context, requestID string) (*primary.ReconcileResult, error) {
	record, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	itemRecords, err := s.requestRepo.GetItems(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	items := recordsToItems(itemRecords)
	recalculated, t, err := corerequest.Recalculate(items, record.PSMPercent)
	if err != nil {
		return nil, err
	}

	result := &primary.ReconcileResult{
		RequestID:     requestID,
		PreviousTotal: record.Total,
		Subtotal:      t.Subtotal,
		PSMAmount:     t.PSMAmount,
		Total:         t.Total,
	}

	var drifted []*secondary.ItemRecord
	for i, it := range recalculated {
		if !it.LineSubtotal.Equal(items[i].LineSubtotal) {
			drifted = append(drifted, itemToRecord(it))
		}
	}
	totalsDrifted := !record.Subtotal.Equal(t.Subtotal) ||
		!record.PSMAmount.Equal(t.PSMAmount) ||
		!record.Total.Equal(t.Total)
	if len(drifted) == 0 && !totalsDrifted {
		return result, nil
	}

	err = s.requestRepo.SaveItemsWithTotals(ctx, secondary.ItemChange{
		RequestID:     requestID,
		ExpectedStage: record.CurrentStage,
		Upserts:       drifted,
		Subtotal:      t.Subtotal,
		PSMAmount:     t.PSMAmount,
		Total:         t.Total,
		UpdatedAt:     s.timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile request %s: %w", requestID, err)
	}

	result.Changed = true
	s.logger.Warn().
		Str("request_id", requestID).
		Str("previous_total", record.Total.StringFixed(2)).
		Str("total", t.Total.StringFixed(2)).
		Int("items_repaired", len(drifted)).
		Msg("request totals reconciled")
	return result, nil
}

// itemMutation edits an item set. It returns the new set and the ids of
// removed items.
type itemMutation func(items []corerequest.Item) ([]corerequest.Item, []string, error)

// editItems runs one item mutation: it checks permission and stage, applies
// the mutation, recomputes every total and persists items and totals in one
// repository call.
func (s *RequestServiceImpl) editItems(ctx context.Context, actorID, requestID string, mutate itemMutation) (*primary.Request, error) {
	record, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}

	if err := s.scopes.authorize(ctx, actorID, record.FacilityID, record.OwnerID, corescope.ActionEdit); err != nil {
		return nil, err
	}

	current, err := corestage.ParseStage(record.CurrentStage)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestID, err)
	}
	if result := corestage.CanEditItems(corestage.EditContext{RequestID: requestID, Stage: current}); !result.Allowed {
		return nil, errs.Invalid("stage", result.Reason)
	}

	itemRecords, err := s.requestRepo.GetItems(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	items, deleted, err := mutate(recordsToItems(itemRecords))
	if err != nil {
		return nil, err
	}
	items, t, err := corerequest.Recalculate(items, record.PSMPercent)
	if err != nil {
		return nil, err
	}

	upserts := make([]*secondary.ItemRecord, len(items))
	for i, it := range items {
		upserts[i] = itemToRecord(it)
	}
	change := secondary.ItemChange{
		RequestID:     requestID,
		ExpectedStage: record.CurrentStage,
		Upserts:       upserts,
		DeleteIDs:     deleted,
		Subtotal:      t.Subtotal,
		PSMAmount:     t.PSMAmount,
		Total:         t.Total,
		UpdatedAt:     s.timestamp(),
	}
	if err := s.requestRepo.SaveItemsWithTotals(ctx, change); err != nil {
		return nil, fmt.Errorf("failed to save items: %w", err)
	}

	s.logger.Info().
		Str("request_id", requestID).
		Str("actor_id", actorID).
		Int("items", len(items)).
		Str("subtotal", t.Subtotal.StringFixed(2)).
		Str("total", t.Total.StringFixed(2)).
		Msg("request items updated")

	record.Subtotal = t.Subtotal
	record.PSMAmount = t.PSMAmount
	record.Total = t.Total
	record.UpdatedAt = change.UpdatedAt
	return recordToRequest(record, upserts), nil
}

func (s *RequestServiceImpl) collectLines(ctx context.Context, req primary.CreateDraftRequest) ([]corerequest.ForecastLine, error) {
	lines := make([]corerequest.ForecastLine, 0, len(req.Lines)+len(req.ForecastRefs))
	for _, l := range req.Lines {
		lines = append(lines, corerequest.ForecastLine{
			Ref:       l.Ref,
			Product:   l.Product,
			Unit:      l.Unit,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	if len(req.ForecastRefs) == 0 {
		return lines, nil
	}

	records, err := s.refRepo.GetForecastLines(ctx, req.ProgramID, req.Year, req.ForecastRefs)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast lines: %w", err)
	}
	for _, r := range records {
		lines = append(lines, corerequest.ForecastLine{
			Ref:       r.Ref,
			Product:   r.Product,
			Unit:      r.Unit,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		})
	}
	return lines, nil
}

func (s *RequestServiceImpl) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func indexOfItem(items []corerequest.Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func itemToRecord(it corerequest.Item) *secondary.ItemRecord {
	return &secondary.ItemRecord{
		ID:                it.ID,
		RequestID:         it.RequestID,
		LineNumber:        it.LineNumber,
		ForecastLineRef:   it.ForecastLineRef,
		ItemName:          it.ItemName,
		Unit:              it.Unit,
		OriginalQuantity:  it.OriginalQuantity,
		OriginalUnitPrice: it.OriginalUnitPrice,
		Quantity:          it.Quantity,
		UnitPrice:         it.UnitPrice,
		LineSubtotal:      it.LineSubtotal,
		Override:          it.Override,
		OverrideReason:    it.OverrideReason,
	}
}

func recordsToItems(records []*secondary.ItemRecord) []corerequest.Item {
	items := make([]corerequest.Item, len(records))
	for i, r := range records {
		items[i] = corerequest.Item{
			ID:                r.ID,
			RequestID:         r.RequestID,
			LineNumber:        r.LineNumber,
			ForecastLineRef:   r.ForecastLineRef,
			ItemName:          r.ItemName,
			Unit:              r.Unit,
			OriginalQuantity:  r.OriginalQuantity,
			OriginalUnitPrice: r.OriginalUnitPrice,
			Quantity:          r.Quantity,
			UnitPrice:         r.UnitPrice,
			LineSubtotal:      r.LineSubtotal,
			Override:          r.Override,
			OverrideReason:    r.OverrideReason,
		}
	}
	return items
}

func recordToRequest(r *secondary.RequestRecord, items []*secondary.ItemRecord) *primary.Request {
	out := &primary.Request{
		ID:              r.ID,
		ProgramID:       r.ProgramID,
		Year:            r.Year,
		FundingSourceID: r.FundingSourceID,
		FacilityID:      r.FacilityID,
		Stage:           r.CurrentStage,
		Status:          r.Status,
		PSMPercent:      r.PSMPercent,
		PSMAmount:       r.PSMAmount,
		Subtotal:        r.Subtotal,
		Total:           r.Total,
		Notes:           r.Notes,
		OwnerID:         r.OwnerID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ClosedAt:        r.ClosedAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, &primary.Item{
			ID:                it.ID,
			LineNumber:        it.LineNumber,
			ForecastLineRef:   it.ForecastLineRef,
			ItemName:          it.ItemName,
			Unit:              it.Unit,
			OriginalQuantity:  it.OriginalQuantity,
			OriginalUnitPrice: it.OriginalUnitPrice,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice,
			LineSubtotal:      it.LineSubtotal,
			Override:          it.Override,
			OverrideReason:    it.OverrideReason,
		})
	}
	return out
}

var _ primary.RequestService = (*RequestServiceImpl)(nil)
