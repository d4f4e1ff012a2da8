package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/secondary"
)

// RequestRepository implements secondary.RequestRepository with PostgreSQL.
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a new PostgreSQL request repository.
func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestSelect = `
	SELECT id, program_id, year, COALESCE(funding_source_id, ''), facility_id, current_stage, status,
	       psm_percent::text, psm_amount::text, request_subtotal::text, request_total::text,
	       COALESCE(notes, ''), owner_id, created_at, updated_at, closed_at
	FROM procurement_requests`

const itemSelect = `
	SELECT id, request_id, line_number, COALESCE(forecast_line_ref, ''), item_name, unit,
	       original_quantity::text, original_unit_price::text, requested_quantity::text,
	       updated_unit_price::text, line_subtotal::text, override, COALESCE(override_reason, '')
	FROM request_items`

func scanRequest(row pgx.Row) (*secondary.RequestRecord, error) {
	var (
		nums                 [4]string
		createdAt, updatedAt time.Time
		closedAt             *time.Time
	)
	r := &secondary.RequestRecord{}
	err := row.Scan(&r.ID, &r.ProgramID, &r.Year, &r.FundingSourceID, &r.FacilityID, &r.CurrentStage, &r.Status,
		&nums[0], &nums[1], &nums[2], &nums[3], &r.Notes, &r.OwnerID, &createdAt, &updatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	if err := parseDecimals(nums[:], &r.PSMPercent, &r.PSMAmount, &r.Subtotal, &r.Total); err != nil {
		return nil, err
	}
	r.CreatedAt = formatTime(createdAt)
	r.UpdatedAt = formatTime(updatedAt)
	if closedAt != nil {
		r.ClosedAt = formatTime(*closedAt)
	}
	return r, nil
}

func scanItem(row pgx.Row) (*secondary.ItemRecord, error) {
	var nums [5]string
	it := &secondary.ItemRecord{}
	err := row.Scan(&it.ID, &it.RequestID, &it.LineNumber, &it.ForecastLineRef, &it.ItemName, &it.Unit,
		&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &it.Override, &it.OverrideReason)
	if err != nil {
		return nil, err
	}
	if err := parseDecimals(nums[:], &it.OriginalQuantity, &it.OriginalUnitPrice, &it.Quantity, &it.UnitPrice, &it.LineSubtotal); err != nil {
		return nil, err
	}
	return it, nil
}

// CreateWithItems persists a new request together with its items.
func (r *RequestRepository) CreateWithItems(ctx context.Context, request *secondary.RequestRecord, items []*secondary.ItemRecord) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO procurement_requests
			    (id, program_id, year, funding_source_id, facility_id, current_stage, status,
			     psm_percent, psm_amount, request_subtotal, request_total, notes, owner_id,
			     created_at, updated_at, closed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			request.ID, request.ProgramID, request.Year, nullable(request.FundingSourceID), request.FacilityID,
			request.CurrentStage, request.Status, request.PSMPercent.String(), request.PSMAmount.String(),
			request.Subtotal.String(), request.Total.String(), nullable(request.Notes), request.OwnerID,
			request.CreatedAt, request.UpdatedAt, nullable(request.ClosedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		batch := &pgx.Batch{}
		for _, item := range items {
			queueItemUpsert(batch, request.ID, item)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert items: %w", err)
		}
		return nil
	})
	return errs.Persistence("create request", err)
}

func queueItemUpsert(batch *pgx.Batch, requestID string, item *secondary.ItemRecord) {
	batch.Queue(`
		INSERT INTO request_items
		    (id, request_id, line_number, forecast_line_ref, item_name, unit,
		     original_quantity, original_unit_price, requested_quantity, updated_unit_price,
		     line_subtotal, override, override_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
		    line_number = EXCLUDED.line_number,
		    item_name = EXCLUDED.item_name,
		    unit = EXCLUDED.unit,
		    requested_quantity = EXCLUDED.requested_quantity,
		    updated_unit_price = EXCLUDED.updated_unit_price,
		    line_subtotal = EXCLUDED.line_subtotal,
		    override = EXCLUDED.override,
		    override_reason = EXCLUDED.override_reason`,
		item.ID, requestID, item.LineNumber, nullable(item.ForecastLineRef), item.ItemName, item.Unit,
		item.OriginalQuantity.String(), item.OriginalUnitPrice.String(), item.Quantity.String(),
		item.UnitPrice.String(), item.LineSubtotal.String(), item.Override, nullable(item.OverrideReason),
	)
}

// GetByID retrieves a request by its ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*secondary.RequestRecord, error) {
	record, err := scanRequest(r.db.Pool.QueryRow(ctx, requestSelect+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("request", id)
	}
	if err != nil {
		return nil, errs.Persistence("get request", err)
	}
	return record, nil
}

// GetItems retrieves the items of a request ordered by line number.
func (r *RequestRepository) GetItems(ctx context.Context, requestID string) ([]*secondary.ItemRecord, error) {
	rows, err := r.db.Pool.Query(ctx, itemSelect+" WHERE request_id = $1 ORDER BY line_number", requestID)
	if err != nil {
		return nil, errs.Persistence("list items", err)
	}
	defer rows.Close()

	var items []*secondary.ItemRecord
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errs.Persistence("scan item", err)
		}
		items = append(items, item)
	}
	return items, errs.Persistence("list items", rows.Err())
}

// List retrieves requests matching the given filters, newest first.
func (r *RequestRepository) List(ctx context.Context, filters secondary.RequestFilters) ([]*secondary.RequestRecord, error) {
	if filters.FacilityIDs != nil && len(filters.FacilityIDs) == 0 {
		return nil, nil
	}

	query := requestSelect + " WHERE 1=1"
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.FacilityIDs != nil {
		query += " AND facility_id = ANY(" + next(filters.FacilityIDs) + ")"
	}
	if filters.ProgramID != "" {
		query += " AND program_id = " + next(filters.ProgramID)
	}
	if filters.Year != 0 {
		query += " AND year = " + next(filters.Year)
	}
	if filters.Stage != "" {
		query += " AND current_stage = " + next(filters.Stage)
	}
	query += " ORDER BY created_at DESC, id"
	if filters.Limit > 0 {
		query += " LIMIT " + next(filters.Limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Persistence("list requests", err)
	}
	defer rows.Close()

	var requests []*secondary.RequestRecord
	for rows.Next() {
		record, err := scanRequest(rows)
		if err != nil {
			return nil, errs.Persistence("scan request", err)
		}
		requests = append(requests, record)
	}
	return requests, errs.Persistence("list requests", rows.Err())
}

// SaveItemsWithTotals upserts and deletes items and rewrites the request totals
// in one transaction, guarded by the expected stage.
func (r *RequestRepository) SaveItemsWithTotals(ctx context.Context, change secondary.ItemChange) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE procurement_requests
			SET request_subtotal = $1, psm_amount = $2, request_total = $3, updated_at = $4
			WHERE id = $5 AND current_stage = $6`,
			change.Subtotal.String(), change.PSMAmount.String(), change.Total.String(), change.UpdatedAt,
			change.RequestID, change.ExpectedStage,
		)
		if err != nil {
			return fmt.Errorf("failed to update totals: %w", err)
		}
		if err := checkSwapped(ctx, tx, tag.RowsAffected(), change.RequestID, change.ExpectedStage); err != nil {
			return err
		}

		if len(change.DeleteIDs) > 0 {
			if _, err := tx.Exec(ctx,
				"DELETE FROM request_items WHERE request_id = $1 AND id = ANY($2)",
				change.RequestID, change.DeleteIDs,
			); err != nil {
				return fmt.Errorf("failed to delete items: %w", err)
			}
		}

		batch := &pgx.Batch{}
		for _, item := range change.Upserts {
			queueItemUpsert(batch, change.RequestID, item)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert items: %w", err)
		}
		return nil
	})
	return errs.Persistence("save items", err)
}

// TransitionStage moves the request between stages with a compare-and-swap
// on current_stage and appends the transition in the same transaction.
func (r *RequestRepository) TransitionStage(ctx context.Context, change secondary.StageChange) error {
	t := change.Transition
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE procurement_requests
			SET current_stage = $1, status = $2, updated_at = $3, closed_at = $4
			WHERE id = $5 AND current_stage = $6`,
			change.NewStage, change.NewStatus, t.CreatedAt, nullable(change.ClosedAt),
			change.RequestID, change.ExpectedStage,
		)
		if err != nil {
			return fmt.Errorf("failed to update stage: %w", err)
		}
		if err := checkSwapped(ctx, tx, tag.RowsAffected(), change.RequestID, change.ExpectedStage); err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO stage_transitions
			    (id, request_id, from_stage, to_stage, action, actor_id, decision, comment, attachment_ref, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING seq`,
			t.ID, change.RequestID, t.FromStage, t.ToStage, t.Action, t.ActorID, t.Decision,
			nullable(t.Comment), nullable(t.AttachmentRef), t.CreatedAt,
		).Scan(&t.Sequence)
		if err != nil {
			return fmt.Errorf("failed to record transition: %w", err)
		}
		return nil
	})
	return errs.Persistence("transition stage", err)
}

// checkSwapped turns a zero-row compare-and-swap into NotFound or StaleStageError.
func checkSwapped(ctx context.Context, tx pgx.Tx, affected int64, requestID, expected string) error {
	if affected > 0 {
		return nil
	}
	var exists bool
	err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM procurement_requests WHERE id = $1)", requestID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check request: %w", err)
	}
	if !exists {
		return errs.NotFound("request", requestID)
	}
	return &errs.StaleStageError{RequestID: requestID, Expected: expected}
}

func parseDecimals(values []string, dsts ...*decimal.Decimal) error {
	for i, dst := range dsts {
		v, err := decimal.NewFromString(values[i])
		if err != nil {
			return fmt.Errorf("invalid numeric %q: %w", values[i], err)
		}
		*dst = v
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var _ secondary.RequestRepository = (*RequestRepository)(nil)
