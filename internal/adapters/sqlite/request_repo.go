package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/secondary"
)

// RequestRepository implements secondary.RequestRepository with SQLite.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new SQLite request repository.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, program_id, year, funding_source_id, facility_id, current_stage, status,
	psm_percent, psm_amount, request_subtotal, request_total, notes, owner_id, created_at, updated_at, closed_at`

const itemColumns = `id, request_id, line_number, forecast_line_ref, item_name, unit,
	original_quantity, original_unit_price, requested_quantity, updated_unit_price, line_subtotal,
	override, override_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*secondary.RequestRecord, error) {
	var (
		fundingSourceID sql.NullString
		notes           sql.NullString
		closedAt        sql.NullString
	)
	record := &secondary.RequestRecord{}
	err := row.Scan(&record.ID, &record.ProgramID, &record.Year, &fundingSourceID, &record.FacilityID,
		&record.CurrentStage, &record.Status, &record.PSMPercent, &record.PSMAmount, &record.Subtotal,
		&record.Total, &notes, &record.OwnerID, &record.CreatedAt, &record.UpdatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	record.FundingSourceID = fundingSourceID.String
	record.Notes = notes.String
	record.ClosedAt = closedAt.String
	return record, nil
}

func scanItem(row rowScanner) (*secondary.ItemRecord, error) {
	var (
		ref    sql.NullString
		reason sql.NullString
	)
	item := &secondary.ItemRecord{}
	err := row.Scan(&item.ID, &item.RequestID, &item.LineNumber, &ref, &item.ItemName, &item.Unit,
		&item.OriginalQuantity, &item.OriginalUnitPrice, &item.Quantity, &item.UnitPrice, &item.LineSubtotal,
		&item.Override, &reason)
	if err != nil {
		return nil, err
	}
	item.ForecastLineRef = ref.String
	item.OverrideReason = reason.String
	return item, nil
}

// CreateWithItems persists a new request together with its items.
func (r *RequestRepository) CreateWithItems(ctx context.Context, request *secondary.RequestRecord, items []*secondary.ItemRecord) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO procurement_requests ("+requestColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			request.ID, request.ProgramID, request.Year, nullString(request.FundingSourceID), request.FacilityID,
			request.CurrentStage, request.Status, request.PSMPercent, request.PSMAmount, request.Subtotal,
			request.Total, nullString(request.Notes), request.OwnerID, request.CreatedAt, request.UpdatedAt,
			nullString(request.ClosedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		for _, item := range items {
			if err := insertItem(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	return errs.Persistence("create request", err)
}

func insertItem(ctx context.Context, tx *sql.Tx, item *secondary.ItemRecord) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO request_items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		item.ID, item.RequestID, item.LineNumber, nullString(item.ForecastLineRef), item.ItemName, item.Unit,
		item.OriginalQuantity, item.OriginalUnitPrice, item.Quantity, item.UnitPrice, item.LineSubtotal,
		item.Override, nullString(item.OverrideReason),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}
	return nil
}

// GetByID retrieves a request by its ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*secondary.RequestRecord, error) {
	record, err := scanRequest(r.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM procurement_requests WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("request", id)
	}
	if err != nil {
		return nil, errs.Persistence("get request", err)
	}
	return record, nil
}

// GetItems retrieves the items of a request ordered by line number.
func (r *RequestRepository) GetItems(ctx context.Context, requestID string) ([]*secondary.ItemRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM request_items WHERE request_id = ? ORDER BY line_number", requestID)
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

	query := "SELECT " + requestColumns + " FROM procurement_requests WHERE 1=1"
	args := []any{}

	if filters.FacilityIDs != nil {
		query += " AND facility_id IN (" + placeholders(len(filters.FacilityIDs)) + ")"
		for _, id := range filters.FacilityIDs {
			args = append(args, id)
		}
	}
	if filters.ProgramID != "" {
		query += " AND program_id = ?"
		args = append(args, filters.ProgramID)
	}
	if filters.Year != 0 {
		query += " AND year = ?"
		args = append(args, filters.Year)
	}
	if filters.Stage != "" {
		query += " AND current_stage = ?"
		args = append(args, filters.Stage)
	}

	query += " ORDER BY created_at DESC, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE procurement_requests
			SET request_subtotal = ?, psm_amount = ?, request_total = ?, updated_at = ?
			WHERE id = ? AND current_stage = ?`,
			change.Subtotal, change.PSMAmount, change.Total, change.UpdatedAt,
			change.RequestID, change.ExpectedStage,
		)
		if err != nil {
			return fmt.Errorf("failed to update totals: %w", err)
		}
		if err := checkSwapped(ctx, tx, res, change.RequestID, change.ExpectedStage); err != nil {
			return err
		}

		for _, id := range change.DeleteIDs {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM request_items WHERE id = ? AND request_id = ?", id, change.RequestID,
			); err != nil {
				return fmt.Errorf("failed to delete item %s: %w", id, err)
			}
		}

		for _, item := range change.Upserts {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO request_items ("+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					line_number = excluded.line_number,
					item_name = excluded.item_name,
					unit = excluded.unit,
					requested_quantity = excluded.requested_quantity,
					updated_unit_price = excluded.updated_unit_price,
					line_subtotal = excluded.line_subtotal,
					override = excluded.override,
					override_reason = excluded.override_reason`,
				item.ID, change.RequestID, item.LineNumber, nullString(item.ForecastLineRef), item.ItemName, item.Unit,
				item.OriginalQuantity, item.OriginalUnitPrice, item.Quantity, item.UnitPrice, item.LineSubtotal,
				item.Override, nullString(item.OverrideReason),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
			}
		}
		return nil
	})
	return errs.Persistence("save items", err)
}

// TransitionStage moves the request between stages with a compare-and-swap
// on current_stage and appends the transition in the same transaction.
func (r *RequestRepository) TransitionStage(ctx context.Context, change secondary.StageChange) error {
	t := change.Transition
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE procurement_requests
			SET current_stage = ?, status = ?, updated_at = ?, closed_at = ?
			WHERE id = ? AND current_stage = ?`,
			change.NewStage, change.NewStatus, t.CreatedAt, nullString(change.ClosedAt),
			change.RequestID, change.ExpectedStage,
		)
		if err != nil {
			return fmt.Errorf("failed to update stage: %w", err)
		}
		if err := checkSwapped(ctx, tx, res, change.RequestID, change.ExpectedStage); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO stage_transitions
			(id, request_id, from_stage, to_stage, action, actor_id, decision, comment, attachment_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, change.RequestID, t.FromStage, t.ToStage, t.Action, t.ActorID, t.Decision,
			nullString(t.Comment), nullString(t.AttachmentRef), t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record transition: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read transition sequence: %w", err)
		}
		t.Sequence = seq
		return nil
	})
	return errs.Persistence("transition stage", err)
}

// checkSwapped turns a zero-row compare-and-swap into NotFound or StaleStageError.
func checkSwapped(ctx context.Context, tx *sql.Tx, res sql.Result, requestID, expected string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM procurement_requests WHERE id = ?", requestID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check request: %w", err)
	}
	if exists == 0 {
		return errs.NotFound("request", requestID)
	}
	return &errs.StaleStageError{RequestID: requestID, Expected: expected}
}

var _ secondary.RequestRepository = (*RequestRepository)(nil)
