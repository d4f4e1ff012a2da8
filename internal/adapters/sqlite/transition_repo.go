package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/secondary"
)

// TransitionRepository implements secondary.TransitionRepository with SQLite.
// Inserts happen in RequestRepository.TransitionStage; triggers reject
// UPDATE and DELETE on the table.
type TransitionRepository struct {
	db *sql.DB
}

// NewTransitionRepository creates a new SQLite transition repository.
func NewTransitionRepository(db *sql.DB) *TransitionRepository {
	return &TransitionRepository{db: db}
}

// ListByRequest returns the transitions of a request, oldest first.
func (r *TransitionRepository) ListByRequest(ctx context.Context, requestID string) ([]*secondary.TransitionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, id, request_id, from_stage, to_stage, action, actor_id, decision, comment, attachment_ref, created_at
		FROM stage_transitions WHERE request_id = ? ORDER BY seq`,
		requestID,
	)
	if err != nil {
		return nil, errs.Persistence("list transitions", err)
	}
	defer rows.Close()

	var transitions []*secondary.TransitionRecord
	for rows.Next() {
		var (
			comment       sql.NullString
			attachmentRef sql.NullString
		)
		t := &secondary.TransitionRecord{}
		if err := rows.Scan(&t.Sequence, &t.ID, &t.RequestID, &t.FromStage, &t.ToStage, &t.Action,
			&t.ActorID, &t.Decision, &comment, &attachmentRef, &t.CreatedAt); err != nil {
			return nil, errs.Persistence("scan transition", err)
		}
		t.Comment = comment.String
		t.AttachmentRef = attachmentRef.String
		transitions = append(transitions, t)
	}
	return transitions, errs.Persistence("list transitions", rows.Err())
}

var _ secondary.TransitionRepository = (*TransitionRepository)(nil)
