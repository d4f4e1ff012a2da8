package postgres

import (
	"context"
	"time"

	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/secondary"
)

// TransitionRepository implements secondary.TransitionRepository with PostgreSQL.
type TransitionRepository struct {
	db *DB
}

// NewTransitionRepository creates a new PostgreSQL transition repository.
func NewTransitionRepository(db *DB) *TransitionRepository {
	return &TransitionRepository{db: db}
}

// ListByRequest returns the transitions of a request, oldest first.
func (r *TransitionRepository) ListByRequest(ctx context.Context, requestID string) ([]*secondary.TransitionRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT seq, id, request_id, from_stage, to_stage, action, actor_id, decision,
		       COALESCE(comment, ''), COALESCE(attachment_ref, ''), created_at
		FROM stage_transitions
		WHERE request_id = $1
		ORDER BY seq`,
		requestID,
	)
	if err != nil {
		return nil, errs.Persistence("list transitions", err)
	}
	defer rows.Close()

	var transitions []*secondary.TransitionRecord
	for rows.Next() {
		var createdAt time.Time
		t := &secondary.TransitionRecord{}
		if err := rows.Scan(&t.Sequence, &t.ID, &t.RequestID, &t.FromStage, &t.ToStage, &t.Action,
			&t.ActorID, &t.Decision, &t.Comment, &t.AttachmentRef, &createdAt); err != nil {
			return nil, errs.Persistence("scan transition", err)
		}
		t.CreatedAt = formatTime(createdAt)
		transitions = append(transitions, t)
	}
	return transitions, errs.Persistence("list transitions", rows.Err())
}

var _ secondary.TransitionRepository = (*TransitionRepository)(nil)
