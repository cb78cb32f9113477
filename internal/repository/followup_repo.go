package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FollowUpRepository struct {
	db *pgxpool.Pool
}

func NewFollowUpRepository(db *pgxpool.Pool) *FollowUpRepository {
	return &FollowUpRepository{db: db}
}

// CompletePendingAutoCloseTx bulk-completes every pending auto-close
// follow-up on a thread, attributing the closure in the note. Running
// it twice for the same reply touches zero rows the second time: the
// status='pending' predicate is the idempotency guard.
func (r *FollowUpRepository) CompletePendingAutoCloseTx(ctx context.Context, tx pgx.Tx, threadID int, note string) (int64, error) {
	query := `
        UPDATE follow_up_tasks
        SET status = 'completed', completed_at = NOW(), completion_note = $2
        WHERE thread_id = $1
          AND status = 'pending'
          AND auto_close_on_reply
    `
	result, err := tx.Exec(ctx, query, threadID, note)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
