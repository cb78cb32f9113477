package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
)

type ActivityRepository struct {
	db *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// AppendTx appends one immutable activity row inside the caller's transaction.
func (r *ActivityRepository) AppendTx(ctx context.Context, tx pgx.Tx, a *model.EmailActivity) error {
	query := `
        INSERT INTO email_activities
            (tracking_code, message_id, in_reply_to, direction, sender, recipients, cc,
             subject, body, sent_at, is_thread_starter, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
        RETURNING id
    `
	return tx.QueryRow(ctx, query,
		a.TrackingCode,
		a.MessageID,
		a.InReplyTo,
		a.Direction,
		a.Sender,
		a.Recipients,
		a.Cc,
		a.Subject,
		a.Body,
		a.SentAt,
		a.IsThreadStarter,
	).Scan(&a.ID)
}

// FindStarter returns the thread-starter activity for a tracking code,
// or pgx.ErrNoRows when the thread has none.
func (r *ActivityRepository) FindStarter(ctx context.Context, code string) (*model.EmailActivity, error) {
	query := `
        SELECT id, tracking_code, message_id, in_reply_to, direction, sender, recipients, cc,
               subject, body, sent_at, is_thread_starter, created_at
        FROM email_activities
        WHERE tracking_code = $1 AND is_thread_starter
    `
	var a model.EmailActivity
	err := r.db.QueryRow(ctx, query, code).Scan(
		&a.ID,
		&a.TrackingCode,
		&a.MessageID,
		&a.InReplyTo,
		&a.Direction,
		&a.Sender,
		&a.Recipients,
		&a.Cc,
		&a.Subject,
		&a.Body,
		&a.SentAt,
		&a.IsThreadStarter,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByCode returns all activities of a thread, oldest first.
func (r *ActivityRepository) ListByCode(ctx context.Context, code string) ([]model.EmailActivity, error) {
	query := `
        SELECT id, tracking_code, message_id, in_reply_to, direction, sender, recipients, cc,
               subject, body, sent_at, is_thread_starter, created_at
        FROM email_activities
        WHERE tracking_code = $1
        ORDER BY sent_at ASC
    `
	rows, err := r.db.Query(ctx, query, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []model.EmailActivity{}
	for rows.Next() {
		var a model.EmailActivity
		err := rows.Scan(
			&a.ID,
			&a.TrackingCode,
			&a.MessageID,
			&a.InReplyTo,
			&a.Direction,
			&a.Sender,
			&a.Recipients,
			&a.Cc,
			&a.Subject,
			&a.Body,
			&a.SentAt,
			&a.IsThreadStarter,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
