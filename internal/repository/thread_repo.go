package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
)

// ErrDuplicateTrackingCode means a second non-closed thread was created
// for the same tracking code. The partial unique index guarantees this
// surfaces as a constraint violation rather than a silent second row.
var ErrDuplicateTrackingCode = errors.New("tracking code already has a live thread")

// ErrThreadNotFound means an update addressed a tracking code with no
// live thread behind it.
var ErrThreadNotFound = errors.New("no live thread for tracking code")

type ThreadRepository struct {
	db *pgxpool.Pool
}

func NewThreadRepository(db *pgxpool.Pool) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// FindLiveByCode returns the non-closed thread for a tracking code, or
// pgx.ErrNoRows when none exists.
func (r *ThreadRepository) FindLiveByCode(ctx context.Context, code string) (*model.Thread, error) {
	query := `
        SELECT id, tracking_code, csp_event_id, customer_id, carrier_id,
               status, last_activity_at, created_at, updated_at
        FROM email_threads
        WHERE tracking_code = $1 AND status <> 'closed'
    `
	var t model.Thread
	err := r.db.QueryRow(ctx, query, code).Scan(
		&t.ID,
		&t.TrackingCode,
		&t.CSPEventID,
		&t.CustomerID,
		&t.CarrierID,
		&t.Status,
		&t.LastActivityAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx inserts a new active thread inside the caller's transaction.
func (r *ThreadRepository) CreateTx(ctx context.Context, tx pgx.Tx, t *model.Thread) error {
	query := `
        INSERT INTO email_threads
            (tracking_code, csp_event_id, customer_id, carrier_id, status, last_activity_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id
    `
	err := tx.QueryRow(ctx, query,
		t.TrackingCode,
		t.CSPEventID,
		t.CustomerID,
		t.CarrierID,
		t.Status,
		t.LastActivityAt,
	).Scan(&t.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateTrackingCode
	}
	return err
}

// TouchActiveTx resets the thread to active and bumps its activity
// timestamp. Any send or reply clears a stalled/awaiting_reply status.
// Returns ErrThreadNotFound when no live thread carries the code, so a
// caller cannot record an activity against a thread that is not there.
func (r *ThreadRepository) TouchActiveTx(ctx context.Context, tx pgx.Tx, code string, ts time.Time) error {
	query := `
        UPDATE email_threads
        SET status = 'active', last_activity_at = $2, updated_at = NOW()
        WHERE tracking_code = $1 AND status <> 'closed'
    `
	result, err := tx.Exec(ctx, query, code, ts)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrThreadNotFound
	}
	return nil
}

// StalledThread is one row touched by a stall sweep.
type StalledThread struct {
	ID           int
	TrackingCode string
}

// StallOlderThanTx bulk-transitions quiet threads to stalled. Stalled
// itself is excluded from the filter, so a repeated sweep in the same
// window touches zero rows.
func (r *ThreadRepository) StallOlderThanTx(ctx context.Context, tx pgx.Tx, cutoff time.Time) ([]StalledThread, error) {
	query := `
        UPDATE email_threads
        SET status = 'stalled', updated_at = NOW()
        WHERE status IN ('active', 'awaiting_reply')
          AND last_activity_at < $1
        RETURNING id, tracking_code
    `
	rows, err := tx.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stalled []StalledThread
	for rows.Next() {
		var s StalledThread
		if err := rows.Scan(&s.ID, &s.TrackingCode); err != nil {
			return nil, err
		}
		stalled = append(stalled, s)
	}
	return stalled, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
