package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
)

// PipelineRepository reads the CRM-owned digest sources: tariffs, CSP
// pipeline events and review items. This core never writes them.
type PipelineRepository struct {
	db *pgxpool.Pool
}

func NewPipelineRepository(db *pgxpool.Pool) *PipelineRepository {
	return &PipelineRepository{db: db}
}

// ExpiringTariffs returns the user's tariffs expiring within the
// horizon, soonest first.
func (r *PipelineRepository) ExpiringTariffs(ctx context.Context, userID, horizonDays, limit int) ([]model.Tariff, error) {
	query := `
        SELECT id, user_id, customer_id, name, valid_until
        FROM tariffs
        WHERE user_id = $1
          AND valid_until >= CURRENT_DATE
          AND valid_until <= CURRENT_DATE + make_interval(days => $2)
        ORDER BY valid_until ASC
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, userID, horizonDays, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tariffs []model.Tariff
	for rows.Next() {
		var t model.Tariff
		if err := rows.Scan(&t.ID, &t.UserID, &t.CustomerID, &t.Name, &t.ValidUntil); err != nil {
			return nil, err
		}
		tariffs = append(tariffs, t)
	}
	return tariffs, rows.Err()
}

// StalledEvents returns non-terminal pipeline events untouched for the
// given duration.
func (r *PipelineRepository) StalledEvents(ctx context.Context, userID, stalledDays, limit int) ([]model.CSPEvent, error) {
	query := `
        SELECT id, user_id, reference, stage, status, updated_at
        FROM csp_events
        WHERE user_id = $1
          AND status NOT IN ('won', 'lost', 'cancelled')
          AND updated_at < NOW() - make_interval(days => $2)
        ORDER BY updated_at ASC
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, userID, stalledDays, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.CSPEvent
	for rows.Next() {
		var e model.CSPEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Reference, &e.Stage, &e.Status, &e.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// PendingReviews returns the user's items awaiting approval, oldest first.
func (r *PipelineRepository) PendingReviews(ctx context.Context, userID int, limit int) ([]model.ReviewItem, error) {
	query := `
        SELECT id, user_id, subject, submitted_at
        FROM review_items
        WHERE user_id = $1 AND status = 'awaiting_approval'
        ORDER BY submitted_at ASC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []model.ReviewItem
	for rows.Next() {
		var v model.ReviewItem
		if err := rows.Scan(&v.ID, &v.UserID, &v.Subject, &v.SubmittedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, v)
	}
	return reviews, rows.Err()
}
