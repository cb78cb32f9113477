package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mq"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/outbox"
)

// digestPayload is the JSONB body of one digest row; the key columns
// live outside it.
type digestPayload struct {
	Summary         model.DigestSummary    `json:"summary"`
	ExpiringTariffs []model.ExpiringTariff `json:"expiring_tariffs"`
	StalledItems    []model.StalledItem    `json:"stalled_items"`
	PendingReviews  []model.PendingReview  `json:"pending_reviews"`
	ActionItems     []model.ActionItem     `json:"action_items"`
}

type DigestRepository struct {
	db         *pgxpool.Pool
	outboxRepo *outbox.Repository
}

func NewDigestRepository(db *pgxpool.Pool) *DigestRepository {
	return &DigestRepository{
		db:         db,
		outboxRepo: outbox.NewRepository(db),
	}
}

// FindByUserAndDate returns the digest for (user, day), or nil when
// none has been generated yet.
func (r *DigestRepository) FindByUserAndDate(ctx context.Context, userID int, date string) (*model.DailyDigest, error) {
	query := `
        SELECT id, user_id, digest_date, payload, created_at
        FROM daily_digests
        WHERE user_id = $1 AND digest_date = $2
    `
	var d model.DailyDigest
	var raw []byte
	var digestDate time.Time
	err := r.db.QueryRow(ctx, query, userID, date).Scan(
		&d.ID, &d.UserID, &digestDate, &raw, &d.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.DigestDate = digestDate.Format("2006-01-02")
	var p digestPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode digest payload: %w", err)
	}
	d.Summary = p.Summary
	d.ExpiringTariffs = p.ExpiringTariffs
	d.StalledItems = p.StalledItems
	d.PendingReviews = p.PendingReviews
	d.ActionItems = p.ActionItems
	return &d, nil
}

// Insert stores a digest. The unique constraint on (user_id,
// digest_date) decides races: the loser's insert is a no-op and Insert
// returns created=false, which callers treat as "already generated".
func (r *DigestRepository) Insert(ctx context.Context, d *model.DailyDigest) (bool, error) {
	payload, err := json.Marshal(digestPayload{
		Summary:         d.Summary,
		ExpiringTariffs: d.ExpiringTariffs,
		StalledItems:    d.StalledItems,
		PendingReviews:  d.PendingReviews,
		ActionItems:     d.ActionItems,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode digest payload: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO daily_digests (user_id, digest_date, payload, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (user_id, digest_date) DO NOTHING
        RETURNING id
    `
	err = tx.QueryRow(ctx, query, d.UserID, d.DigestDate, payload).Scan(&d.ID)
	if err == pgx.ErrNoRows {
		// 竞争失败方：摘要已由并发调用生成
		return false, nil
	}
	if err != nil {
		return false, err
	}

	digestID := int64(d.ID)
	event := mq.DigestCreatedPayload{
		DigestID:   d.ID,
		UserID:     d.UserID,
		DigestDate: d.DigestDate,
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outboxRepo, "daily_digest", &digestID, mq.KeyDigestCreated, event); err != nil {
		return false, fmt.Errorf("failed to insert digest.created to outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
