package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mq"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/outbox"
)

// MailStore composes the multi-row writes of the correlation engine.
// Each method is one pgx transaction: business rows and their outbox
// event commit together, so the dispatcher never announces state that
// was rolled back.
type MailStore struct {
	db         *pgxpool.Pool
	threads    *ThreadRepository
	activities *ActivityRepository
	followups  *FollowUpRepository
	outboxRepo *outbox.Repository
}

func NewMailStore(db *pgxpool.Pool) *MailStore {
	return &MailStore{
		db:         db,
		threads:    NewThreadRepository(db),
		activities: NewActivityRepository(db),
		followups:  NewFollowUpRepository(db),
		outboxRepo: outbox.NewRepository(db),
	}
}

func (s *MailStore) Threads() *ThreadRepository { return s.threads }

func (s *MailStore) Activities() *ActivityRepository { return s.activities }

// SaveOutbound records a transmitted email: append the activity row and
// create or touch the thread. newThread carries the starter metadata
// and is only inserted when the activity is a thread starter.
func (s *MailStore) SaveOutbound(ctx context.Context, userID int, a *model.EmailActivity, newThread *model.Thread) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.activities.AppendTx(ctx, tx, a); err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}

	if a.IsThreadStarter {
		if err := s.threads.CreateTx(ctx, tx, newThread); err != nil {
			return err
		}
	} else {
		if err := s.threads.TouchActiveTx(ctx, tx, a.TrackingCode, a.SentAt); err != nil {
			return fmt.Errorf("failed to touch thread: %w", err)
		}
	}

	activityID := int64(a.ID)
	payload := mq.EmailSentPayload{
		ActivityID:   a.ID,
		TrackingCode: a.TrackingCode,
		UserID:       userID,
		Subject:      a.Subject,
		SentAt:       a.SentAt,
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "email_activity", &activityID, mq.KeyEmailSent, payload); err != nil {
		return fmt.Errorf("failed to insert email.sent to outbox: %w", err)
	}

	return tx.Commit(ctx)
}

// SaveInbound records a correlated reply: append the activity, reset
// the thread to active and auto-close its eligible follow-ups. Returns
// the number of follow-ups closed.
func (s *MailStore) SaveInbound(ctx context.Context, threadID int, a *model.EmailActivity) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.activities.AppendTx(ctx, tx, a); err != nil {
		return 0, fmt.Errorf("failed to append activity: %w", err)
	}

	if err := s.threads.TouchActiveTx(ctx, tx, a.TrackingCode, a.SentAt); err != nil {
		return 0, fmt.Errorf("failed to touch thread: %w", err)
	}

	note := fmt.Sprintf("Auto-closed by reply from %s", a.Sender)
	closed, err := s.followups.CompletePendingAutoCloseTx(ctx, tx, threadID, note)
	if err != nil {
		return 0, fmt.Errorf("failed to auto-close follow-ups: %w", err)
	}

	activityID := int64(a.ID)
	payload := mq.EmailReceivedPayload{
		ActivityID:   a.ID,
		TrackingCode: a.TrackingCode,
		ThreadID:     threadID,
		Sender:       a.Sender,
		ReceivedAt:   a.SentAt,
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "email_activity", &activityID, mq.KeyEmailReceived, payload); err != nil {
		return 0, fmt.Errorf("failed to insert email.received to outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return closed, nil
}

// SweepStalled transitions quiet threads to stalled and queues one
// thread.stalled event per touched row, all in one transaction.
func (s *MailStore) SweepStalled(ctx context.Context, cutoff time.Time) ([]StalledThread, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stalled, err := s.threads.StallOlderThanTx(ctx, tx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to stall threads: %w", err)
	}

	for _, st := range stalled {
		threadID := int64(st.ID)
		payload := mq.ThreadStalledPayload{
			ThreadID:     st.ID,
			TrackingCode: st.TrackingCode,
		}
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "email_thread", &threadID, mq.KeyThreadStalled, payload); err != nil {
			return nil, fmt.Errorf("failed to insert thread.stalled to outbox: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stalled, nil
}
