package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/logger"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/metrics"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mq"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/token"
)

// Inbound outcomes. Uncorrelated and unknown-token mails are terminal
// but not errors: the webhook acknowledges them so the upstream relay
// does not retry.
const (
	OutcomeCorrelated   = "correlated"
	OutcomeUncorrelated = "uncorrelated"
	OutcomeUnknownToken = "unknown_token"
)

// ThreadFinder resolves a live thread by tracking code.
type ThreadFinder interface {
	FindLiveByCode(ctx context.Context, code string) (*model.Thread, error)
}

// StarterFinder resolves the thread-starter activity, whose Message-ID
// seeds In-Reply-To when the relay strips the header.
type StarterFinder interface {
	FindStarter(ctx context.Context, code string) (*model.EmailActivity, error)
}

// InboundStore persists a correlated reply (see repository.MailStore).
type InboundStore interface {
	SaveInbound(ctx context.Context, threadID int, a *model.EmailActivity) (int64, error)
}

// InboundResult reports what Process did with one email.
type InboundResult struct {
	Outcome         string
	TrackingCode    string
	ActivityID      int
	FollowUpsClosed int64
}

// InboundReceiver correlates incoming emails with their threads by the
// tracking code in the subject line.
type InboundReceiver struct {
	threads  ThreadFinder
	starters StarterFinder
	store    InboundStore
	logger   *zap.Logger
}

func NewInboundReceiver(threads ThreadFinder, starters StarterFinder, store InboundStore, logger *zap.Logger) *InboundReceiver {
	return &InboundReceiver{
		threads:  threads,
		starters: starters,
		store:    store,
		logger:   logger,
	}
}

// Process correlates one inbound email. Mails without a tracking code,
// or with a code no live thread carries, resolve without error so the
// caller can acknowledge them.
func (r *InboundReceiver) Process(ctx context.Context, msg *mq.InboundEmailPayload) (*InboundResult, error) {
	log := logger.WithTrace(ctx, r.logger)

	code := token.Extract(msg.Subject)
	if code == "" {
		metrics.InboundProcessedCount.WithLabelValues(OutcomeUncorrelated).Inc()
		log.Info("Inbound email carries no tracking code",
			zap.String("from", msg.From),
			zap.String("message_id", msg.MessageID),
		)
		return &InboundResult{Outcome: OutcomeUncorrelated}, nil
	}

	thread, err := r.threads.FindLiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.InboundProcessedCount.WithLabelValues(OutcomeUnknownToken).Inc()
			log.Warn("Inbound email references unknown or closed thread",
				zap.String("tracking_code", code),
				zap.String("from", msg.From),
			)
			return &InboundResult{Outcome: OutcomeUnknownToken, TrackingCode: code}, nil
		}
		metrics.InboundProcessedCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to find thread: %w", err)
	}

	inReplyTo := msg.InReplyTo
	if inReplyTo == "" {
		// 有些转发链路会丢掉 In-Reply-To，退回到起始邮件的 Message-ID
		starter, err := r.starters.FindStarter(ctx, code)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			metrics.InboundProcessedCount.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to find thread starter: %w", err)
		}
		if starter != nil {
			inReplyTo = starter.MessageID
		}
	}

	sentAt := msg.Date
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	activity := &model.EmailActivity{
		TrackingCode: code,
		MessageID:    msg.MessageID,
		Direction:    model.DirectionInbound,
		Sender:       msg.From,
		Recipients:   msg.To,
		Cc:           msg.Cc,
		Subject:      msg.Subject,
		Body:         msg.Body,
		SentAt:       sentAt,
	}
	if inReplyTo != "" {
		activity.InReplyTo = &inReplyTo
	}

	closed, err := r.store.SaveInbound(ctx, thread.ID, activity)
	if err != nil {
		metrics.InboundProcessedCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to record inbound email: %w", err)
	}

	metrics.InboundProcessedCount.WithLabelValues(OutcomeCorrelated).Inc()
	if closed > 0 {
		metrics.FollowUpsAutoClosed.Add(float64(closed))
	}
	log.Info("Inbound email correlated",
		zap.String("tracking_code", code),
		zap.Int("thread_id", thread.ID),
		zap.Int("activity_id", activity.ID),
		zap.Int64("follow_ups_closed", closed),
	)

	return &InboundResult{
		Outcome:         OutcomeCorrelated,
		TrackingCode:    code,
		ActivityID:      activity.ID,
		FollowUpsClosed: closed,
	}, nil
}
