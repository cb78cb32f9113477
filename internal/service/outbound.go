package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/repository"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/circuitbreaker"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/logger"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mailer"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/metrics"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/token"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/trace"
)

// ErrNotConnected means the user has no mailbox credential on file. It
// is an expected, user-facing condition that routes to the reconnect
// flow, not a system failure.
var ErrNotConnected = errors.New("no mailbox connected")

// ErrUnknownThread means the caller supplied a tracking code with no
// live thread behind it. Detected before transmitting, so no email
// goes out against a thread that is not there.
var ErrUnknownThread = errors.New("no live thread for tracking code")

// MailTransport is the outbound transport collaborator. Failures are
// already classified (mailer.ErrCredentialInvalid / ErrTransient /
// ErrSendFailed).
type MailTransport interface {
	Send(account mailer.Account, msg *mailer.Message) error
}

// CredentialSource yields the per-user sending credential.
type CredentialSource interface {
	Get(ctx context.Context, userID int) (*model.MailboxCredential, error)
}

// OutboundStore persists the activity row and the thread upsert as one
// unit (see repository.MailStore).
type OutboundStore interface {
	SaveOutbound(ctx context.Context, userID int, a *model.EmailActivity, newThread *model.Thread) error
}

// OutboundRequest is one send. An empty TrackingCode means "start a new
// thread"; the pipeline/counterparty references seed the new thread and
// are ignored on follow-up sends.
type OutboundRequest struct {
	TrackingCode string
	To           []string
	Cc           []string
	Subject      string
	Body         string
	CSPEventID   *int
	CustomerID   *int
	CarrierID    *int
}

// SendResult reports the code the email went out under.
type SendResult struct {
	TrackingCode string
	ActivityID   int
}

// OutboundSender composes and transmits one email, stamps the tracking
// code and records the result. It performs no retry of its own: retry
// policy belongs to the caller, and credential failures go to the
// reconnect supervisor.
type OutboundSender struct {
	creds     CredentialSource
	threads   ThreadFinder
	store     OutboundStore
	transport MailTransport
	breaker   *circuitbreaker.CircuitBreaker
	logger    *zap.Logger
}

func NewOutboundSender(
	creds CredentialSource,
	threads ThreadFinder,
	store OutboundStore,
	transport MailTransport,
	breaker *circuitbreaker.CircuitBreaker,
	logger *zap.Logger,
) *OutboundSender {
	return &OutboundSender{
		creds:     creds,
		threads:   threads,
		store:     store,
		transport: transport,
		breaker:   breaker,
		logger:    logger,
	}
}

// Send transmits and records one email. On a tracking-code collision
// (an operational near-impossibility) the whole attempt is retried once
// with a fresh code, then fails.
func (s *OutboundSender) Send(ctx context.Context, userID int, req *OutboundRequest) (*SendResult, error) {
	cred, err := s.creds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	fresh := req.TrackingCode == ""
	if !fresh {
		// 先确认会话还活着，避免邮件发出后才发现无处落账
		if _, err := s.threads.FindLiveByCode(ctx, req.TrackingCode); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUnknownThread
			}
			return nil, fmt.Errorf("failed to resolve thread: %w", err)
		}
	}

	result, err := s.sendOnce(ctx, userID, cred, req, fresh)
	if fresh && errors.Is(err, repository.ErrDuplicateTrackingCode) {
		logger.WithTrace(ctx, s.logger).Warn("Tracking code collision, retrying with a fresh code",
			zap.Int("user_id", userID),
		)
		result, err = s.sendOnce(ctx, userID, cred, req, fresh)
		if errors.Is(err, repository.ErrDuplicateTrackingCode) {
			// 连续两次撞码视为存储异常，直接失败
			return nil, fmt.Errorf("tracking code collision persisted across retry: %w", err)
		}
	}
	return result, err
}

func (s *OutboundSender) sendOnce(ctx context.Context, userID int, cred *model.MailboxCredential, req *OutboundRequest, fresh bool) (*SendResult, error) {
	log := logger.WithTrace(ctx, s.logger)

	code := req.TrackingCode
	if fresh {
		code = token.Mint()
	}

	subject := req.Subject
	if token.Extract(subject) != code {
		subject = token.Embed(subject, code)
	}

	now := time.Now()
	msg := &mailer.Message{
		To:        req.To,
		Cc:        req.Cc,
		Subject:   subject,
		Body:      req.Body,
		MessageID: trace.GenerateTraceID() + "@boltfreight-csp",
		Date:      now,
	}

	account := mailer.Account{Address: cred.EmailAddress, Secret: cred.Secret()}

	start := time.Now()
	err := s.breaker.Execute(func() error {
		return s.transport.Send(account, msg)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			// 熔断打开等同于暂时性故障，调用方可稍后重试
			err = fmt.Errorf("%w: %v", mailer.ErrTransient, err)
		}
		status := sendStatus(err)
		metrics.EmailsSentCount.WithLabelValues(status).Inc()
		metrics.RecordSMTPSendLatency(status, time.Since(start))
		log.Error("Outbound send failed",
			zap.Int("user_id", userID),
			zap.String("tracking_code", code),
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.EmailsSentCount.WithLabelValues("success").Inc()
	metrics.RecordSMTPSendLatency("success", time.Since(start))

	activity := &model.EmailActivity{
		TrackingCode:    code,
		MessageID:       msg.MessageID,
		Direction:       model.DirectionOutbound,
		Sender:          cred.EmailAddress,
		Recipients:      req.To,
		Cc:              req.Cc,
		Subject:         subject,
		Body:            req.Body,
		SentAt:          now,
		IsThreadStarter: fresh,
	}

	var newThread *model.Thread
	if fresh {
		newThread = &model.Thread{
			TrackingCode:   code,
			CSPEventID:     req.CSPEventID,
			CustomerID:     req.CustomerID,
			CarrierID:      req.CarrierID,
			Status:         model.ThreadActive,
			LastActivityAt: now,
		}
	}

	if err := s.store.SaveOutbound(ctx, userID, activity, newThread); err != nil {
		if errors.Is(err, repository.ErrDuplicateTrackingCode) {
			return nil, err
		}
		// 邮件已经发出但没有留痕：外部邮件无法撤回，只能记录这次不一致
		log.Error("Email transmitted but recording failed",
			zap.Int("user_id", userID),
			zap.String("tracking_code", code),
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("email transmitted but not recorded: %w", err)
	}

	log.Info("Outbound email sent",
		zap.Int("user_id", userID),
		zap.String("tracking_code", code),
		zap.Bool("thread_starter", fresh),
		zap.Int("activity_id", activity.ID),
	)

	return &SendResult{TrackingCode: code, ActivityID: activity.ID}, nil
}

func sendStatus(err error) string {
	switch {
	case errors.Is(err, mailer.ErrCredentialInvalid):
		return "credential_invalid"
	case errors.Is(err, mailer.ErrTransient):
		return "transient"
	default:
		return "failed"
	}
}
