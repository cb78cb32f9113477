package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/service"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mq"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/util"
)

const maxRetries = 5

// EmailInboundHandler consumes email.inbound events published by the
// mail relay bridge. Delivery is at-least-once; a Redis lock on the
// Message-ID drops redelivered copies, and poisoned payloads go to the
// DLQ after maxRetries.
type EmailInboundHandler struct {
	receiver     *service.InboundReceiver
	deduper      *util.Deduper
	retryCounter *util.RetryCounter
	dlqPublisher *mq.Publisher
	logger       *zap.Logger
}

func NewEmailInboundHandler(
	receiver *service.InboundReceiver,
	deduper *util.Deduper,
	retryCounter *util.RetryCounter,
	dlqPublisher *mq.Publisher,
	logger *zap.Logger,
) *EmailInboundHandler {
	return &EmailInboundHandler{
		receiver:     receiver,
		deduper:      deduper,
		retryCounter: retryCounter,
		dlqPublisher: dlqPublisher,
		logger:       logger,
	}
}

func (h *EmailInboundHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload mq.InboundEmailPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Error("Invalid InboundEmailPayload, sending to DLQ",
			zap.String("raw", string(raw)),
			zap.Error(err),
		)
		h.sendToDLQ(raw, fmt.Sprintf("bad_payload: %v", err))
		return nil
	}

	// Redis 去重（中继可能重复投递同一封邮件）
	if payload.MessageID != "" && !h.deduper.AcquireOnce(ctx, "inbound", payload.MessageID) {
		h.logger.Info("Duplicated inbound email, skip",
			zap.String("message_id", payload.MessageID),
		)
		return nil
	}

	_, err := h.receiver.Process(ctx, &payload)
	if err == nil {
		return nil
	}

	retryKey := util.FormatRetryKey("inbound", payload.MessageID)
	retryCount, _ := h.retryCounter.IncrementAndGet(ctx, retryKey)

	retryable, category := util.IsRetryableError(err)
	if util.ShouldRetry(retryCount, maxRetries, retryable) {
		h.logger.Warn("Inbound email processing failed, will retry",
			zap.String("message_id", payload.MessageID),
			zap.String("category", category),
			zap.Int64("retry", retryCount),
			zap.Error(err),
		)
		return err
	}

	h.logger.Error("Inbound email processing exhausted retries, sending to DLQ",
		zap.String("message_id", payload.MessageID),
		zap.String("category", category),
		zap.Int64("retry", retryCount),
		zap.Error(err),
	)
	h.sendToDLQ(raw, err.Error())
	return nil
}

func (h *EmailInboundHandler) sendToDLQ(raw json.RawMessage, reason string) {
	if err := h.dlqPublisher.PublishToDLQ(mq.KeyEmailInbound, raw, reason); err != nil {
		h.logger.Error("Failed to publish to DLQ", zap.Error(err))
	}
}
