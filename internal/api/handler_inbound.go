package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/service"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mq"
)

type InboundHandler struct {
	receiver *service.InboundReceiver
	logger   *zap.Logger
}

func NewInboundHandler(receiver *service.InboundReceiver, logger *zap.Logger) *InboundHandler {
	return &InboundHandler{
		receiver: receiver,
		logger:   logger,
	}
}

// ReceiveEmail handles POST /inbound/email. The mail relay posts each
// incoming message here; uncorrelated mail is acknowledged so the
// relay does not retry it.
func (h *InboundHandler) ReceiveEmail(c *gin.Context) {
	var payload mq.InboundEmailPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid payload"})
		return
	}

	result, err := h.receiver.Process(c.Request.Context(), &payload)
	if err != nil {
		h.logger.Error("Inbound email processing failed",
			zap.String("message_id", payload.MessageID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to process email"})
		return
	}

	switch result.Outcome {
	case service.OutcomeUncorrelated:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "no tracking code",
		})
	case service.OutcomeUnknownToken:
		c.JSON(http.StatusNotFound, gin.H{
			"success":      false,
			"message":      "no matching thread",
			"trackingCode": result.TrackingCode,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"message":      "email correlated",
			"emailId":      result.ActivityID,
			"trackingCode": result.TrackingCode,
		})
	}
}
