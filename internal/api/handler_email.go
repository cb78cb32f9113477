package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/repository"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/service"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/mailer"
)

type EmailHandler struct {
	sender     *service.OutboundSender
	supervisor *service.ReconnectSupervisor
	activities *repository.ActivityRepository
	logger     *zap.Logger
}

func NewEmailHandler(
	sender *service.OutboundSender,
	supervisor *service.ReconnectSupervisor,
	activities *repository.ActivityRepository,
	logger *zap.Logger,
) *EmailHandler {
	return &EmailHandler{
		sender:     sender,
		supervisor: supervisor,
		activities: activities,
		logger:     logger,
	}
}

// SendEmail handles POST /emails/send
func (h *EmailHandler) SendEmail(c *gin.Context) {
	var req struct {
		TrackingCode string   `json:"trackingCode"`
		To           []string `json:"to" binding:"required,min=1"`
		Cc           []string `json:"cc"`
		Subject      string   `json:"subject" binding:"required"`
		Body         string   `json:"body" binding:"required"`
		CSPEventID   *int     `json:"cspEventId"`
		CustomerID   *int     `json:"customerId"`
		CarrierID    *int     `json:"carrierId"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not authenticated"})
		return
	}

	sendReq := &service.OutboundRequest{
		TrackingCode: req.TrackingCode,
		To:           req.To,
		Cc:           req.Cc,
		Subject:      req.Subject,
		Body:         req.Body,
		CSPEventID:   req.CSPEventID,
		CustomerID:   req.CustomerID,
		CarrierID:    req.CarrierID,
	}

	result, err := h.sender.Send(c.Request.Context(), userID, sendReq)
	if err != nil {
		h.respondSendError(c, userID, sendReq, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"trackingCode": result.TrackingCode,
		"emailId":      result.ActivityID,
	})
}

func (h *EmailHandler) respondSendError(c *gin.Context, userID int, req *service.OutboundRequest, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownThread):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "No open conversation matches that tracking code.",
		})
	case errors.Is(err, service.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "No mailbox connected. Connect your email account and try again.",
		})
	case errors.Is(err, mailer.ErrCredentialInvalid):
		// 凭证失效：挂起这封邮件，等用户重连后由 supervisor 重放
		h.supervisor.CredentialInvalid(userID,
			"Your mailbox credentials were rejected. Reconnect your email account to resume sending.",
			func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if _, err := h.sender.Send(ctx, userID, req); err != nil {
					h.logger.Error("Replayed send failed after reconnect",
						zap.Int("user_id", userID),
						zap.Error(err),
					)
				}
			})
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Mailbox credentials rejected. Reconnect your email account; the email will be resent automatically.",
		})
	case errors.Is(err, mailer.ErrTransient):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Temporary delivery problem. Please try again shortly.",
		})
	case errors.Is(err, mailer.ErrSendFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"message": "The mail server rejected the message.",
		})
	default:
		h.logger.Error("Send request failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to send email.",
		})
	}
}

// GetThread handles GET /threads/:code
func (h *EmailHandler) GetThread(c *gin.Context) {
	code := c.Param("code")

	activities, err := h.activities.ListByCode(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to load thread"})
		return
	}
	if len(activities) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "thread not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"trackingCode": code,
		"emails":       activities,
	})
}
