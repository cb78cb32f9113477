package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/repository"
	"github.com/MStee09/BoltFreightCSP-sub004/internal/service"
)

type CredentialHandler struct {
	creds      *repository.CredentialRepository
	supervisor *service.ReconnectSupervisor
	logger     *zap.Logger
}

func NewCredentialHandler(creds *repository.CredentialRepository, supervisor *service.ReconnectSupervisor, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{
		creds:      creds,
		supervisor: supervisor,
		logger:     logger,
	}
}

// SaveOAuth handles POST /credentials/oauth
func (h *CredentialHandler) SaveOAuth(c *gin.Context) {
	var req struct {
		EmailAddress string     `json:"email_address" binding:"required,email"`
		AccessToken  string     `json:"access_token" binding:"required"`
		RefreshToken string     `json:"refresh_token" binding:"required"`
		TokenExpiry  *time.Time `json:"token_expiry"`
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

	cred := &model.MailboxCredential{
		UserID:       userID,
		EmailAddress: req.EmailAddress,
		AuthType:     model.CredentialOAuth,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenExpiry:  req.TokenExpiry,
	}
	h.save(c, userID, cred)
}

// SaveSMTP handles POST /credentials/smtp
func (h *CredentialHandler) SaveSMTP(c *gin.Context) {
	var req struct {
		EmailAddress string `json:"email_address" binding:"required,email"`
		AppPassword  string `json:"app_password" binding:"required"`
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

	cred := &model.MailboxCredential{
		UserID:       userID,
		EmailAddress: req.EmailAddress,
		AuthType:     model.CredentialSMTP,
		AppPassword:  req.AppPassword,
	}
	h.save(c, userID, cred)
}

func (h *CredentialHandler) save(c *gin.Context, userID int, cred *model.MailboxCredential) {
	h.supervisor.StartReconnect(userID)

	if err := h.creds.Replace(c.Request.Context(), cred); err != nil {
		if errors.Is(err, repository.ErrCredentialReplacePartial) {
			// 旧凭证已删、新凭证未落库：告知用户重试保存
			h.logger.Error("Credential replace left user without a credential",
				zap.Int("user_id", userID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Saving failed partway. Your previous credential was removed; please save again.",
			})
			return
		}
		h.logger.Error("Credential replace failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to save credential"})
		return
	}

	h.supervisor.Resolve(userID)

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"email_address": cred.EmailAddress,
		"auth_type":     cred.AuthType,
	})
}

// ReconnectState handles GET /credentials/reconnect
func (h *CredentialHandler) ReconnectState(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not authenticated"})
		return
	}

	state, message := h.supervisor.State(userID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   state,
		"message": message,
	})
}

// DismissReconnect handles POST /credentials/reconnect/dismiss
func (h *CredentialHandler) DismissReconnect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not authenticated"})
		return
	}

	h.supervisor.Dismiss(userID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
