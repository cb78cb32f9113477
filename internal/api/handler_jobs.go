package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/service"
)

// JobsHandler exposes the periodic jobs as on-demand entry points, in
// addition to the worker's schedule.
type JobsHandler struct {
	stall  *service.StallDetector
	digest *service.DigestAggregator
	logger *zap.Logger
}

func NewJobsHandler(stall *service.StallDetector, digest *service.DigestAggregator, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{
		stall:  stall,
		digest: digest,
		logger: logger,
	}
}

// SweepStalled handles POST /threads/sweep-stalled
func (h *JobsHandler) SweepStalled(c *gin.Context) {
	stalled, err := h.stall.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Error("Stall sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "sweep failed"})
		return
	}

	ids := make([]int, 0, len(stalled))
	for _, st := range stalled {
		ids = append(ids, st.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   fmt.Sprintf("%d threads stalled", len(ids)),
		"count":     len(ids),
		"threadIds": ids,
	})
}

// GenerateDigest handles POST /digests/generate. With a userId the
// response is that user's digest; without one, every active user is
// swept.
func (h *JobsHandler) GenerateDigest(c *gin.Context) {
	var req struct {
		UserID *int `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	now := time.Now()

	if req.UserID != nil {
		digest, created, err := h.digest.GenerateForUser(c.Request.Context(), *req.UserID, now)
		if err != nil {
			h.logger.Error("Digest generation failed",
				zap.Int("user_id", *req.UserID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "digest generation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"created": created,
			"digest":  digest,
		})
		return
	}

	processed, created, err := h.digest.GenerateAll(c.Request.Context(), now)
	if err != nil {
		h.logger.Error("Digest run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "digest run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"users_processed": processed,
		"digests_created": created,
	})
}
