package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/repository"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/logger"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/metrics"
)

// StallStore performs the stall transition (see repository.MailStore).
type StallStore interface {
	SweepStalled(ctx context.Context, cutoff time.Time) ([]repository.StalledThread, error)
}

// StallDetector flags conversations that have gone quiet. One sweep
// covers all users; the transition is one-way and a reply flips the
// thread back through the inbound path, not here.
type StallDetector struct {
	store     StallStore
	threshold time.Duration
	logger    *zap.Logger
}

func NewStallDetector(store StallStore, thresholdDays int, logger *zap.Logger) *StallDetector {
	return &StallDetector{
		store:     store,
		threshold: time.Duration(thresholdDays) * 24 * time.Hour,
		logger:    logger,
	}
}

// Sweep stalls every active or awaiting-reply thread whose last
// activity predates the threshold, and returns the touched threads.
func (d *StallDetector) Sweep(ctx context.Context) ([]repository.StalledThread, error) {
	cutoff := time.Now().Add(-d.threshold)

	stalled, err := d.store.SweepStalled(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("stall sweep failed: %w", err)
	}

	metrics.ThreadsStalledCount.Add(float64(len(stalled)))
	logger.WithTrace(ctx, d.logger).Info("Stall sweep complete",
		zap.Time("cutoff", cutoff),
		zap.Int("stalled", len(stalled)),
	)
	return stalled, nil
}
