package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/logger"
	"github.com/MStee09/BoltFreightCSP-sub004/pkg/metrics"
)

const digestItemLimit = 5

// DigestStore persists and looks up daily digests.
type DigestStore interface {
	FindByUserAndDate(ctx context.Context, userID int, date string) (*model.DailyDigest, error)
	Insert(ctx context.Context, d *model.DailyDigest) (bool, error)
}

// PipelineSource reads the digest source rows from the wider CRM.
type PipelineSource interface {
	ExpiringTariffs(ctx context.Context, userID, horizonDays, limit int) ([]model.Tariff, error)
	StalledEvents(ctx context.Context, userID, stalledDays, limit int) ([]model.CSPEvent, error)
	PendingReviews(ctx context.Context, userID int, limit int) ([]model.ReviewItem, error)
}

// UserSource enumerates the users entitled to a digest.
type UserSource interface {
	ListActiveIDs(ctx context.Context) ([]int, error)
}

// DigestAggregator builds the once-per-day action summary for each
// user. Generation is idempotent per (user, day): a second run returns
// the stored digest unchanged.
type DigestAggregator struct {
	store       DigestStore
	pipeline    PipelineSource
	users       UserSource
	horizonDays int
	urgentDays  int
	stalledDays int
	logger      *zap.Logger
}

func NewDigestAggregator(
	store DigestStore,
	pipeline PipelineSource,
	users UserSource,
	horizonDays, urgentDays, stalledDays int,
	logger *zap.Logger,
) *DigestAggregator {
	return &DigestAggregator{
		store:       store,
		pipeline:    pipeline,
		users:       users,
		horizonDays: horizonDays,
		urgentDays:  urgentDays,
		stalledDays: stalledDays,
		logger:      logger,
	}
}

// GenerateForUser builds the user's digest for now's calendar day. If
// one already exists it is returned untouched; created reports whether
// this call made it.
func (g *DigestAggregator) GenerateForUser(ctx context.Context, userID int, now time.Time) (digest *model.DailyDigest, created bool, err error) {
	log := logger.WithTrace(ctx, g.logger)
	day := now.Format("2006-01-02")

	existing, err := g.store.FindByUserAndDate(ctx, userID, day)
	if err != nil {
		metrics.DigestsGeneratedCount.WithLabelValues("failed").Inc()
		return nil, false, fmt.Errorf("failed to look up digest: %w", err)
	}
	if existing != nil {
		metrics.DigestsGeneratedCount.WithLabelValues("existing").Inc()
		return existing, false, nil
	}

	tariffs, err := g.pipeline.ExpiringTariffs(ctx, userID, g.horizonDays, digestItemLimit)
	if err != nil {
		metrics.DigestsGeneratedCount.WithLabelValues("failed").Inc()
		return nil, false, fmt.Errorf("failed to load expiring tariffs: %w", err)
	}
	events, err := g.pipeline.StalledEvents(ctx, userID, g.stalledDays, digestItemLimit)
	if err != nil {
		metrics.DigestsGeneratedCount.WithLabelValues("failed").Inc()
		return nil, false, fmt.Errorf("failed to load stalled events: %w", err)
	}
	reviews, err := g.pipeline.PendingReviews(ctx, userID, digestItemLimit)
	if err != nil {
		metrics.DigestsGeneratedCount.WithLabelValues("failed").Inc()
		return nil, false, fmt.Errorf("failed to load pending reviews: %w", err)
	}

	d := &model.DailyDigest{
		UserID:     userID,
		DigestDate: day,
	}
	for _, t := range tariffs {
		d.ExpiringTariffs = append(d.ExpiringTariffs, model.ExpiringTariff{
			TariffID:   t.ID,
			Name:       t.Name,
			CustomerID: t.CustomerID,
			ValidUntil: t.ValidUntil,
		})
	}
	for _, e := range events {
		d.StalledItems = append(d.StalledItems, model.StalledItem{
			CSPEventID: e.ID,
			Reference:  e.Reference,
			Stage:      e.Stage,
			UpdatedAt:  e.UpdatedAt,
		})
	}
	for _, r := range reviews {
		d.PendingReviews = append(d.PendingReviews, model.PendingReview{
			ReviewID:    r.ID,
			Subject:     r.Subject,
			SubmittedAt: r.SubmittedAt,
		})
	}
	d.ActionItems = BuildActionItems(tariffs, events, reviews, g.urgentDays, now)
	for _, item := range d.ActionItems {
		switch item.Priority {
		case model.PriorityHigh:
			d.Summary.High++
		case model.PriorityMedium:
			d.Summary.Medium++
		default:
			d.Summary.Low++
		}
	}

	wasCreated, err := g.store.Insert(ctx, d)
	if err != nil {
		metrics.DigestsGeneratedCount.WithLabelValues("failed").Inc()
		return nil, false, fmt.Errorf("failed to store digest: %w", err)
	}
	if !wasCreated {
		// 并发竞争输掉了，以已落库的为准
		stored, err := g.store.FindByUserAndDate(ctx, userID, day)
		if err != nil || stored == nil {
			metrics.DigestsGeneratedCount.WithLabelValues("failed").Inc()
			return nil, false, fmt.Errorf("digest exists but could not be re-read: %w", err)
		}
		metrics.DigestsGeneratedCount.WithLabelValues("existing").Inc()
		return stored, false, nil
	}

	metrics.DigestsGeneratedCount.WithLabelValues("created").Inc()
	log.Info("Daily digest created",
		zap.Int("user_id", userID),
		zap.String("digest_date", day),
		zap.Int("action_items", len(d.ActionItems)),
	)
	return d, true, nil
}

// GenerateAll builds digests for every active user. Per-user failures
// are logged and skipped so one bad row cannot starve the rest.
func (g *DigestAggregator) GenerateAll(ctx context.Context, now time.Time) (processed, createdCount int, err error) {
	log := logger.WithTrace(ctx, g.logger)

	ids, err := g.users.ListActiveIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list active users: %w", err)
	}

	for _, id := range ids {
		_, created, err := g.GenerateForUser(ctx, id, now)
		if err != nil {
			log.Error("Digest generation failed for user",
				zap.Int("user_id", id),
				zap.Error(err),
			)
			continue
		}
		processed++
		if created {
			createdCount++
		}
	}

	log.Info("Digest run complete",
		zap.Int("users", len(ids)),
		zap.Int("processed", processed),
		zap.Int("created", createdCount),
	)
	return processed, createdCount, nil
}

// BuildActionItems folds the source rows into the prioritized action
// list: one high item counting the tariffs that expire within the
// urgent window, then one medium item per stalled pipeline, then one
// low item per pending review. Tariffs outside the urgent window
// appear in the digest detail only, not as action items.
func BuildActionItems(tariffs []model.Tariff, events []model.CSPEvent, reviews []model.ReviewItem, urgentDays int, now time.Time) []model.ActionItem {
	urgentCutoff := now.Add(time.Duration(urgentDays) * 24 * time.Hour)

	var high, medium, low []model.ActionItem
	urgent := 0
	for _, t := range tariffs {
		if !t.ValidUntil.After(urgentCutoff) {
			urgent++
		}
	}
	if urgent > 0 {
		high = append(high, model.ActionItem{
			Priority: model.PriorityHigh,
			Category: "expiring_tariff",
			Message:  fmt.Sprintf("%d tariff(s) expiring within %d days", urgent, urgentDays),
		})
	}
	for _, e := range events {
		days := int(now.Sub(e.UpdatedAt).Hours() / 24)
		medium = append(medium, model.ActionItem{
			Priority: model.PriorityMedium,
			Category: "stalled_pipeline",
			Message:  fmt.Sprintf("Pipeline %s has not moved past %s in %d days", e.Reference, e.Stage, days),
		})
	}
	for _, r := range reviews {
		low = append(low, model.ActionItem{
			Priority: model.PriorityLow,
			Category: "pending_review",
			Message:  fmt.Sprintf("Review pending: %s", r.Subject),
		})
	}

	items := make([]model.ActionItem, 0, len(high)+len(medium)+len(low))
	items = append(items, high...)
	items = append(items, medium...)
	items = append(items, low...)
	return items
}
