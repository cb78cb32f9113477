package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/model"
)

type fakeDigestStore struct {
	existing map[string]*model.DailyDigest
	inserted []*model.DailyDigest
}

func digestKey(userID int, date string) string {
	return date + "#" + string(rune('0'+userID))
}

func (f *fakeDigestStore) FindByUserAndDate(_ context.Context, userID int, date string) (*model.DailyDigest, error) {
	return f.existing[digestKey(userID, date)], nil
}

func (f *fakeDigestStore) Insert(_ context.Context, d *model.DailyDigest) (bool, error) {
	d.ID = len(f.inserted) + 1
	f.inserted = append(f.inserted, d)
	if f.existing == nil {
		f.existing = make(map[string]*model.DailyDigest)
	}
	f.existing[digestKey(d.UserID, d.DigestDate)] = d
	return true, nil
}

type fakePipeline struct {
	tariffs []model.Tariff
	events  []model.CSPEvent
	reviews []model.ReviewItem
	err     error
}

func (f *fakePipeline) ExpiringTariffs(_ context.Context, _, _, _ int) ([]model.Tariff, error) {
	return f.tariffs, f.err
}

func (f *fakePipeline) StalledEvents(_ context.Context, _, _, _ int) ([]model.CSPEvent, error) {
	return f.events, f.err
}

func (f *fakePipeline) PendingReviews(_ context.Context, _ int, _ int) ([]model.ReviewItem, error) {
	return f.reviews, f.err
}

type fakeUsers struct {
	ids []int
}

func (f *fakeUsers) ListActiveIDs(_ context.Context) ([]int, error) {
	return f.ids, nil
}

func newTestAggregator(store DigestStore, pipeline PipelineSource, users UserSource) *DigestAggregator {
	return NewDigestAggregator(store, pipeline, users, 90, 30, 7, zap.NewNop())
}

func TestBuildActionItems(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	tariffs := []model.Tariff{
		{ID: 1, Name: "HAM-SHA FCL", ValidUntil: now.AddDate(0, 0, 10)}, // urgent
		{ID: 2, Name: "ROT-NYC LCL", ValidUntil: now.AddDate(0, 0, 60)}, // not urgent
	}
	events := []model.CSPEvent{
		{ID: 5, Reference: "Q-2051", Stage: "quoted", UpdatedAt: now.AddDate(0, 0, -12)},
	}
	reviews := []model.ReviewItem{
		{ID: 9, Subject: "Margin override Q-2051"},
	}

	items := BuildActionItems(tariffs, events, reviews, 30, now)

	require.Len(t, items, 3)
	assert.Equal(t, model.PriorityHigh, items[0].Priority)
	assert.Equal(t, "expiring_tariff", items[0].Category)
	assert.Contains(t, items[0].Message, "1 tariff(s) expiring within 30 days")

	assert.Equal(t, model.PriorityMedium, items[1].Priority)
	assert.Equal(t, "stalled_pipeline", items[1].Category)
	assert.Contains(t, items[1].Message, "Q-2051")

	assert.Equal(t, model.PriorityLow, items[2].Priority)
	assert.Equal(t, "pending_review", items[2].Category)
}

func TestBuildActionItemsFoldsUrgentTariffs(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	tariffs := []model.Tariff{
		{ID: 1, Name: "HAM-SHA FCL", ValidUntil: now.AddDate(0, 0, 5)},
		{ID: 2, Name: "ROT-NYC LCL", ValidUntil: now.AddDate(0, 0, 10)},
		{ID: 3, Name: "ANT-SIN FCL", ValidUntil: now.AddDate(0, 0, 60)},
	}

	items := BuildActionItems(tariffs, nil, nil, 30, now)

	require.Len(t, items, 1)
	assert.Equal(t, model.PriorityHigh, items[0].Priority)
	assert.Contains(t, items[0].Message, "2 tariff(s)")
}

func TestBuildActionItemsEmpty(t *testing.T) {
	items := BuildActionItems(nil, nil, nil, 30, time.Now())
	assert.Empty(t, items)
}

func TestGenerateForUserCreates(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store := &fakeDigestStore{}
	pipeline := &fakePipeline{
		tariffs: []model.Tariff{{ID: 1, Name: "HAM-SHA FCL", ValidUntil: now.AddDate(0, 0, 5)}},
		reviews: []model.ReviewItem{{ID: 2, Subject: "Credit check"}},
	}
	g := newTestAggregator(store, pipeline, &fakeUsers{})

	digest, created, err := g.GenerateForUser(context.Background(), 1, now)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2026-03-01", digest.DigestDate)
	assert.Equal(t, 1, digest.Summary.High)
	assert.Equal(t, 0, digest.Summary.Medium)
	assert.Equal(t, 1, digest.Summary.Low)
	require.Len(t, store.inserted, 1)
}

func TestGenerateForUserIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	stored := &model.DailyDigest{ID: 99, UserID: 1, DigestDate: "2026-03-01"}
	store := &fakeDigestStore{existing: map[string]*model.DailyDigest{
		digestKey(1, "2026-03-01"): stored,
	}}
	g := newTestAggregator(store, &fakePipeline{}, &fakeUsers{})

	digest, created, err := g.GenerateForUser(context.Background(), 1, now)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, stored, digest)
	assert.Empty(t, store.inserted)
}

func TestGenerateForUserLosesRace(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	winner := &model.DailyDigest{ID: 7, UserID: 1, DigestDate: "2026-03-01"}
	flipped := false
	store := &raceDigestStore{winner: winner, flipped: &flipped}
	g := newTestAggregator(store, &fakePipeline{}, &fakeUsers{})

	digest, created, err := g.GenerateForUser(context.Background(), 1, now)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, winner, digest)
}

// raceDigestStore reports no digest on the first lookup, rejects the
// insert, then serves the winner's row on the re-read.
type raceDigestStore struct {
	winner  *model.DailyDigest
	flipped *bool
}

func (r *raceDigestStore) FindByUserAndDate(_ context.Context, _ int, _ string) (*model.DailyDigest, error) {
	if *r.flipped {
		return r.winner, nil
	}
	return nil, nil
}

func (r *raceDigestStore) Insert(_ context.Context, _ *model.DailyDigest) (bool, error) {
	*r.flipped = true
	return false, nil
}

func TestGenerateAllContinuesPastFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store := &perUserDigestStore{failFor: 2}
	g := newTestAggregator(store, &fakePipeline{}, &fakeUsers{ids: []int{1, 2, 3}})

	processed, created, err := g.GenerateAll(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Equal(t, 2, created)
}

// perUserDigestStore fails lookups for one user and stores the rest.
type perUserDigestStore struct {
	failFor  int
	inserted int
}

func (s *perUserDigestStore) FindByUserAndDate(_ context.Context, userID int, _ string) (*model.DailyDigest, error) {
	if userID == s.failFor {
		return nil, errors.New("connection reset")
	}
	return nil, nil
}

func (s *perUserDigestStore) Insert(_ context.Context, d *model.DailyDigest) (bool, error) {
	s.inserted++
	d.ID = s.inserted
	return true, nil
}
