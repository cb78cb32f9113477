package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MStee09/BoltFreightCSP-sub004/internal/repository"
)

type fakeStallStore struct {
	cutoff  time.Time
	stalled []repository.StalledThread
	err     error
}

func (f *fakeStallStore) SweepStalled(_ context.Context, cutoff time.Time) ([]repository.StalledThread, error) {
	f.cutoff = cutoff
	return f.stalled, f.err
}

func TestStallSweep(t *testing.T) {
	store := &fakeStallStore{stalled: []repository.StalledThread{
		{ID: 1, TrackingCode: "FO-AAAAAAAA"},
		{ID: 2, TrackingCode: "FO-BBBBBBBB"},
	}}
	d := NewStallDetector(store, 7, zap.NewNop())

	before := time.Now()
	stalled, err := d.Sweep(context.Background())

	require.NoError(t, err)
	assert.Len(t, stalled, 2)

	wantCutoff := before.Add(-7 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, store.cutoff, time.Minute)
}

func TestStallSweepFailure(t *testing.T) {
	store := &fakeStallStore{err: errors.New("connection reset")}
	d := NewStallDetector(store, 7, zap.NewNop())

	_, err := d.Sweep(context.Background())
	assert.Error(t, err)
}
