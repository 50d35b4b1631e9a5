package scheduler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"assetledger/internal/core"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarker struct {
	flipped int
	err     error
	calls   int
}

func (m *fakeMarker) MarkOverdue(context.Context) (int, error) {
	m.calls++
	return m.flipped, m.err
}

type failingLocker struct{ err error }

func (l failingLocker) Obtain(context.Context, string, time.Duration) (Lock, error) {
	return nil, l.err
}

func TestOverdueSweepJob_Run(t *testing.T) {
	var buf bytes.Buffer
	marker := &fakeMarker{flipped: 3}
	locker := NewLocalLocker()
	job := NewOverdueSweepJob(OverdueSweepConfig{Log: zerolog.New(&buf), Marker: marker, Locker: locker})

	assert.Equal(t, "overdue_sweep", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, marker.calls)
	assert.Contains(t, buf.String(), `"flipped":3`)

	// The lock is released after the run.
	lock, err := locker.Obtain(context.Background(), OverdueSweepLockKey, time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Release(context.Background()))
}

func TestOverdueSweepJob_SkipsWhenLockHeld(t *testing.T) {
	marker := &fakeMarker{}
	locker := NewLocalLocker()
	held, err := locker.Obtain(context.Background(), OverdueSweepLockKey, time.Minute)
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	job := NewOverdueSweepJob(OverdueSweepConfig{Log: zerolog.Nop(), Marker: marker, Locker: locker})
	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, marker.calls)
}

func TestOverdueSweepJob_Errors(t *testing.T) {
	lockErr := errors.New("redis down")
	job := NewOverdueSweepJob(OverdueSweepConfig{Log: zerolog.Nop(), Marker: &fakeMarker{}, Locker: failingLocker{err: lockErr}})
	assert.ErrorIs(t, job.Run(context.Background()), lockErr)

	sweepErr := errors.New("store unavailable")
	job = NewOverdueSweepJob(OverdueSweepConfig{Log: zerolog.Nop(), Marker: &fakeMarker{flipped: 1, err: sweepErr}})
	err := job.Run(context.Background())
	require.ErrorIs(t, err, sweepErr)
	assert.Contains(t, err.Error(), "flipped 1")
}

func TestOverdueSweepJob_AgainstService(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc := core.NewInMemoryService(nil, core.WithClock(core.ClockFunc(func() time.Time { return now })))
	ctx := context.Background()

	asset, err := svc.RegisterAsset(ctx, assetFixture("SWEEP-1"))
	require.NoError(t, err)
	due := now.Add(24 * time.Hour)
	allocation, err := svc.Allocate(ctx, core.AllocateRequest{
		AssetID:            asset.ID,
		HolderID:           "emp-7",
		Purpose:            "site survey",
		ExpectedReturnDate: &due,
	})
	require.NoError(t, err)

	job := NewOverdueSweepJob(OverdueSweepConfig{Log: zerolog.Nop(), Marker: svc})
	require.NoError(t, job.Run(ctx))
	allocations, err := svc.ListAllocations(ctx, allocationFilter(asset.ID))
	require.NoError(t, err)
	assert.Equal(t, "active", string(allocations[0].Status))

	now = now.Add(3 * 24 * time.Hour)
	require.NoError(t, job.Run(ctx))
	allocations, err = svc.ListAllocations(ctx, allocationFilter(asset.ID))
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, allocation.ID, allocations[0].ID)
	assert.Equal(t, "overdue", string(allocations[0].Status))
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("ASSETLEDGER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ASSETLEDGER_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := ConnectRedis(ctx, url)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	locker := NewRedisLocker(client)
	key := "assetledger:test:" + time.Now().Format("150405.000000")
	lock, err := locker.Obtain(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx), "releasing twice is tolerated")
}

func TestConnectRedis_InvalidURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "http://not-redis")
	assert.Error(t, err)
}
