package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// OverdueSweepLockKey is the lock key shared by every sweep replica.
const OverdueSweepLockKey = "assetledger:overdue-sweep"

// OverdueMarker flips past-due allocations to overdue.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

// OverdueSweepJob runs the overdue sweep while holding a lock so only one
// replica sweeps at a time.
type OverdueSweepJob struct {
	log     zerolog.Logger
	marker  OverdueMarker
	locker  Locker
	lockTTL time.Duration
}

// OverdueSweepConfig holds the collaborators of an OverdueSweepJob.
type OverdueSweepConfig struct {
	Log     zerolog.Logger
	Marker  OverdueMarker
	Locker  Locker
	LockTTL time.Duration
}

// NewOverdueSweepJob creates the job. A nil locker uses a process-local one
// and a non-positive TTL becomes five minutes.
func NewOverdueSweepJob(cfg OverdueSweepConfig) *OverdueSweepJob {
	locker := cfg.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OverdueSweepJob{
		log:     cfg.Log.With().Str("job", "overdue_sweep").Logger(),
		marker:  cfg.Marker,
		locker:  locker,
		lockTTL: ttl,
	}
}

// Name returns the job name.
func (j *OverdueSweepJob) Name() string {
	return "overdue_sweep"
}

// Run executes one sweep. A sweep already running elsewhere is skipped
// without error.
func (j *OverdueSweepJob) Run(ctx context.Context) error {
	lock, err := j.locker.Obtain(ctx, OverdueSweepLockKey, j.lockTTL)
	if errors.Is(err, ErrLockHeld) {
		j.log.Info().Msg("overdue sweep already running, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("overdue sweep lock: %w", err)
	}
	defer func() {
		// Release with a fresh context so a cancelled sweep still frees the key.
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			j.log.Warn().Err(err).Msg("release overdue sweep lock")
		}
	}()

	start := time.Now()
	flipped, err := j.marker.MarkOverdue(ctx)
	if err != nil {
		return fmt.Errorf("overdue sweep flipped %d before failing: %w", flipped, err)
	}
	j.log.Info().
		Int("flipped", flipped).
		Dur("duration", time.Since(start)).
		Msg("overdue sweep completed")
	return nil
}
