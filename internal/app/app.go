// Package app wires configuration into a ready-to-run service, its archive,
// metrics registry and sweep lock.
package app

import (
	"context"
	"errors"
	"fmt"

	"assetledger/internal/blob"
	"assetledger/internal/config"
	"assetledger/internal/core"
	"assetledger/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the long-lived collaborators built from Config.
type App struct {
	Service  *core.Service
	Registry *prometheus.Registry
	Locker   scheduler.Locker

	store core.PersistentStore
	redis *redis.Client
	log   zerolog.Logger
}

// Build opens storage, the optional archive and the sweep lock.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := core.OpenPersistentStore(ctx, cfg.Storage, nil)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &App{store: store, log: log.With().Str("component", "app").Logger()}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := core.NewPrometheusRecorder(a.Registry)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(log),
		core.WithMetricsRecorder(recorder),
		core.WithTracer(core.NewLogTracer(log)),
		core.WithAuditRecorder(core.NewLogAuditRecorder(log)),
		core.WithReusabilityThreshold(cfg.ReusabilityThreshold),
	}
	if cfg.ArchiveEnabled() {
		archive, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open disposal archive: %w", err)
		}
		opts = append(opts, core.WithArchive(archive))
		a.log.Info().Str("driver", string(archive.Driver())).Msg("disposal archive enabled")
	}
	a.Service = core.NewService(store, opts...)

	if cfg.RedisURL != "" {
		client, err := scheduler.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.redis = client
		a.Locker = scheduler.NewRedisLocker(client)
	} else {
		a.Locker = scheduler.NewLocalLocker()
	}

	a.log.Info().
		Str("storage", string(cfg.Storage.Driver)).
		Bool("redis_lock", a.redis != nil).
		Float64("reusability_threshold", a.Service.ReusabilityThreshold()).
		Msg("application wired")
	return a, nil
}

// OverdueSweepJob returns the sweep job bound to this app's service and lock.
func (a *App) OverdueSweepJob(cfg *config.Config) *scheduler.OverdueSweepJob {
	return scheduler.NewOverdueSweepJob(scheduler.OverdueSweepConfig{
		Log:     a.log,
		Marker:  a.Service,
		Locker:  a.Locker,
		LockTTL: cfg.SweepLockTTL,
	})
}

// Close releases storage and the Redis connection.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, core.CloseStore(a.store))
	}
	return errors.Join(errs...)
}
