package core

import (
	"assetledger/internal/blob"
	"assetledger/internal/infra/persistence/memory"
	"assetledger/pkg/domain"
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Clock provides the current time for business dates such as allocation,
// return, maintenance and disposal dates.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock. Stores that stamp records with their
// own clock are switched to it as well.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the structured logger used for operation outcomes.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With().Str("component", "core").Logger()
	}
}

// WithMetricsRecorder installs a recorder notified after every operation.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a tracer that wraps every operation in a span.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder installs a recorder receiving one entry per mutating operation.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithArchive enables archiving of disposal records to the blob store.
func WithArchive(store blob.Store) Option {
	return func(s *Service) {
		s.archive = store
	}
}

// WithReusabilityThreshold overrides the inclusive percentage at which a
// returned asset is ready for reallocation. Values outside [0,100] are ignored.
func WithReusabilityThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 && threshold <= 100 {
			s.threshold = threshold
		}
	}
}

// Service runs the asset lifecycle workflows. Every mutating operation is one
// store transaction evaluated by the store's rules engine.
type Service struct {
	store     domain.PersistentStore
	clock     Clock
	logger    zerolog.Logger
	metrics   MetricsRecorder
	tracer    Tracer
	audit     AuditRecorder
	archive   blob.Store
	threshold float64

	// beforeOverdueFlip runs between the overdue scan and each flip; tests use
	// it to interleave a concurrent return.
	beforeOverdueFlip func(allocationID string)
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		clock:     systemClock{},
		logger:    zerolog.Nop(),
		metrics:   noopMetricsRecorder{},
		tracer:    noopTracer{},
		audit:     noopAuditRecorder{},
		threshold: domain.DefaultReusabilityThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, system := s.clock.(systemClock); !system {
		if clocked, ok := store.(interface{ SetNowFunc(func() time.Time) }); ok {
			clocked.SetNowFunc(func() time.Time { return s.clock.Now().UTC() })
		}
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects NewDefaultRulesEngine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// ReusabilityThreshold reports the configured reallocation threshold.
func (s *Service) ReusabilityThreshold() float64 {
	return s.threshold
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// run executes fn in one store transaction and reports the outcome to the
// tracer, metrics, audit and logger. fn returns the id of the primary record
// it touched for the audit trail. Preconditions run inside fn before the first
// write, so a rejected operation leaves no state behind.
func (s *Service) run(ctx context.Context, op string, fn func(tx domain.Transaction) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	var entityID string
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id, err := fn(tx)
		entityID = id
		return err
	})
	duration := s.finish(ctx, op, entityID, started, err)
	entry := AuditEntry{
		Operation:  op,
		EntityID:   entityID,
		Status:     AuditStatusSuccess,
		Duration:   duration,
		RecordedAt: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
	span.End(err)
	return err
}

// view runs a read against a consistent snapshot. Reads are traced and
// measured but not audited.
func (s *Service) view(ctx context.Context, op, entityID string, fn func(view domain.TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := s.store.View(ctx, fn)
	s.finish(ctx, op, entityID, started, err)
	span.End(err)
	return err
}

func (s *Service) finish(ctx context.Context, op, entityID string, started time.Time, err error) time.Duration {
	duration := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		level := zerolog.WarnLevel
		if !domain.IsValidation(err) && !domain.IsNotFound(err) && !domain.IsConflict(err) {
			level = zerolog.ErrorLevel
		}
		s.logger.WithLevel(level).
			Err(err).
			Str("operation", op).
			Str("entity_id", entityID).
			Dur("duration", duration).
			Msg("operation failed")
		return duration
	}
	s.logger.Debug().
		Str("operation", op).
		Str("entity_id", entityID).
		Dur("duration", duration).
		Msg("operation completed")
	return duration
}
