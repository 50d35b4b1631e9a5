package core

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// OverdueRecorder is implemented by recorders that also count overdue flips.
type OverdueRecorder interface {
	ObserveOverdue(ctx context.Context, flipped int)
}

// Tracer opens a span around each service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed with the operation outcome.
type TraceSpan interface {
	End(err error)
}

// AuditStatus is the outcome of an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating operation.
type AuditEntry struct {
	Operation  string
	EntityID   string
	Status     AuditStatus
	Error      string
	Duration   time.Duration
	RecordedAt time.Time
}

// AuditRecorder receives audit entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// PrometheusRecorder exports operation counters, latencies and overdue flips.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	overdue    prometheus.Counter
}

// NewPrometheusRecorder builds the collectors and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetledger",
			Name:      "operations_total",
			Help:      "Lifecycle operations by outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assetledger",
			Name:      "operation_duration_seconds",
			Help:      "Lifecycle operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		overdue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetledger",
			Name:      "allocations_marked_overdue_total",
			Help:      "Allocations flipped from active to overdue by the sweep.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.operations, r.durations, r.overdue} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveOverdue implements OverdueRecorder.
func (r *PrometheusRecorder) ObserveOverdue(_ context.Context, flipped int) {
	if flipped > 0 {
		r.overdue.Add(float64(flipped))
	}
}

// LogTracer writes one debug event per finished span.
type LogTracer struct {
	logger zerolog.Logger
}

// NewLogTracer returns a tracer logging span outcomes to logger.
func NewLogTracer(logger zerolog.Logger) *LogTracer {
	return &LogTracer{logger: logger.With().Str("component", "trace").Logger()}
}

// Start implements Tracer.
func (t *LogTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &logSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type logSpan struct {
	tracer    *LogTracer
	operation string
	started   time.Time
}

func (s *logSpan) End(err error) {
	ended := time.Now().UTC()
	event := s.tracer.logger.Debug().
		Str("operation", s.operation).
		Time("started_at", s.started).
		Dur("duration", ended.Sub(s.started))
	if err != nil {
		event = event.Err(err).Str("status", "error")
	} else {
		event = event.Str("status", "success")
	}
	event.Msg("span")
}

// LogAuditRecorder writes audit entries as structured info events.
type LogAuditRecorder struct {
	logger zerolog.Logger
}

// NewLogAuditRecorder returns an audit recorder backed by logger.
func NewLogAuditRecorder(logger zerolog.Logger) *LogAuditRecorder {
	return &LogAuditRecorder{logger: logger.With().Str("component", "audit").Logger()}
}

// Record implements AuditRecorder.
func (r *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	event := r.logger.Info().
		Str("operation", entry.Operation).
		Str("entity_id", entry.EntityID).
		Str("status", string(entry.Status)).
		Dur("duration", entry.Duration).
		Time("recorded_at", entry.RecordedAt)
	if entry.Error != "" {
		event = event.Str("error", entry.Error)
	}
	event.Msg("audit")
}
