package core

import (
	"assetledger/pkg/domain"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls   []metricsCall
	overdue int
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) ObserveOverdue(_ context.Context, flipped int) {
	c.overdue += flipped
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	ended map[string][]error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s captureSpan) End(err error) {
	s.tracer.ended[s.op] = append(s.tracer.ended[s.op], err)
}

func TestServiceReportsOperations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{ended: map[string][]error{}}
	var logs bytes.Buffer
	svc, clock := newTestService(t,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)),
	)

	asset := mustRegister(t, svc, "OBS-1", nil)
	due := testEpoch.AddDate(0, 0, 1)
	if _, err := svc.Allocate(ctx, AllocateRequest{AssetID: asset.ID, HolderID: "h", Purpose: "p", ExpectedReturnDate: &due}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := svc.Allocate(ctx, AllocateRequest{AssetID: asset.ID, HolderID: "h", Purpose: "p"}); err == nil {
		t.Fatalf("expected second allocation to fail")
	}
	clock.Advance(72 * time.Hour)
	if n, err := svc.MarkOverdue(ctx); err != nil || n != 1 {
		t.Fatalf("mark overdue: %d %v", n, err)
	}
	if _, err := svc.GetAsset(ctx, asset.ID); err != nil {
		t.Fatalf("get asset: %v", err)
	}

	if !audit.has("register_asset", AuditStatusSuccess) || !audit.has("allocate", AuditStatusError) {
		t.Fatalf("expected audit entries, got %+v", audit.entries)
	}
	if audit.has("get_asset", AuditStatusSuccess) {
		t.Fatalf("reads must not be audited")
	}
	if !metrics.has("allocate", true) || !metrics.has("allocate", false) || !metrics.has("get_asset", true) {
		t.Fatalf("expected metrics for allocate outcomes, got %+v", metrics.calls)
	}
	if metrics.overdue != 1 {
		t.Fatalf("expected one overdue flip recorded, got %d", metrics.overdue)
	}
	if errs := tracer.ended["allocate"]; len(errs) != 2 || errs[0] != nil || errs[1] == nil {
		t.Fatalf("expected two allocate spans, got %+v", errs)
	}
	out := logs.String()
	if !strings.Contains(out, `"component":"core"`) || !strings.Contains(out, "operation failed") || !strings.Contains(out, "overdue sweep finished") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if _, err := NewPrometheusRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	svc, _ := newTestService(t, WithMetricsRecorder(recorder))
	mustRegister(t, svc, "PROM-1", nil)
	_, _ = svc.RegisterAsset(context.Background(), domain.Asset{AssetCode: "PROM-1", Name: "dup", AssetType: domain.AssetTypeTools})
	recorder.ObserveOverdue(context.Background(), 3)
	recorder.Observe(context.Background(), "", true, time.Second)

	if got := testutil.ToFloat64(recorder.operations.WithLabelValues("register_asset", "success")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(recorder.operations.WithLabelValues("register_asset", "error")); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if got := testutil.ToFloat64(recorder.overdue); got != 3 {
		t.Fatalf("expected 3 overdue flips, got %v", got)
	}
	if n := testutil.CollectAndCount(recorder.durations); n != 1 {
		t.Fatalf("expected one duration series, got %d", n)
	}
}

func TestLogTracerAndAuditRecorder(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	svc, _ := newTestService(t, WithTracer(NewLogTracer(logger)), WithAuditRecorder(NewLogAuditRecorder(logger)))
	mustRegister(t, svc, "LOG-1", nil)
	out := logs.String()
	for _, want := range []string{`"component":"trace"`, `"component":"audit"`, `"operation":"register_asset"`, `"status":"success"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}
}
