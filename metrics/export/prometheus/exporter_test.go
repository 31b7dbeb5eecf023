package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	snapshot goGuard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goGuard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricBlockEntered: 7,
			},
			Histograms: map[goGuard.MetricID][]uint64{
				goGuard.MetricDecisionLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"goguard_block_entered_total 7",
		"goguard_failure_recorded_total 0",
		`goguard_decision_latency_seconds_bucket{le="0.005"} 1`,
		`goguard_decision_latency_seconds_bucket{le="+Inf"} 36`,
		"goguard_decision_latency_seconds_count 36",
		"goguard_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderOmitsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{goGuard.MetricCheck: 1},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "goguard_decision_latency_seconds") {
		t.Fatalf("unexpected histogram in output:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{goGuard.MetricCheck: 1},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExporterReadsTracker(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	tracker, err := goGuard.New().WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer tracker.Close()

	for i := 0; i < 5; i++ {
		if _, err := tracker.CheckAndRecordFailure(context.Background(), "a@x.com"); err != nil {
			t.Fatalf("failure %d: %v", i+1, err)
		}
	}

	out := NewPrometheusExporter(tracker).Render()
	if !strings.Contains(out, "goguard_failure_recorded_total 5") || !strings.Contains(out, "goguard_block_entered_total 1") {
		t.Fatalf("unexpected tracker metrics:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricFailureRecorded: 1000,
				goGuard.MetricWarningIssued:   400,
				goGuard.MetricBlockEntered:    40,
				goGuard.MetricBlockedAttempt:  90,
				goGuard.MetricReset:           800,
			},
			Histograms: map[goGuard.MetricID][]uint64{
				goGuard.MetricDecisionLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
