package prometheus

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	tokengate "github.com/glyphlabs/tokengate"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot tokengate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() tokengate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := tokengate.MetricsSnapshot{
		Counters:   make(map[tokengate.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[tokengate.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func gather(t *testing.T, src *fakeSource) map[string]*dto.MetricFamily {
	t.Helper()

	exp, err := NewExporterFromSource(src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(exp); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}
	return byName
}

func TestExporterNilSource(t *testing.T) {
	if _, err := NewExporterFromSource(nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestExporterCounters(t *testing.T) {
	src := &fakeSource{
		snapshot: tokengate.MetricsSnapshot{
			Counters: map[tokengate.MetricID]uint64{
				tokengate.MetricLoginSuccess:   3,
				tokengate.MetricReplayDetected: 1,
			},
			Histograms: map[tokengate.MetricID][]uint64{},
		},
		dropped: 2,
	}

	byName := gather(t, src)

	login := byName["tokengate_login_success_total"]
	if login == nil || login.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("login counter not exported: %+v", login)
	}

	replay := byName["tokengate_replay_detected_total"]
	if replay == nil || replay.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("replay counter not exported: %+v", replay)
	}

	dropped := byName["tokengate_audit_dropped_total"]
	if dropped == nil || dropped.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("dropped counter not exported: %+v", dropped)
	}

	// Counters absent from the snapshot export as zero, not missing.
	logout := byName["tokengate_logout_total"]
	if logout == nil || logout.GetMetric()[0].GetCounter().GetValue() != 0 {
		t.Fatalf("zero counter not exported: %+v", logout)
	}
}

func TestExporterHistogram(t *testing.T) {
	src := &fakeSource{
		snapshot: tokengate.MetricsSnapshot{
			Counters: map[tokengate.MetricID]uint64{},
			Histograms: map[tokengate.MetricID][]uint64{
				tokengate.MetricVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
	}

	byName := gather(t, src)

	fam := byName["tokengate_verify_latency_seconds"]
	if fam == nil {
		t.Fatal("histogram not exported")
	}

	hist := fam.GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 8 {
		t.Fatalf("sample count = %d, want 8", hist.GetSampleCount())
	}

	buckets := hist.GetBucket()
	if len(buckets) == 0 {
		t.Fatal("expected explicit buckets")
	}
	// Buckets must be cumulative.
	last := uint64(0)
	for _, b := range buckets {
		if b.GetCumulativeCount() < last {
			t.Fatalf("buckets not cumulative: %+v", buckets)
		}
		last = b.GetCumulativeCount()
	}
}
