package tokengate

import (
	"testing"
	"time"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricReplayDetected)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("MetricLoginSuccess = %d, want 2", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 2 {
		t.Fatalf("snapshot login = %d, want 2", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricReplayDetected] != 1 {
		t.Fatalf("snapshot replay = %d, want 1", snap.Counters[MetricReplayDetected])
	}
	if snap.Counters[MetricLogout] != 0 {
		t.Fatalf("untouched counter = %d, want 0", snap.Counters[MetricLogout])
	}
}

func TestMetricsDisabledNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)

	if m.Enabled() {
		t.Fatal("metrics must report disabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled counter = %d, want 0", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled snapshot must be empty, got %d counters", len(snap.Counters))
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)
	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics must report zero")
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []time.Duration{
		30 * time.Microsecond,  // bucket 0
		80 * time.Microsecond,  // bucket 1
		400 * time.Microsecond, // bucket 3
		2 * time.Millisecond,   // bucket 5
		time.Second,            // bucket 7
	}
	for _, d := range samples {
		m.Observe(MetricVerifyLatency, d)
	}

	// Only the verify histogram exists; other IDs are dropped.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricVerifyLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count = %d, want %d", len(buckets), histBucketCount)
	}

	want := []uint64{1, 1, 0, 1, 0, 1, 0, 1}
	for i, w := range want {
		if buckets[i] != w {
			t.Fatalf("bucket %d = %d, want %d (all: %v)", i, buckets[i], w, buckets)
		}
	}

	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("non-latency IDs must not grow histograms")
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{50 * time.Microsecond, 0},
		{51 * time.Microsecond, 1},
		{100 * time.Microsecond, 1},
		{250 * time.Microsecond, 2},
		{500 * time.Microsecond, 3},
		{time.Millisecond, 4},
		{5 * time.Millisecond, 5},
		{25 * time.Millisecond, 6},
		{26 * time.Millisecond, 7},
		{time.Hour, 7},
	}

	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Errorf("bucketIndex(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestEngineCountsOperations(t *testing.T) {
	up := newMockUserProvider()
	engine, done := newTestEngine(t, testConfig(), up)
	defer done()

	result := registerTestUser(t, engine, "alice@example.com", "correct-horse")
	mustRefresh(t, engine, result.Tokens.RefreshToken)

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 {
		t.Fatalf("register count = %d", snap.Counters[MetricRegisterSuccess])
	}
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("refresh count = %d", snap.Counters[MetricRefreshSuccess])
	}
	if snap.Counters[MetricTokenIssued] != 2 {
		t.Fatalf("issued count = %d", snap.Counters[MetricTokenIssued])
	}
}
