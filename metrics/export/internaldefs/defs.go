package internaldefs

import (
	tokengate "github.com/glyphlabs/tokengate"
)

// CounterDef maps one engine counter to an exported metric name.
type CounterDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to an exported metric name.
type HistogramDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// CounterDefs is the single source of truth for exported counter names; the
// Prometheus and OpenTelemetry bridges both iterate it so they can never
// disagree about what a metric is called.
var CounterDefs = []CounterDef{
	{ID: tokengate.MetricLoginSuccess, Name: "tokengate_login_success_total", Help: "Successful login attempts."},
	{ID: tokengate.MetricLoginFailure, Name: "tokengate_login_failure_total", Help: "Failed login attempts."},
	{ID: tokengate.MetricRegisterSuccess, Name: "tokengate_register_success_total", Help: "Successful account registrations."},
	{ID: tokengate.MetricRegisterDuplicate, Name: "tokengate_register_duplicate_total", Help: "Registrations rejected as duplicate email."},
	{ID: tokengate.MetricRefreshSuccess, Name: "tokengate_refresh_success_total", Help: "Successful refresh-token rotations."},
	{ID: tokengate.MetricRefreshFailure, Name: "tokengate_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: tokengate.MetricReplayDetected, Name: "tokengate_replay_detected_total", Help: "Refresh tokens presented again after rotation."},
	{ID: tokengate.MetricFamilyRevoked, Name: "tokengate_family_revoked_total", Help: "Token families revoked in full."},
	{ID: tokengate.MetricTokenIssued, Name: "tokengate_token_issued_total", Help: "Access/refresh token pairs issued."},
	{ID: tokengate.MetricLogout, Name: "tokengate_logout_total", Help: "Single-token logout operations."},
	{ID: tokengate.MetricLogoutAll, Name: "tokengate_logout_all_total", Help: "Logout-all operations."},
	{ID: tokengate.MetricPasswordChangeSuccess, Name: "tokengate_password_change_success_total", Help: "Successful password changes."},
	{ID: tokengate.MetricPasswordChangeInvalidOld, Name: "tokengate_password_change_invalid_old_total", Help: "Password changes rejected for a wrong current password."},
	{ID: tokengate.MetricAccountDeactivated, Name: "tokengate_account_deactivated_total", Help: "Account deactivations."},
}

// HistogramDefs lists exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: tokengate.MetricVerifyLatency, Name: "tokengate_verify_latency_seconds", Help: "Access-token verification latency."},
}

// HistogramUpperBounds are the bucket boundaries in seconds, matching the
// engine's microsecond-scale buckets.
var HistogramUpperBounds = []float64{
	0.00005,
	0.0001,
	0.00025,
	0.0005,
	0.001,
	0.005,
	0.025,
}

// HistogramBoundSuffix names each bucket for backends without native
// histogram support.
var HistogramBoundSuffix = []string{
	"50us",
	"100us",
	"250us",
	"500us",
	"1ms",
	"5ms",
	"25ms",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// export formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
