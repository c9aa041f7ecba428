package internaldefs

import (
	"github.com/dmarquespt/authengine"
)

// CounterDef maps one engine counter to its exported metric name.
type CounterDef struct {
	ID   authengine.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to its exported metric name.
type HistogramDef struct {
	ID   authengine.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order. The order is
// the exposition order, so appending keeps existing dashboards intact.
var CounterDefs = []CounterDef{
	{ID: authengine.MetricLoginSuccess, Name: "authengine_login_success_total", Help: "Successful logins."},
	{ID: authengine.MetricLoginFailure, Name: "authengine_login_failure_total", Help: "Failed credential checks."},
	{ID: authengine.MetricLoginBlocked, Name: "authengine_login_blocked_total", Help: "Logins rejected by the brute-force block."},
	{ID: authengine.MetricTwoFactorRequired, Name: "authengine_twofactor_required_total", Help: "Logins deferred to the two-factor step."},
	{ID: authengine.MetricTwoFactorSuccess, Name: "authengine_twofactor_success_total", Help: "Successful two-factor verifications during login."},
	{ID: authengine.MetricTwoFactorFailure, Name: "authengine_twofactor_failure_total", Help: "Failed two-factor verifications during login."},
	{ID: authengine.MetricRefreshSuccess, Name: "authengine_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authengine.MetricRefreshFailure, Name: "authengine_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: authengine.MetricRefreshReuse, Name: "authengine_refresh_reuse_total", Help: "Refresh attempts with an already-consumed token."},
	{ID: authengine.MetricSessionCreated, Name: "authengine_session_created_total", Help: "Sessions created."},
	{ID: authengine.MetricSessionRevoked, Name: "authengine_session_revoked_total", Help: "Sessions revoked by any path."},
	{ID: authengine.MetricSessionEvicted, Name: "authengine_session_evicted_total", Help: "Oldest sessions evicted by the per-user cap."},
	{ID: authengine.MetricLogout, Name: "authengine_logout_total", Help: "Single-session logouts."},
	{ID: authengine.MetricLogoutAll, Name: "authengine_logout_all_total", Help: "Logout-all operations."},
	{ID: authengine.MetricRegisterSuccess, Name: "authengine_register_success_total", Help: "Accounts created."},
	{ID: authengine.MetricRegisterDuplicate, Name: "authengine_register_duplicate_total", Help: "Registrations rejected for a taken email."},
	{ID: authengine.MetricPasswordChange, Name: "authengine_password_change_total", Help: "Password changes."},
	{ID: authengine.MetricPasswordReuseRejected, Name: "authengine_password_reuse_rejected_total", Help: "Password changes rejected for reuse."},
	{ID: authengine.MetricResetRequest, Name: "authengine_reset_request_total", Help: "Password reset tokens issued."},
	{ID: authengine.MetricResetSuccess, Name: "authengine_reset_success_total", Help: "Completed password resets."},
	{ID: authengine.MetricResetFailure, Name: "authengine_reset_failure_total", Help: "Password resets rejected for an invalid token."},
	{ID: authengine.MetricBruteForceBlock, Name: "authengine_brute_force_block_total", Help: "Temporary email blocks set by the failure counter."},
	{ID: authengine.MetricSuspiciousActivity, Name: "authengine_suspicious_activity_total", Help: "Logins rejected by the region heuristic."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authengine.MetricValidateLatency, Name: "authengine_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, as rendered in
// Prometheus le labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix gives each bound a name usable in an instrument
// identifier.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms use.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
