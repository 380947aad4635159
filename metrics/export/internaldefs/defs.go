package internaldefs

import (
	"github.com/MrEthical07/sessiongate"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   sessiongate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   sessiongate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: sessiongate.MetricLoginSuccess, Name: "sessiongate_login_success_total", Help: "Successful login attempts."},
	{ID: sessiongate.MetricLoginFailure, Name: "sessiongate_login_failure_total", Help: "Failed login attempts."},
	{ID: sessiongate.MetricSessionCreated, Name: "sessiongate_session_created_total", Help: "Created sessions."},
	{ID: sessiongate.MetricSessionEvicted, Name: "sessiongate_session_evicted_total", Help: "Sessions evicted by the per-user connection cap."},
	{ID: sessiongate.MetricLogout, Name: "sessiongate_logout_total", Help: "Single-session logout operations."},
	{ID: sessiongate.MetricLogoutAll, Name: "sessiongate_logout_all_total", Help: "Logout-all operations."},
	{ID: sessiongate.MetricAccountCreationSuccess, Name: "sessiongate_account_creation_success_total", Help: "Successful registrations."},
	{ID: sessiongate.MetricAccountCreationDuplicate, Name: "sessiongate_account_creation_duplicate_total", Help: "Registrations rejected as duplicate email."},
	{ID: sessiongate.MetricAuthSuccess, Name: "sessiongate_auth_success_total", Help: "Requests admitted by the gate."},
	{ID: sessiongate.MetricAuthUnauthorized, Name: "sessiongate_auth_unauthorized_total", Help: "Gate rejections without credentials."},
	{ID: sessiongate.MetricAuthForbidden, Name: "sessiongate_auth_forbidden_total", Help: "Gate rejections of invalid tokens and revoked sessions."},
	{ID: sessiongate.MetricSettingsWrite, Name: "sessiongate_settings_write_total", Help: "Settings insert and overwrite operations."},
	{ID: sessiongate.MetricSettingsFullRejected, Name: "sessiongate_settings_full_rejected_total", Help: "Settings inserts rejected at capacity."},
	{ID: sessiongate.MetricSettingsDelete, Name: "sessiongate_settings_delete_total", Help: "Settings delete operations."},
	{ID: sessiongate.MetricStoreFailure, Name: "sessiongate_store_failure_total", Help: "Backing store failures surfaced as internal errors."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessiongate.MetricValidateLatency, Name: "sessiongate_validate_latency_seconds", Help: "Gate validation latency."},
}

// HistogramBounds are the upper bounds of the engine latency buckets in
// seconds, without the implicit +Inf bucket.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// cannot carry labels.
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

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// element is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
