package authcore

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics table.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricTwoFactorPending
	MetricTwoFactorLoginSuccess
	MetricTwoFactorLoginFailure
	MetricTwoFactorEnabled
	MetricTwoFactorDisabled
	MetricBackupCodeUsed
	MetricBackupCodeFailed
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricLogout
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricMailDispatchFailure

	metricIDCount
)

// CounterDef names a counter for exporters.
type CounterDef struct {
	ID   MetricID
	Name string
	Help string
}

// CounterDefs is the stable export table consumed by the Prometheus
// collector. Order defines exposition order.
var CounterDefs = []CounterDef{
	{MetricRegisterSuccess, "authcore_register_success_total", "Accounts created."},
	{MetricRegisterDuplicate, "authcore_register_duplicate_total", "Registrations rejected for an existing email."},
	{MetricLoginSuccess, "authcore_login_success_total", "Successful password logins."},
	{MetricLoginFailure, "authcore_login_failure_total", "Rejected logins (credentials, status, verification)."},
	{MetricLoginRateLimited, "authcore_login_rate_limited_total", "Logins rejected by the failed-attempt throttle."},
	{MetricTwoFactorPending, "authcore_two_factor_pending_total", "Logins paused for a second factor."},
	{MetricTwoFactorLoginSuccess, "authcore_two_factor_login_success_total", "Second-factor confirmations that issued tokens."},
	{MetricTwoFactorLoginFailure, "authcore_two_factor_login_failure_total", "Rejected second-factor codes at login."},
	{MetricTwoFactorEnabled, "authcore_two_factor_enabled_total", "Accounts that enabled two-factor auth."},
	{MetricTwoFactorDisabled, "authcore_two_factor_disabled_total", "Accounts that disabled two-factor auth."},
	{MetricBackupCodeUsed, "authcore_backup_code_used_total", "Backup codes consumed."},
	{MetricBackupCodeFailed, "authcore_backup_code_failed_total", "Rejected backup codes."},
	{MetricRefreshSuccess, "authcore_refresh_success_total", "Access tokens minted from refresh tokens."},
	{MetricRefreshFailure, "authcore_refresh_failure_total", "Rejected refresh attempts."},
	{MetricLogout, "authcore_logout_total", "Logouts."},
	{MetricEmailVerificationSuccess, "authcore_email_verification_success_total", "Email addresses verified."},
	{MetricEmailVerificationFailure, "authcore_email_verification_failure_total", "Rejected verification tokens."},
	{MetricPasswordResetRequest, "authcore_password_reset_request_total", "Password reset requests (including unknown emails)."},
	{MetricPasswordResetSuccess, "authcore_password_reset_success_total", "Passwords reset by token."},
	{MetricPasswordResetFailure, "authcore_password_reset_failure_total", "Rejected reset tokens."},
	{MetricPasswordChangeSuccess, "authcore_password_change_success_total", "Password changes."},
	{MetricPasswordChangeFailure, "authcore_password_change_failure_total", "Rejected password changes."},
	{MetricMailDispatchFailure, "authcore_mail_dispatch_failure_total", "Outbound emails that failed to send."},
}

// Metrics is a fixed-size table of atomic counters. When disabled, all
// operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates the counter table.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
