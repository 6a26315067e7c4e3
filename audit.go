package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent is a structured record of one flow outcome.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Audit event types emitted by the service.
const (
	auditEventRegisterSuccess        = "register.success"
	auditEventRegisterDuplicate      = "register.duplicate"
	auditEventLoginSuccess           = "login.success"
	auditEventLoginFailure           = "login.failure"
	auditEventLoginRateLimited       = "login.rate_limited"
	auditEventLoginTwoFactorPending  = "login.two_factor_pending"
	auditEventTwoFactorLoginSuccess  = "two_factor.login_success"
	auditEventTwoFactorLoginFailure  = "two_factor.login_failure"
	auditEventTwoFactorSetup         = "two_factor.setup"
	auditEventTwoFactorEnabled       = "two_factor.enabled"
	auditEventTwoFactorDisabled      = "two_factor.disabled"
	auditEventBackupCodeUsed         = "two_factor.backup_code_used"
	auditEventRefreshSuccess         = "refresh.success"
	auditEventRefreshFailure         = "refresh.failure"
	auditEventLogout                 = "logout"
	auditEventEmailVerified          = "email_verification.success"
	auditEventEmailVerifyFailure     = "email_verification.failure"
	auditEventPasswordResetRequested = "password_reset.requested"
	auditEventPasswordResetSuccess   = "password_reset.success"
	auditEventPasswordResetFailure   = "password_reset.failure"
	auditEventPasswordChanged        = "password.changed"
	auditEventAccountDeactivated     = "account.deactivated"
	auditEventAccountBlocked         = "account.blocked"
)

// AuditSink receives events from the dispatcher. Implementations must be
// safe for concurrent use.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink buffers events into a channel for external consumption.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receiving side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
