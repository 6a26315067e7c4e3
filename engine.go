package authcore

import (
	"context"
	"time"

	"github.com/immolink/authcore/internal/rate"
	"github.com/immolink/authcore/password"
	"github.com/immolink/authcore/token"
	"log/slog"
)

// Service is the authentication orchestrator. It composes the credential
// store, password hasher, token manager, TOTP manager and mailer into the
// register/login/refresh/reset/2FA flows.
//
// A Service is created through a Builder, configured once and safe for
// concurrent use. It never retries failed storage calls; transient-failure
// retries belong to the caller.
type Service struct {
	config  Config
	store   UserStore
	mailer  Mailer
	hasher  *password.Hasher
	tokens  *token.Manager
	totp    *totpManager
	limiter *rate.Limiter
	audit   *auditDispatcher
	metrics *Metrics
	logger  *slog.Logger

	// dummyHash is verified against when no user record exists, so the
	// missing-user and wrong-password paths cost the same.
	dummyHash string
}

// Close flushes the audit dispatcher.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
}

// MetricsSnapshot returns a copy of the in-process counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Service) emitAudit(ctx context.Context, eventType string, success bool, userID string, flowErr error, metadata map[string]string) {
	if s == nil || s.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if flowErr != nil {
		event.Error = flowErr.Error()
	}
	s.audit.Emit(ctx, event)
}

// accountGateError maps lifecycle flags to the rejection the caller sees.
func accountGateError(u *User) error {
	if u.IsBlocked {
		return ErrAccountBlocked
	}
	if !u.IsActive {
		return ErrAccountInactive
	}
	return nil
}

func (s *Service) tokenPayload(u *User) token.Payload {
	return token.Payload{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        string(u.Role),
		AccountType: string(u.AccountType),
	}
}

// issueTokenPair signs the access+refresh pair for a fully authenticated
// user.
func (s *Service) issueTokenPair(u *User) (access, refresh string, err error) {
	payload := s.tokenPayload(u)
	access, err = s.tokens.IssueAccess(payload)
	if err != nil {
		return "", "", internalErr(err)
	}
	refresh, err = s.tokens.IssueRefresh(payload)
	if err != nil {
		return "", "", internalErr(err)
	}
	return access, refresh, nil
}
