package authcore

import (
	"context"
	"errors"
	"time"
)

// VerifyEmail consumes an email-verification token. The verified flag flips
// and the token pair clears in one persisted update, so the token can never
// be valid while the effect is already applied, or the reverse.
func (s *Service) VerifyEmail(ctx context.Context, verificationToken string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	if verificationToken == "" {
		return ErrTokenInvalid
	}

	user, err := s.store.GetUserByVerificationToken(ctx, verificationToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metricInc(MetricEmailVerificationFailure)
			s.emitAudit(ctx, auditEventEmailVerifyFailure, false, "", ErrTokenInvalid, nil)
			return ErrTokenInvalid
		}
		return internalErr(err)
	}

	if time.Now().After(user.EmailVerificationExpires) {
		s.metricInc(MetricEmailVerificationFailure)
		s.emitAudit(ctx, auditEventEmailVerifyFailure, false, user.ID, ErrTokenExpired, nil)
		return ErrTokenExpired
	}

	user.EmailVerified = true
	user.EmailVerificationToken = ""
	user.EmailVerificationExpires = time.Time{}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// A concurrent request consumed the token first.
			return ErrTokenInvalid
		}
		return internalErr(err)
	}

	s.metricInc(MetricEmailVerificationSuccess)
	s.emitAudit(ctx, auditEventEmailVerified, true, user.ID, nil, nil)
	return nil
}
