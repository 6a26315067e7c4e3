package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/immolink/authcore/internal"
)

// RequestPasswordReset starts the reset flow. It always succeeds from the
// caller's point of view, whether or not the email has an account, so the
// endpoint cannot be used to enumerate addresses. Mail dispatch failures
// are logged, never surfaced.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	s.metricInc(MetricPasswordResetRequest)

	email = NormalizeEmail(email)
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.emitAudit(ctx, auditEventPasswordResetRequested, true, "", nil, map[string]string{"known_account": "false"})
			return nil
		}
		return internalErr(err)
	}

	resetToken, err := internal.NewOpaqueToken()
	if err != nil {
		return internalErr(err)
	}

	user.PasswordResetToken = resetToken
	user.PasswordResetExpires = time.Now().Add(s.config.PasswordReset.TokenTTL)
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return internalErr(err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, resetToken); err != nil {
		s.metricInc(MetricMailDispatchFailure)
		s.logger.Warn("password reset email dispatch failed",
			"user_id", user.ID, "error", err)
	}

	s.emitAudit(ctx, auditEventPasswordResetRequested, true, user.ID, nil, nil)
	return nil
}

// ResetPassword consumes a reset token and applies the new password. The
// token clears in the same persisted update as the password change, and a
// lost concurrency race surfaces as ErrTokenInvalid, so each token is
// accepted at most once.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	if resetToken == "" {
		return ErrTokenInvalid
	}
	if len(newPassword) < 6 {
		return validationErr("password must be at least 6 characters")
	}

	user, err := s.store.GetUserByResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metricInc(MetricPasswordResetFailure)
			s.emitAudit(ctx, auditEventPasswordResetFailure, false, "", ErrTokenInvalid, nil)
			return ErrTokenInvalid
		}
		return internalErr(err)
	}

	if time.Now().After(user.PasswordResetExpires) {
		s.metricInc(MetricPasswordResetFailure)
		s.emitAudit(ctx, auditEventPasswordResetFailure, false, user.ID, ErrTokenExpired, nil)
		return ErrTokenExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalErr(err)
	}

	user.PasswordHash = hash
	user.PasswordResetToken = ""
	user.PasswordResetExpires = time.Time{}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.metricInc(MetricPasswordResetFailure)
			return ErrTokenInvalid
		}
		return internalErr(err)
	}

	s.metricInc(MetricPasswordResetSuccess)
	s.emitAudit(ctx, auditEventPasswordResetSuccess, true, user.ID, nil, nil)
	return nil
}

// ChangePassword applies a new password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	if len(newPassword) < 6 {
		return validationErr("password must be at least 6 characters")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return internalErr(err)
	}
	if !ok {
		s.metricInc(MetricPasswordChangeFailure)
		s.emitAudit(ctx, auditEventPasswordResetFailure, false, user.ID, ErrInvalidCredentials, map[string]string{"flow": "change"})
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalErr(err)
	}

	user.PasswordHash = hash
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return internalErr(err)
	}

	s.metricInc(MetricPasswordChangeSuccess)
	s.emitAudit(ctx, auditEventPasswordChanged, true, user.ID, nil, nil)
	return nil
}
