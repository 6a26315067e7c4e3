package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports malformed or missing input.
	ErrValidation = errors.New("invalid input")
	// ErrDuplicateEmail reports a registration attempt for an email that
	// already has an account.
	ErrDuplicateEmail = errors.New("an account with this email already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// Callers must never be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountInactive reports a deactivated account.
	ErrAccountInactive = errors.New("account is deactivated")
	// ErrAccountBlocked reports a blocked account.
	ErrAccountBlocked = errors.New("account is blocked")
	// ErrEmailNotVerified blocks login until the verification flow completes.
	ErrEmailNotVerified = errors.New("email address not verified")
	// ErrTokenInvalid reports a malformed, unknown or already-consumed token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired reports a token past its TTL.
	ErrTokenExpired = errors.New("token expired")
	// ErrUserInactive rejects a refresh for a user that can no longer log in.
	ErrUserInactive = errors.New("user not found or inactive")
	// ErrTwoFactorRequired signals that login must continue with a second factor.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrTwoFactorInvalidCode rejects a TOTP or backup code.
	ErrTwoFactorInvalidCode = errors.New("invalid two-factor code")
	// ErrTwoFactorAlreadyEnabled rejects setup/enable on a protected account.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	// ErrTwoFactorNotEnabled rejects disable/verify when 2FA is off.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	// ErrTwoFactorNotConfigured rejects enable before a setup was generated.
	ErrTwoFactorNotConfigured = errors.New("two-factor authentication not configured")
	// ErrNotFound reports a missing entity lookup.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict reports a lost optimistic-concurrency race on a
	// user-record update.
	ErrVersionConflict = errors.New("user record version conflict")
	// ErrLoginRateLimited reports too many failed login attempts.
	ErrLoginRateLimited = errors.New("too many login attempts")
	// ErrInternal wraps storage, crypto and transport failures. The wrapped
	// detail is for logs; callers only ever see this sentinel.
	ErrInternal = errors.New("internal error")
	// ErrServiceNotReady reports use of an unbuilt or closed service.
	ErrServiceNotReady = errors.New("service not initialized")
)

// internalErr hides lower-layer error text behind ErrInternal while keeping
// it reachable for logging via errors.Unwrap.
func internalErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

func validationErr(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}
