package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/immolink/authcore/internal/rate"
)

// Login verifies the email/password pair and either issues the token pair
// or, for 2FA-protected accounts, returns a pending result that must be
// completed with VerifyTwoFactorLogin.
//
// Unknown email and wrong password produce the same error and comparable
// timing, so the endpoint cannot be used to enumerate accounts.
func (s *Service) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}

	email = NormalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				s.metricInc(MetricLoginRateLimited)
				s.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, map[string]string{"email": email})
				return nil, ErrLoginRateLimited
			}
			return nil, internalErr(err)
		}
	}

	user, lookupErr := s.store.GetUserByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, internalErr(lookupErr)
	}

	storedHash := s.dummyHash
	if user != nil {
		storedHash = user.PasswordHash
	}
	ok, err := s.hasher.Verify(pass, storedHash)
	if err != nil {
		return nil, internalErr(err)
	}
	if user == nil || !ok || pass == "" {
		return nil, s.failLogin(ctx, email, ip, userIDOrEmpty(user))
	}

	if gateErr := accountGateError(user); gateErr != nil {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, user.ID, gateErr, map[string]string{"reason": "account_status"})
		return nil, gateErr
	}
	if !user.EmailVerified && s.config.Security.ProductionMode {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrEmailNotVerified, map[string]string{"reason": "email_unverified"})
		return nil, ErrEmailNotVerified
	}

	s.maybeUpgradeHash(ctx, user, pass)
	pass = ""

	now := time.Now()
	if err := s.store.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, internalErr(err)
	}
	// Reflect the recorded login in the returned view.
	user.LastLogin = now
	user.LoginCount++

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email, ip); err != nil {
			s.logger.Warn("login throttle reset failed", "user_id", user.ID, "error", err)
		}
	}

	if user.TwoFactorEnabled {
		s.metricInc(MetricTwoFactorPending)
		s.emitAudit(ctx, auditEventLoginTwoFactorPending, true, user.ID, nil, nil)
		return &LoginResult{TwoFactorRequired: true, UserID: user.ID}, nil
	}

	access, refresh, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}

	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       user.ID,
		User:         user.SafeView(),
	}, nil
}

func (s *Service) failLogin(ctx context.Context, email, ip, userID string) error {
	if s.limiter != nil {
		if err := s.limiter.RecordFailure(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				s.metricInc(MetricLoginRateLimited)
				s.emitAudit(ctx, auditEventLoginRateLimited, false, userID, ErrLoginRateLimited, map[string]string{"email": email})
				return ErrLoginRateLimited
			}
			s.logger.Warn("login throttle update failed", "error", err)
		}
	}
	s.metricInc(MetricLoginFailure)
	s.emitAudit(ctx, auditEventLoginFailure, false, userID, ErrInvalidCredentials, map[string]string{"email": email})
	return ErrInvalidCredentials
}

// maybeUpgradeHash rehashes at the configured cost after a successful
// verification. Best effort; a failure must not block the login.
func (s *Service) maybeUpgradeHash(ctx context.Context, user *User, pass string) {
	if !s.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := s.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	upgraded, err := s.hasher.Hash(pass)
	if err != nil {
		s.logger.Warn("password hash upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = upgraded
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("password hash upgrade update failed", "user_id", user.ID, "error", err)
	}
}

func userIDOrEmpty(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
