package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/immolink/authcore/internal"
)

// GenerateTwoFactorSetup creates a pending TOTP secret and a fresh batch of
// backup codes for the account. The secret and the plaintext codes are
// returned exactly once; only code hashes are persisted. The account is not
// protected until EnableTwoFactor confirms possession of the secret.
func (s *Service) GenerateTwoFactorSetup(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if gateErr := accountGateError(user); gateErr != nil {
		return nil, gateErr
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secretRaw, secretBase32, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, internalErr(err)
	}

	count := s.config.TwoFactor.BackupCodeCount
	plaintext := make([]string, 0, count)
	records := make([]BackupCode, 0, count)
	for i := 0; i < count; i++ {
		code, err := internal.NewBackupCode(s.config.TwoFactor.BackupCodeLength)
		if err != nil {
			return nil, internalErr(err)
		}
		plaintext = append(plaintext, code)
		records = append(records, BackupCode{Hash: internal.HashBackupCode(code)})
	}

	user.TwoFactorSecret = secretRaw
	user.TwoFactorBackupCodes = records
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, internalErr(err)
	}

	s.emitAudit(ctx, auditEventTwoFactorSetup, true, user.ID, nil, nil)
	return &TwoFactorSetup{
		Secret:          secretBase32,
		ProvisioningURI: s.totp.ProvisionURI(secretBase32, user.Email),
		BackupCodes:     plaintext,
	}, nil
}

// EnableTwoFactor turns on login protection after the caller proves
// possession of the pending secret with a live TOTP code or one of the
// setup's backup codes. Enabling never succeeds without that proof.
func (s *Service) EnableTwoFactor(ctx context.Context, userID, code string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if gateErr := accountGateError(user); gateErr != nil {
		return gateErr
	}
	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if len(user.TwoFactorSecret) == 0 {
		return ErrTwoFactorNotConfigured
	}

	ok, err := s.proveCode(ctx, user, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTwoFactorInvalidCode
	}

	// A backup-code proof consumed a code, which bumped the record version;
	// re-read before flipping the flag.
	user, err = s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	user.TwoFactorEnabled = true
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return internalErr(err)
	}

	s.metricInc(MetricTwoFactorEnabled)
	s.emitAudit(ctx, auditEventTwoFactorEnabled, true, user.ID, nil, nil)
	return nil
}

// DisableTwoFactor requires password re-authentication, then clears the
// secret and every backup code.
func (s *Service) DisableTwoFactor(ctx context.Context, userID, pass string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	ok, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		return internalErr(err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = nil
	user.TwoFactorBackupCodes = nil
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return internalErr(err)
	}

	s.metricInc(MetricTwoFactorDisabled)
	s.emitAudit(ctx, auditEventTwoFactorDisabled, true, user.ID, nil, nil)
	return nil
}

// VerifyTwoFactorLogin completes a pending login with a live TOTP code or
// an unused backup code and issues the same token pair as the non-2FA path.
// Backup-code consumption is atomic at the store, so a code presented by
// two concurrent requests succeeds for exactly one of them.
func (s *Service) VerifyTwoFactorLogin(ctx context.Context, userID, code string) (*LoginResult, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}
	if gateErr := accountGateError(user); gateErr != nil {
		return nil, gateErr
	}

	ok, err := s.proveCode(ctx, user, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metricInc(MetricTwoFactorLoginFailure)
		s.emitAudit(ctx, auditEventTwoFactorLoginFailure, false, user.ID, ErrTwoFactorInvalidCode, nil)
		return nil, ErrTwoFactorInvalidCode
	}

	access, refresh, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}

	s.metricInc(MetricTwoFactorLoginSuccess)
	s.emitAudit(ctx, auditEventTwoFactorLoginSuccess, true, user.ID, nil, nil)
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       user.ID,
		User:         user.SafeView(),
	}, nil
}

// VerifyTwoFactorCode checks a live TOTP code without consuming anything.
// Used by callers that re-confirm an already-authenticated session.
func (s *Service) VerifyTwoFactorCode(ctx context.Context, userID, code string) error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	ok, err := s.totp.VerifyCode(user.TwoFactorSecret, code, time.Now())
	if err != nil {
		return internalErr(err)
	}
	if !ok {
		return ErrTwoFactorInvalidCode
	}
	return nil
}

// TwoFactorStatus reports whether 2FA protects the account and how many
// backup codes remain unused.
func (s *Service) TwoFactorStatus(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceNotReady
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	remaining := 0
	for _, c := range user.TwoFactorBackupCodes {
		if !c.Used {
			remaining++
		}
	}
	return &TwoFactorStatus{
		Enabled:              user.TwoFactorEnabled,
		BackupCodesRemaining: remaining,
	}, nil
}

// proveCode accepts a live TOTP code or atomically consumes an unused
// backup code. Returns whether possession was proven.
func (s *Service) proveCode(ctx context.Context, user *User, code string) (bool, error) {
	if code == "" {
		return false, nil
	}

	ok, err := s.totp.VerifyCode(user.TwoFactorSecret, code, time.Now())
	if err != nil {
		return false, internalErr(err)
	}
	if ok {
		return true, nil
	}

	consumed, err := s.store.ConsumeBackupCode(ctx, user.ID, internal.HashBackupCode(code))
	if err != nil {
		return false, internalErr(err)
	}
	if consumed {
		s.metricInc(MetricBackupCodeUsed)
		s.emitAudit(ctx, auditEventBackupCodeUsed, true, user.ID, nil, nil)
		return true, nil
	}

	s.metricInc(MetricBackupCodeFailed)
	return false, nil
}

func (s *Service) getUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalErr(err)
	}
	return user, nil
}
