package authcore

import (
	"errors"
	"time"
)

// Config groups all process-wide tuning. It is read once at Build and
// treated as immutable afterwards.
type Config struct {
	Token         TokenConfig
	Password      PasswordConfig
	TwoFactor     TwoFactorConfig
	Verification  VerificationConfig
	PasswordReset PasswordResetConfig
	Security      SecurityConfig
	Limits        LimitsConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// TokenConfig controls the JWT access/refresh pair.
type TokenConfig struct {
	// Secret signs both token kinds. Build refuses an empty secret.
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// PasswordConfig controls the bcrypt hasher.
type PasswordConfig struct {
	Cost int
	// UpgradeOnLogin rehashes at the configured cost when a successful
	// login verifies against a weaker stored hash.
	UpgradeOnLogin bool
}

// TwoFactorConfig controls TOTP and backup codes.
type TwoFactorConfig struct {
	Issuer    string
	Digits    int
	Period    int // seconds per time step
	Skew      int // accepted steps of clock drift on either side
	Algorithm string

	BackupCodeCount  int
	BackupCodeLength int
}

// VerificationConfig controls email-verification tokens.
type VerificationConfig struct {
	TokenTTL time.Duration
}

// PasswordResetConfig controls password-reset tokens.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

// SecurityConfig carries the environment classification. In production mode
// login requires a verified email and registration never falls back to
// auto-verification on mail dispatch failure.
type SecurityConfig struct {
	ProductionMode bool
}

// LimitsConfig controls the Redis failed-login throttle. Ignored when no
// Redis client is provided to the Builder.
type LimitsConfig struct {
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	EnableIPThrottle bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration. The signing secret is
// intentionally absent and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Issuer:     "immolink",
		},
		Password: PasswordConfig{
			Cost:           12,
			UpgradeOnLogin: true,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:           "Immolink",
			Digits:           6,
			Period:           30,
			Skew:             1,
			Algorithm:        "SHA1",
			BackupCodeCount:  10,
			BackupCodeLength: 8,
		},
		Verification: VerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
		},
		Limits: LimitsConfig{
			MaxLoginAttempts: 10,
			LoginCooldown:    15 * time.Minute,
			EnableIPThrottle: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the service must refuse to start with.
func (c Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return errors.New("token signing secret is required")
	}
	if len(c.Token.Secret) < 32 {
		return errors.New("token signing secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("refresh TTL must not be shorter than access TTL")
	}
	if c.TwoFactor.Digits < 6 || c.TwoFactor.Digits > 8 {
		return errors.New("totp digits must be between 6 and 8")
	}
	if c.TwoFactor.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TwoFactor.Skew < 0 || c.TwoFactor.Skew > 4 {
		return errors.New("totp skew must be between 0 and 4 steps")
	}
	if c.TwoFactor.BackupCodeCount <= 0 || c.TwoFactor.BackupCodeLength < 6 {
		return errors.New("invalid backup code configuration")
	}
	if c.Verification.TokenTTL <= 0 {
		return errors.New("verification token TTL must be positive")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("password reset token TTL must be positive")
	}
	return nil
}
