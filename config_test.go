package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config validated without a signing secret")
	}

	cfg.Token.Secret = []byte(testSecret)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.Token.Secret = []byte(testSecret)
		return cfg
	}

	cases := []struct {
		name string
		edit func(*Config)
	}{
		{"short secret", func(c *Config) { c.Token.Secret = []byte("too-short") }},
		{"zero access TTL", func(c *Config) { c.Token.AccessTTL = 0 }},
		{"zero refresh TTL", func(c *Config) { c.Token.RefreshTTL = 0 }},
		{"refresh shorter than access", func(c *Config) {
			c.Token.AccessTTL = time.Hour
			c.Token.RefreshTTL = time.Minute
		}},
		{"too few totp digits", func(c *Config) { c.TwoFactor.Digits = 4 }},
		{"too many totp digits", func(c *Config) { c.TwoFactor.Digits = 9 }},
		{"zero totp period", func(c *Config) { c.TwoFactor.Period = 0 }},
		{"excessive skew", func(c *Config) { c.TwoFactor.Skew = 5 }},
		{"no backup codes", func(c *Config) { c.TwoFactor.BackupCodeCount = 0 }},
		{"short backup codes", func(c *Config) { c.TwoFactor.BackupCodeLength = 4 }},
		{"zero verification TTL", func(c *Config) { c.Verification.TokenTTL = 0 }},
		{"zero reset TTL", func(c *Config) { c.PasswordReset.TokenTTL = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.edit(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestDefaultTokenTTLs(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Token.AccessTTL != 15*time.Minute {
		t.Errorf("access TTL = %v, want 15m", cfg.Token.AccessTTL)
	}
	if cfg.Token.RefreshTTL != 30*24*time.Hour {
		t.Errorf("refresh TTL = %v, want 30d", cfg.Token.RefreshTTL)
	}
}
