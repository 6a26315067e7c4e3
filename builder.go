package authcore

import (
	"context"
	"errors"

	"github.com/immolink/authcore/internal/rate"
	"github.com/immolink/authcore/password"
	"github.com/immolink/authcore/token"
	"github.com/redis/go-redis/v9"
	"log/slog"
)

// Builder assembles a Service. The zero value is not usable; start from New.
type Builder struct {
	config    Config
	store     UserStore
	mailer    Mailer
	redis     redis.UniversalClient
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New starts a Builder with DefaultConfig. The caller still has to supply
// the signing secret and a UserStore.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the credential repository. Required.
func (b *Builder) WithStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the outbound-email sender. Optional; without it every
// dispatch is treated as failed, which in non-production mode auto-verifies
// new accounts.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithRedis enables the failed-login throttle. Optional.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the audit destination.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the operational logger. Defaults to slog.Default.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and dependencies and returns a ready
// Service. It fails rather than start with an empty signing secret.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     cfg.Token.Secret,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Issuer:     cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{Cost: cfg.Password.Cost})
	if err != nil {
		return nil, err
	}

	// Precompute the digest used to equalize timing on unknown-email logins.
	dummyHash, err := hasher.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if b.redis != nil {
		limiter = rate.New(b.redis, rate.Config{
			MaxAttempts:      cfg.Limits.MaxLoginAttempts,
			Cooldown:         cfg.Limits.LoginCooldown,
			EnableIPThrottle: cfg.Limits.EnableIPThrottle,
		})
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = noopMailer{}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	b.built = true
	return &Service{
		config:    cfg,
		store:     b.store,
		mailer:    mailer,
		hasher:    hasher,
		tokens:    tokens,
		totp:      newTOTPManager(cfg.TwoFactor),
		limiter:   limiter,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		dummyHash: dummyHash,
	}, nil
}

// noopMailer fails every dispatch so the registration fallback applies.
type noopMailer struct{}

func (noopMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	return errors.New("no mailer configured")
}

func (noopMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	return errors.New("no mailer configured")
}
