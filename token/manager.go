// Package token signs and verifies the JWT access/refresh pair.
//
// Both kinds embed the same payload claims; the kind claim keeps a refresh
// token from being replayed as an access token. Verification distinguishes
// expiry from every other failure so the orchestrator can route
// retry/redirect logic.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the two token kinds.
type Kind string

const (
	// KindAccess is the short-lived per-request credential.
	KindAccess Kind = "access"
	// KindRefresh is the long-lived credential used only to mint access tokens.
	KindRefresh Kind = "refresh"
)

var (
	// ErrExpired reports a structurally valid token past its TTL.
	ErrExpired = errors.New("token expired")
	// ErrMalformed reports a bad signature, wrong algorithm or broken structure.
	ErrMalformed = errors.New("token malformed or signature invalid")
)

// Payload is the identity snapshot embedded in both token kinds.
type Payload struct {
	UserID      string
	Email       string
	Role        string
	AccountType string
}

// Claims is the wire shape of the signed payload.
type Claims struct {
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	AccountType string `json:"acct,omitempty"`
	Kind        Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// Payload rebuilds the identity snapshot from verified claims.
func (c *Claims) Payload() Payload {
	return Payload{
		UserID:      c.Subject,
		Email:       c.Email,
		Role:        c.Role,
		AccountType: c.AccountType,
	}
}

// Config tunes the manager. Secret must be non-empty; the constructor
// refuses to build a manager that would sign with an empty key.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// Manager signs and parses tokens with HS256.
type Manager struct {
	config Config
}

// NewManager validates the config and returns a ready manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	return &Manager{config: cfg}, nil
}

// IssueAccess signs an access token for the payload.
func (m *Manager) IssueAccess(p Payload) (string, error) {
	return m.issue(p, KindAccess, m.config.AccessTTL)
}

// IssueRefresh signs a refresh token for the payload.
func (m *Manager) IssueRefresh(p Payload) (string, error) {
	return m.issue(p, KindRefresh, m.config.RefreshTTL)
}

func (m *Manager) issue(p Payload, kind Kind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:       p.Email,
		Role:        p.Role,
		AccountType: p.AccountType,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.config.Secret)
}

// Parse verifies signature, structure and expiry and enforces the expected
// kind. Returns ErrExpired for a valid-but-stale token and ErrMalformed for
// everything else.
func (m *Manager) Parse(tokenStr string, expected Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != expected {
		return nil, fmt.Errorf("%w: wrong token kind", ErrMalformed)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	return claims, nil
}
