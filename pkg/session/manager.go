package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrymomot/memorialkit/pkg/account"
)

// Config is the session token configuration read from the environment.
type Config struct {
	Secret string        `env:"SESSION_SECRET,required"`
	Issuer string        `env:"SESSION_ISSUER" envDefault:"memorialkit"`
	TTL    time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	Leeway time.Duration `env:"SESSION_LEEWAY" envDefault:"30s"`
}

// Manager issues and verifies session tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager. Returns ErrMissingSecret for an empty secret.
func NewManager(cfg Config, opts ...ManagerOption) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	m := &Manager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
	if m.ttl <= 0 {
		m.ttl = time.Hour
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue signs a token for acc. The identity provider normally does this;
// it is exposed for development tooling and tests.
func (m *Manager) Issue(acc *account.Account) (string, error) {
	now := m.now()
	claims := Claims{
		Email:  acc.Email,
		Plan:   string(acc.PlanID),
		Status: string(acc.Status),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if acc.TrialEndsAt != nil {
		claims.TrialEndsAt = jwt.NewNumericDate(*acc.TrialEndsAt)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Verify checks the token signature, issuer and expiry and returns its Identity.
func (m *Manager) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	id := claims.identity()
	return &id, nil
}
