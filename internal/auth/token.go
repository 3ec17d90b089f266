package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTokenExpiry = 120 * time.Minute
	minKeyBytes        = 32
)

// TokenConfig is the signing setup shared by issuance and verification.
type TokenConfig struct {
	Key      []byte
	Issuer   string
	Audience string
	Expiry   time.Duration
}

// Validate rejects configurations that would mint tokens nobody can trust.
func (c TokenConfig) Validate() error {
	switch {
	case len(c.Key) < minKeyBytes:
		return fmt.Errorf("%w: key must be at least %d bytes", ErrInvalidConfig, minKeyBytes)
	case strings.TrimSpace(c.Issuer) == "":
		return fmt.Errorf("%w: issuer is required", ErrInvalidConfig)
	case strings.TrimSpace(c.Audience) == "":
		return fmt.Errorf("%w: audience is required", ErrInvalidConfig)
	case c.Expiry < 0:
		return fmt.Errorf("%w: expiry must be positive", ErrInvalidConfig)
	}
	return nil
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	cfg    TokenConfig
	now    func() time.Time
	parser *jwt.Parser
}

type TokenOption func(*TokenService)

// WithTokenClock overrides the clock used for iat/exp and for verification.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if cfg.Expiry == 0 {
		cfg.Expiry = DefaultTokenExpiry
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Key = append([]byte(nil), cfg.Key...)

	s := &TokenService{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// Issue signs a token for user valid for the configured lifetime.
func (s *TokenService) Issue(user *User) (Token, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return Token{}, errors.New("auth: user id is required")
	}
	role := user.Role
	if !role.Valid() {
		role = RoleUser
	}

	now := s.now().UTC()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(s.cfg.Expiry))
	claims := tokenClaims{
		Email: user.Email,
		Name:  user.FullName,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expiresAt.Time}, nil
}

// Verify checks signature, issuer, audience and expiry. A token is rejected
// once now >= exp; there is no leeway.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenMalformed
	}

	parsed, err := s.parser.ParseWithClaims(raw, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return s.cfg.Key, nil
	})
	if err != nil {
		return nil, classifyTokenError(err)
	}
	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(tc.Subject) == "" || !tc.Role.Valid() {
		return nil, ErrTokenMalformed
	}

	claims := &Claims{
		UserID:    tc.Subject,
		Email:     tc.Email,
		Name:      tc.Name,
		Role:      tc.Role,
		Issuer:    tc.Issuer,
		Audience:  s.cfg.Audience,
		IssuedAt:  tc.IssuedAt.Time,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrTokenScope
	default:
		return ErrTokenMalformed
	}
}
