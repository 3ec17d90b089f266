package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"relief.org/internal/ids"
	"relief.org/internal/obs"
)

// Service registers accounts, authenticates them and resolves the current user.
type Service struct {
	users    UserStore
	tokens   *TokenService
	attempts AttemptLimiter
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAttemptLimiter enables lockout after repeated failed logins.
func WithAttemptLimiter(l AttemptLimiter) ServiceOption {
	return func(s *Service) error {
		s.attempts = l
		return nil
	}
}

// WithClock overrides the clock used for account timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) error {
		if now == nil {
			return errors.New("auth: clock is nil")
		}
		s.now = now
		return nil
	}
}

func NewService(users UserStore, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if users == nil || tokens == nil {
		return nil, errors.New("auth: user store and token service are required")
	}
	s := &Service{users: users, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Tokens exposes the verifier used by the request gate.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates a User-role account. Duplicate emails fail with ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	fullName := strings.TrimSpace(in.FullName)
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		ID:           ids.NewEntityID(),
		FullName:     fullName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown email and
// wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (Token, *User, error) {
	if email == "" || password == "" {
		return Token{}, nil, ErrInvalidCredentials
	}
	if s.attempts != nil {
		locked, err := s.attempts.Locked(ctx, email)
		if err != nil {
			return Token{}, nil, fmt.Errorf("check lockout: %w", err)
		}
		if locked {
			obs.AuthFailures.WithLabelValues("locked").Inc()
			return Token{}, nil, ErrLocked
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		burnPasswordCheck(password)
		return Token{}, nil, s.failLogin(ctx, email)
	case err != nil:
		return Token{}, nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Token{}, nil, s.failLogin(ctx, email)
	}

	if s.attempts != nil {
		if err := s.attempts.Reset(ctx, email); err != nil {
			return Token{}, nil, fmt.Errorf("reset lockout: %w", err)
		}
	}
	tok, err := s.tokens.Issue(user)
	if err != nil {
		return Token{}, nil, err
	}
	obs.TokensIssued.Inc()
	return tok, user, nil
}

func (s *Service) failLogin(ctx context.Context, email string) error {
	obs.AuthFailures.WithLabelValues("bad_credentials").Inc()
	if s.attempts != nil {
		if err := s.attempts.Fail(ctx, email); err != nil {
			return fmt.Errorf("record failed login: %w", err)
		}
	}
	return ErrInvalidCredentials
}

// Me reloads the caller's account by the email carried in the token, so an
// account removed after issuance is reported as ErrNotFound.
func (s *Service) Me(ctx context.Context, claims Claims) (*User, error) {
	if claims.Email == "" {
		return nil, ErrNotFound
	}
	return s.users.FindByEmail(ctx, claims.Email)
}
