package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *MemoryUserStore) {
	t.Helper()
	users := NewMemoryUserStore()
	tokens := newTestTokens(t, &fakeClock{t: time.Now()})
	svc, err := NewService(users, tokens, opts...)
	require.NoError(t, err)
	return svc, users
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	user, err := svc.Register(ctx, RegisterInput{FullName: "Ann Lee", Email: "ann@x.org", Password: "p1"})
	require.NoError(t, err)
	assert.Equal(t, RoleUser, user.Role)
	assert.NotEqual(t, "p1", user.PasswordHash)
	assert.NoError(t, VerifyPassword(user.PasswordHash, "p1"))

	tok, loggedIn, err := svc.Login(ctx, "ann@x.org", "p1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := svc.Tokens().Verify(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "ann@x.org", claims.Email)
	assert.Equal(t, "Ann Lee", claims.Name)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, RegisterInput{FullName: "A", Email: "dup@x.org", Password: "p"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{FullName: "B", Email: "dup@x.org", Password: "q"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRegisterEmailIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, RegisterInput{Email: "Case@x.org", Password: "p"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "case@x.org", Password: "p"})
	require.NoError(t, err)
}

func TestRegisterRequiresEmailAndPassword(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), RegisterInput{Email: " ", Password: "p"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@x.org"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Register(ctx, RegisterInput{Email: "ann@x.org", Password: "right"})
	require.NoError(t, err)

	_, _, errUnknown := svc.Login(ctx, "nobody@x.org", "right")
	_, _, errWrong := svc.Login(ctx, "ann@x.org", "wrong")
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLoginLockout(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithAttemptLimiter(NewMemoryAttempts(3, time.Minute)))
	_, err := svc.Register(ctx, RegisterInput{Email: "ann@x.org", Password: "right"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err := svc.Login(ctx, "ann@x.org", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err = svc.Login(ctx, "ann@x.org", "right")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithAttemptLimiter(NewMemoryAttempts(2, time.Minute)))
	_, err := svc.Register(ctx, RegisterInput{Email: "ann@x.org", Password: "right"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ann@x.org", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "ann@x.org", "right")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "ann@x.org", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "ann@x.org", "right")
	assert.NoError(t, err)
}

func TestMeReloadsAccount(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestService(t)
	user, err := svc.Register(ctx, RegisterInput{FullName: "Ann", Email: "ann@x.org", Password: "p"})
	require.NoError(t, err)

	tok, _, err := svc.Login(ctx, "ann@x.org", "p")
	require.NoError(t, err)
	claims, err := svc.Tokens().Verify(tok.Value)
	require.NoError(t, err)

	me, err := svc.Me(ctx, *claims)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	users.Delete(ctx, "ann@x.org")
	_, err = svc.Me(ctx, *claims)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimsContextRoundTrip(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithClaims(context.Background(), Claims{UserID: "u1", Role: RoleAdmin})
	got, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)

	got.UserID = "mutated"
	again, _ := ClaimsFromContext(ctx)
	assert.Equal(t, "u1", again.UserID)
}
