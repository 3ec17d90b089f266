package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: email already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrLocked             = errors.New("auth: too many failed attempts")
	ErrUnauthenticated    = errors.New("auth: unauthenticated")

	// Token verification failures. All of them surface as 401 to callers.
	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenSignature = errors.New("auth: token signature invalid")
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrTokenScope     = errors.New("auth: token issuer or audience rejected")

	ErrInvalidConfig = errors.New("auth: invalid token configuration")
)
