package auth

import "context"

// UserStore persists accounts. Emails are unique and matched exactly as stored.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
}
