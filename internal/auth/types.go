package auth

import "time"

// Role is the coarse access level carried in every token.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered account. PasswordHash never leaves the package boundary in responses.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Claims is the verified identity decoded from an access token.
type Claims struct {
	UserID    string
	Email     string
	Name      string
	Role      Role
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token is a signed access token and its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

type RegisterInput struct {
	FullName string
	Email    string
	Password string
}
