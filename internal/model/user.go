package model

import "time"

// Roles stored in users.role and carried in the access token.
const (
	RolePlanner = "PLANNER" // owns events and runs optimizations
	RoleViewer  = "VIEWER"  // read-only access to events and runs
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool { return r == RolePlanner || r == RoleViewer }

// User represents an application user record as stored in the
// `users` table.  Handlers define separate response types with json tags.
//
// Fields:
//
//	ID           - primary key identifier of the user.
//	Email        - unique, lower-cased email address.
//	PasswordHash - bcrypt hashed password.
//	Role         - PLANNER or VIEWER.
//	IsActive     - whether the account may log in.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
