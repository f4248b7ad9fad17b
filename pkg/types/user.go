package types

import "time"

// UserRole represents the different user roles in the system
type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleDoctor  UserRole = "doctor"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether the role is one of the known roles
func (r UserRole) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// User represents a system user
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Role         UserRole  `json:"role" db:"role"`
	Specialty    string    `json:"specialty,omitempty" db:"specialty"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is the embeddable projection of a user returned alongside
// access requests and audit entries
type UserSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	Specialty string   `json:"specialty,omitempty"`
}

// Summary returns the embeddable projection of the user
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Specialty: u.Specialty,
	}
}

// UnknownUserSummary is the placeholder returned when a referenced user id no
// longer resolves. Dangling references must never crash a lookup.
func UnknownUserSummary(id string) UserSummary {
	return UserSummary{
		ID:   id,
		Name: "Unknown User",
	}
}

// UserClaims represents JWT token claims carried through request context
type UserClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// Credentials represents user login credentials
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthToken represents an authentication token response
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// ProfileUpdates represents updates to user profile fields
type ProfileUpdates struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Specialty string `json:"specialty,omitempty"`
}

// PasswordChange represents a password change request
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
