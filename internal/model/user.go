// Package model defines the data structures used throughout the application.
package model

const (
	// DefaultProfileImage is stored for users who have never uploaded an image.
	DefaultProfileImage = "default-avatar.jpg"

	// RoleUser is the role given to every self-registered account.
	RoleUser = "user"
)

// User is the application-owned profile row that supplements the identity
// provider's private account record.
//
// ID is issued by the identity provider and is the primary key; this
// application never generates user IDs itself. Username and Email are meant to
// be unique, but uniqueness is only checked before insert, not enforced
// atomically.
type User struct {
	ID           string `json:"id"            db:"id"`
	Username     string `json:"username"      db:"username"`
	Email        string `json:"email"         db:"email"`
	ProfileImage string `json:"profile_image" db:"profile_image"` // object path or filename
	Role         string `json:"role"          db:"role"`
}

// UserInsert is the payload for creating a user row.
// ProfileImage falls back to DefaultProfileImage when empty.
type UserInsert struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	ProfileImage string `json:"profile_image,omitempty"`
	Role         string `json:"role"`
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Username     *string `json:"username,omitempty"`
	Email        *string `json:"email,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
	Role         *string `json:"role,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.ProfileImage == nil && u.Role == nil
}
