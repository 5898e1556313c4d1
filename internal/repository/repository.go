// Package repository declares the storage contracts the services depend on.
// Implementations live in sub-packages: rest talks to the provider's data API,
// sqlite keeps rows in a local file for development.
package repository

import (
	"context"

	"github.com/sakif/account-portal/internal/model"
)

// UserRepository stores the application's user rows, keyed by the identity
// provider's user ID.
//
// Lookups return an error wrapping apperror.ErrNotFound when no row matches.
// Insert returns apperror.ErrConflict when a row with the same ID exists.
// Nothing here guards username or email uniqueness; callers check first.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Insert(ctx context.Context, u model.UserInsert) (*model.User, error)
	Update(ctx context.Context, id string, u model.UserUpdate) (*model.User, error)
}

// WithDefaults fills the optional columns of an insert.
func WithDefaults(u model.UserInsert) model.UserInsert {
	if u.ProfileImage == "" {
		u.ProfileImage = model.DefaultProfileImage
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	return u
}
