package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, profile_image, role`

// GetByID retrieves a user by their provider ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getOne(ctx, "id", id)
}

func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getOne(ctx, "email", email)
}

func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getOne(ctx, "username", username)
}

// Insert creates a user row. The ID comes from the identity provider; a
// second insert with the same ID fails with apperror.ErrConflict.
func (db *DB) Insert(ctx context.Context, in model.UserInsert) (*model.User, error) {
	in = repository.WithDefaults(in)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, profile_image, role)
		 VALUES (?, ?, ?, ?, ?)`,
		in.ID,
		in.Username,
		in.Email,
		in.ProfileImage,
		in.Role,
	)
	if err != nil {
		if isConstraintErr(err) {
			return nil, apperror.Conflict("id", fmt.Sprintf("user %s already exists", in.ID))
		}
		return nil, fmt.Errorf("sqlite: inserting user %s: %w", in.ID, err)
	}

	return &model.User{
		ID:           in.ID,
		Username:     in.Username,
		Email:        in.Email,
		ProfileImage: in.ProfileImage,
		Role:         in.Role,
	}, nil
}

// Update sets only the non-nil fields of u, then reads the row back.
//
// ExecContext returns a sql.Result; RowsAffected() == 0 means no row had
// that ID.
func (db *DB) Update(ctx context.Context, id string, u model.UserUpdate) (*model.User, error) {
	if u.Empty() {
		return db.GetByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("username", u.Username)
	add("email", u.Email)
	add("profile_image", u.ProfileImage)
	add("role", u.Role)
	args = append(args, id)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("user", "id "+id)
	}

	return db.GetByID(ctx, id)
}

// getOne selects by a single column. column is always one of our own
// constants, never user input.
func (db *DB) getOne(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ? LIMIT 1`,
		value,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.ProfileImage,
		&u.Role,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", column+" "+value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}

	return &u, nil
}

func isConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "constraint failed")
}
