// Package rest implements repository.UserRepository on top of the provider's
// PostgREST data API.
//
// The client it is given carries the service-role key, so every query here
// bypasses row-level security. Never hand it a request-scoped user client.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
	"github.com/sakif/account-portal/internal/supabase"
)

const usersTable = "users"

// postgres unique_violation
const uniqueViolation = "23505"

var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	client *supabase.Client
}

func NewUserRepo(client *supabase.Client) *UserRepo {
	return &UserRepo{client: client}
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "username", username)
}

// Insert creates a row and returns it as stored.
func (r *UserRepo) Insert(ctx context.Context, u model.UserInsert) (*model.User, error) {
	u = repository.WithDefaults(u)

	var rows []model.User
	err := r.client.From(usersTable).Insert(u).Select("*").Execute(ctx, &rows)
	if err != nil {
		var pe *apperror.ProviderError
		if errors.As(err, &pe) && (pe.Code == uniqueViolation || pe.Status == http.StatusConflict) {
			return nil, apperror.Conflict("id", fmt.Sprintf("user %s already exists", u.ID))
		}
		return nil, fmt.Errorf("rest: inserting user %s: %w", u.ID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("rest: inserting user %s: no row returned", u.ID)
	}
	return &rows[0], nil
}

// Update applies the non-nil fields of u and returns the updated row.
func (r *UserRepo) Update(ctx context.Context, id string, u model.UserUpdate) (*model.User, error) {
	if u.Empty() {
		return r.GetByID(ctx, id)
	}

	var rows []model.User
	if err := r.client.From(usersTable).Update(u).Eq("id", id).Select("*").Execute(ctx, &rows); err != nil {
		return nil, fmt.Errorf("rest: updating user %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("user", "id "+id)
	}
	return &rows[0], nil
}

func (r *UserRepo) getOne(ctx context.Context, column, value string) (*model.User, error) {
	var rows []model.User
	if err := r.client.From(usersTable).Select("*").Eq(column, value).Execute(ctx, &rows); err != nil {
		return nil, fmt.Errorf("rest: getting user by %s: %w", column, err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("user", column+" "+value)
	}
	return &rows[0], nil
}
