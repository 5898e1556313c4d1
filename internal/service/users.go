// Package service sits between the HTTP handlers and the storage and provider
// layers.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → absorbs failures, applies rules
//	Repository (data layer)  → reads/writes rows
//
// Services take interfaces, not concrete types, so tests can pass fakes and
// main.go decides which backend is used.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

// UserService is the accessor the handlers use for user rows.
//
// Every method returns the row or nil. Failures are logged here and never
// returned, so a handler only ever asks "did I get a user?". Not-found is
// an expected answer and is not logged.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) *model.User {
	u, err := s.repo.GetByID(ctx, id)
	return s.result("GetByID", u, err, slog.String("id", id))
}

func (s *UserService) GetByEmail(ctx context.Context, email string) *model.User {
	u, err := s.repo.GetByEmail(ctx, email)
	return s.result("GetByEmail", u, err, slog.String("email", email))
}

func (s *UserService) GetByUsername(ctx context.Context, username string) *model.User {
	u, err := s.repo.GetByUsername(ctx, username)
	return s.result("GetByUsername", u, err, slog.String("username", username))
}

// Insert creates the row for a freshly authenticated identity.
func (s *UserService) Insert(ctx context.Context, in model.UserInsert) *model.User {
	u, err := s.repo.Insert(ctx, in)
	return s.result("Insert", u, err, slog.String("id", in.ID))
}

// Update applies a partial update. Last write wins.
func (s *UserService) Update(ctx context.Context, id string, upd model.UserUpdate) *model.User {
	u, err := s.repo.Update(ctx, id, upd)
	return s.result("Update", u, err, slog.String("id", id))
}

func (s *UserService) result(op string, u *model.User, err error, key slog.Attr) *model.User {
	if err == nil {
		return u
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		s.logger.Error("UserService:"+op, key, slog.String("error", err.Error()))
	}
	return nil
}
