// Package handler contains the route handlers: page loaders that answer with
// JSON page data or a redirect, and form actions that answer with a redirect
// or a JSON form failure.
//
// Handlers are glue. They read the per-request provider client installed by
// middleware.Backend, call the services, and translate results into HTTP.
// Rendering HTML is someone else's job.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/service"
)

// Users is the user record accessor. Every method returns nil on failure.
// *service.UserService satisfies it.
type Users interface {
	GetByID(ctx context.Context, id string) *model.User
	GetByEmail(ctx context.Context, email string) *model.User
	GetByUsername(ctx context.Context, username string) *model.User
	Insert(ctx context.Context, in model.UserInsert) *model.User
	Update(ctx context.Context, id string, upd model.UserUpdate) *model.User
}

// Images uploads profile images. *service.ImageService satisfies it.
type Images interface {
	UploadProfileImage(ctx context.Context, f service.ImageFile) string
}

var (
	_ Users  = (*service.UserService)(nil)
	_ Images = (*service.ImageService)(nil)
)

// requestClient returns the provider client middleware.Backend installed.
// A missing scope is a wiring bug; the request gets a 500.
func requestClient(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (auth.Client, bool) {
	scope, ok := auth.FromContext(r.Context())
	if !ok || scope.Client == nil {
		logger.Error("no provider client on request context", slog.String("path", r.URL.Path))
		writeServerError(w)
		return nil, false
	}
	return scope.Client, true
}

// emptyPage is the page data of loaders that only guard.
var emptyPage = struct{}{}
