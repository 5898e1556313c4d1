// Package auth decides whether a request belongs to a signed-in user.
//
// The identity provider is the only authority: a session read from cookies
// is never trusted until the provider has confirmed its access token. The
// Validator wraps those two steps, and the guards in this package use it to
// redirect requests that are in the wrong state.
package auth

import (
	"context"

	"github.com/sakif/account-portal/internal/supabase"
)

// Client is the part of the provider's auth API used per request.
// *supabase.Client satisfies it; tests pass fakes.
type Client interface {
	GetSession(ctx context.Context) (*supabase.Session, error)
	GetUser(ctx context.Context) (*supabase.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	SignUp(ctx context.Context, email, password string) (*supabase.SignUpResult, error)
	SignInWithOAuth(ctx context.Context, opts supabase.OAuthOptions) (string, error)
	ExchangeCodeForSession(ctx context.Context, code string) (*supabase.Session, error)
	SignOut(ctx context.Context) error
}

// Admin is the service-role user management the register flow needs to undo
// a half-finished registration.
type Admin interface {
	DeleteUser(ctx context.Context, id string) error
}

var (
	_ Client = (*supabase.Client)(nil)
	_ Admin  = (*supabase.Admin)(nil)
)
