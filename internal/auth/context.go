package auth

import (
	"context"
	"net/http"
)

// contextKey is unexported so no other package can read or shadow our values.
type contextKey string

const (
	scopeKey  contextKey = "scope"
	resultKey contextKey = "sessionResult"
)

// Scope is what the backend middleware installs on every request.
type Scope struct {
	Client    Client
	Validator *Validator
}

func NewContext(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// FromContext returns the request's Scope, or (nil, false) outside the
// backend middleware.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey).(*Scope)
	return s, ok && s != nil
}

// SafeGetSession validates the request's session. A result already computed
// by a guard further up the chain is reused. Without a Scope the request is
// anonymous.
func SafeGetSession(ctx context.Context) SessionResult {
	if res, ok := ctx.Value(resultKey).(SessionResult); ok {
		return res
	}
	s, ok := FromContext(ctx)
	if !ok || s.Validator == nil {
		return SessionResult{}
	}
	return s.Validator.SafeGetSession(ctx)
}

// RequireUser redirects anonymous requests to target with 303 See Other.
//
//	r.With(auth.RequireUser("/")).Get("/account", h.Account)
func RequireUser(target string) func(http.Handler) http.Handler {
	return guard(target, func(res SessionResult) bool { return res.User == nil })
}

// RedirectIfUser sends already signed-in users to target, for pages such as
// login and register that only make sense anonymously.
func RedirectIfUser(target string) func(http.Handler) http.Handler {
	return guard(target, func(res SessionResult) bool { return res.User != nil })
}

func guard(target string, redirect func(SessionResult) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := SafeGetSession(r.Context())
			if redirect(res) {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			ctx := context.WithValue(r.Context(), resultKey, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
