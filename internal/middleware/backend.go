package middleware

import (
	"log/slog"
	"net/http"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/supabase"
)

// passThroughHeaders are the provider response headers copied onto our own
// response. Everything else the provider sends is dropped.
var passThroughHeaders = []string{
	"Content-Range",
	"X-Supabase-Api-Version",
}

// Backend builds the per-request provider client and installs it, together
// with a session Validator, on the request context (see auth.FromContext).
//
// base is the process-lifetime client; each request gets a copy bound to
// its own cookies.
func Backend(base *supabase.Client, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := base.ForRequest(newRequestCookies(w, r), passThrough(w))

			ctx := auth.NewContext(r.Context(), &auth.Scope{
				Client:    client,
				Validator: auth.NewValidator(client, logger),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// passThrough copies the allowed headers of a provider response. Headers
// arriving after the handler has written its status line are lost, which is
// fine: every provider call happens before the response is written.
func passThrough(w http.ResponseWriter) func(http.Header) {
	return func(h http.Header) {
		for _, name := range passThroughHeaders {
			if v := h.Get(name); v != "" {
				w.Header().Set(name, v)
			}
		}
	}
}

// requestCookies is the supabase.CookieStore for one request. It reads the
// request's cookies, writes Set-Cookie headers, and remembers its own writes
// so a cookie set earlier in the request (the PKCE exchange, for example) is
// visible to later reads.
type requestCookies struct {
	w       http.ResponseWriter
	r       *http.Request
	written map[string]*string // nil means removed
}

func newRequestCookies(w http.ResponseWriter, r *http.Request) *requestCookies {
	return &requestCookies{
		w:       w,
		r:       r,
		written: make(map[string]*string),
	}
}

func (c *requestCookies) Get(name string) (string, bool) {
	if v, ok := c.written[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

// Set writes the cookie at Path "/" whatever path the caller asked for, so
// the session is visible to every route.
func (c *requestCookies) Set(name, value string, opts supabase.CookieOptions) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
	c.written[name] = &value
}

func (c *requestCookies) Remove(name string, opts supabase.CookieOptions) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
	c.written[name] = nil
}
