package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/sakif/account-portal/internal/apperror"
)

// expiryMargin is how close to expiry a session may get before GetSession
// refreshes it.
const expiryMargin = 10 * time.Second

var (
	// ErrSessionMissing is returned by calls that need a signed-in user when
	// the request carries no session.
	ErrSessionMissing = errors.New("supabase: auth session missing")

	// ErrCodeVerifierMissing is returned by ExchangeCodeForSession when the
	// PKCE verifier cookie written by SignInWithOAuth is absent.
	ErrCodeVerifierMissing = errors.New("supabase: PKCE code verifier not found in storage")
)

// User is the identity provider's view of an account.
type User struct {
	ID           string         `json:"id"`
	Aud          string         `json:"aud,omitempty"`
	Role         string         `json:"role,omitempty"`
	Email        string         `json:"email,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitzero"`
}

// Session is an issued access/refresh token pair.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Expiry returns when the access token expires. It prefers expires_at and
// falls back to the token's own exp claim. The token signature is not checked
// here; only the provider can vouch for a token.
func (s *Session) Expiry() time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// SignUpResult is what the provider returns for a registration. Session is
// nil when the account still needs email confirmation.
type SignUpResult struct {
	User    *User
	Session *Session
}

// OAuthOptions configures SignInWithOAuth.
type OAuthOptions struct {
	Provider   string // e.g. "google"
	Scopes     string // space separated
	RedirectTo string // absolute URL of the callback route
}

// GetSession returns the session persisted in cookies, refreshing it when it
// is about to expire. The access token is NOT verified; use GetUser for that.
// Returns (nil, nil) when there is no session.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	s, err := c.loadSession()
	if err != nil {
		c.removeSession()
		return nil, err
	}
	if s == nil {
		return nil, nil
	}

	exp := s.Expiry()
	if exp.IsZero() || c.now().Add(expiryMargin).Before(exp) {
		return s, nil
	}

	if s.RefreshToken == "" {
		c.removeSession()
		return nil, nil
	}

	refreshed, err := c.refreshSession(ctx, s.RefreshToken)
	if err != nil {
		c.removeSession()
		return nil, fmt.Errorf("supabase: refreshing session: %w", err)
	}
	return refreshed, nil
}

// GetUser asks the provider to validate the current access token and returns
// the user it belongs to.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionMissing
	}

	var u User
	if err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: s.AccessToken,
	}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SignInWithPassword exchanges an email and password for a session and
// persists it.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.grant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignUp creates a provider account. When the provider returns a session
// (auto-confirm), it is persisted.
func (c *Client) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body: map[string]string{
			"email":    email,
			"password": password,
		},
	}, &raw); err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("supabase: decoding signup response: %w", err)
	}
	if s.AccessToken != "" {
		c.stampExpiry(&s)
		if err := c.saveSession(&s); err != nil {
			return nil, err
		}
		return &SignUpResult{User: s.User, Session: &s}, nil
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("supabase: decoding signup user: %w", err)
	}
	if u.ID == "" {
		return &SignUpResult{}, nil
	}
	return &SignUpResult{User: &u}, nil
}

// SignInWithOAuth starts a PKCE authorization-code flow. It stores the code
// verifier in a cookie and returns the provider URL to send the browser to.
func (c *Client) SignInWithOAuth(ctx context.Context, opts OAuthOptions) (string, error) {
	if opts.Provider == "" {
		return "", apperror.Provider(http.StatusBadRequest, "validation_failed", "OAuth provider is required")
	}

	verifier := oauth2.GenerateVerifier()
	c.writeCookie(c.storageKey+verifierSuffix, verifier)

	q := url.Values{}
	q.Set("provider", opts.Provider)
	if opts.RedirectTo != "" {
		q.Set("redirect_to", opts.RedirectTo)
	}
	if opts.Scopes != "" {
		q.Set("scopes", opts.Scopes)
	}
	q.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	q.Set("code_challenge_method", "s256")

	u := *c.baseURL
	u.Path = c.baseURL.Path + "/auth/v1/authorize"
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeCodeForSession completes the PKCE flow started by SignInWithOAuth.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code string) (*Session, error) {
	name := c.storageKey + verifierSuffix
	verifier, ok := c.readCookie(name)
	if !ok || verifier == "" {
		return nil, ErrCodeVerifierMissing
	}

	s, err := c.grant(ctx, "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
	c.deleteCookie(name)
	return s, err
}

// SignOut revokes the session at the provider and clears it locally. Local
// cookies are cleared even when the provider call fails.
func (c *Client) SignOut(ctx context.Context) error {
	s, _ := c.loadSession()
	c.removeSession()
	c.deleteCookie(c.storageKey + verifierSuffix)
	if s == nil {
		return nil
	}

	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		query:  url.Values{"scope": {"global"}},
		bearer: s.AccessToken,
	}, nil)

	// an already-revoked or unknown session is as good as signed out
	var pe *apperror.ProviderError
	if errors.As(err, &pe) && (pe.Status == http.StatusUnauthorized || pe.Status == http.StatusNotFound) {
		return nil
	}
	return err
}

// Admin exposes service-role-only auth operations.
func (c *Client) Admin() *Admin {
	return &Admin{c: c}
}

// Admin performs privileged user management with the service-role key.
type Admin struct {
	c *Client
}

// DeleteUser removes a provider account by id.
func (a *Admin) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("supabase: user id is required")
	}
	return a.c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/auth/v1/admin/users/" + url.PathEscape(id),
	}, nil)
}

func (c *Client) refreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	return c.grant(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// grant calls the token endpoint and persists the resulting session.
func (c *Client) grant(ctx context.Context, grantType string, body map[string]string) (*Session, error) {
	var s Session
	if err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
	}, &s); err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, fmt.Errorf("supabase: %s grant returned no access token", grantType)
	}

	c.stampExpiry(&s)
	if err := c.saveSession(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) stampExpiry(s *Session) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
}
