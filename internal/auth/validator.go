package auth

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sakif/account-portal/internal/supabase"
)

// SessionResult is the trusted answer to "who is this request from?".
// Both fields are nil for an anonymous request.
type SessionResult struct {
	Session *supabase.Session `json:"session"`
	User    *supabase.User    `json:"user"`
}

// Validator turns the cookie session into a SessionResult.
type Validator struct {
	client Client
	logger *slog.Logger
}

func NewValidator(client Client, logger *slog.Logger) *Validator {
	return &Validator{
		client: client,
		logger: logger,
	}
}

// SafeGetSession reads the cookie session and has the provider verify it.
//
// It fails closed: a missing session, a provider error or a user the
// provider vouches for with a malformed id all yield an empty result.
// The user embedded in the cookie session is never returned; the session is
// copied and its user replaced by the verified one.
func (v *Validator) SafeGetSession(ctx context.Context) SessionResult {
	s, err := v.client.GetSession(ctx)
	if err != nil {
		v.logger.Debug("SafeGetSession: reading session", slog.String("error", err.Error()))
		return SessionResult{}
	}
	if s == nil {
		return SessionResult{}
	}

	u, err := v.client.GetUser(ctx)
	if err != nil {
		v.logger.Debug("SafeGetSession: verifying user", slog.String("error", err.Error()))
		return SessionResult{}
	}
	if u == nil {
		return SessionResult{}
	}
	if _, err := uuid.Parse(u.ID); err != nil {
		v.logger.Warn("SafeGetSession: provider returned a malformed user id", slog.String("id", u.ID))
		return SessionResult{}
	}

	verified := *s
	verified.User = u
	return SessionResult{Session: &verified, User: u}
}
