package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/supabase"
)

const (
	googleProvider = "google"
	googleScopes   = "https://www.googleapis.com/auth/userinfo.email"
)

// AuthConfig holds the settings the auth flows need from configuration.
type AuthConfig struct {
	// PublicAddress is the externally visible base URL, e.g. "https://example.com".
	PublicAddress string
	// OAuthRedirect is the callback path below PublicAddress, without the
	// provider segment, e.g. "account/auth/callback".
	OAuthRedirect string
}

// callbackURL is where the provider sends the browser back to for provider.
func (c AuthConfig) callbackURL(provider string) string {
	return strings.TrimRight(c.PublicAddress, "/") + "/" + strings.Trim(c.OAuthRedirect, "/") + "/" + provider
}

// AuthHandler serves login, registration, logout and the OAuth callback.
//
// HANDLER RESPONSIBILITIES:
//   - LoginEmail / RegisterEmail → password flows
//   - OAuthStart                 → redirect to the provider (login and register)
//   - Callback                   → finish OAuth, create the user row on first login
//   - Logout                     → revoke the session
//
// The per-request provider client comes from the request context; users
// and admin are process-lifetime dependencies.
type AuthHandler struct {
	users    Users
	admin    auth.Admin
	cfg      AuthConfig
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAuthHandler(users Users, admin auth.Admin, cfg AuthConfig, logger *slog.Logger) *AuthHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their form name instead of the Go field name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})

	return &AuthHandler{
		users:    users,
		admin:    admin,
		cfg:      cfg,
		validate: v,
		logger:   logger,
	}
}

// Page is the loader of the login, register and logout pages. Their guards
// run as middleware; once past them there is nothing to load.
//
// HTTP: GET /account/login, GET /account/register, GET /account/logout
func (h *AuthHandler) Page(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, emptyPage)
}

// LoginEmail signs in with email and password.
//
// HTTP: POST /account/login/email (form: email, password)
//
// Only a 400 from the provider is the user's fault. Everything else, a 401
// or 422 included, gets the generic server error.
func (h *AuthHandler) LoginEmail(w http.ResponseWriter, r *http.Request) {
	client, ok := requestClient(w, r, h.logger)
	if !ok {
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if _, err := client.SignInWithPassword(r.Context(), email, password); err != nil {
		if apperror.KindOf(err) == apperror.KindInvalidCredentials {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgInvalidLogin})
			return
		}
		h.logger.Error("login: sign in failed", slog.String("error", err.Error()))
		writeServerError(w)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// OAuthStart sends the browser to the provider's Google sign-in.
//
// HTTP: POST /account/login/google, POST /account/register/google
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	client, ok := requestClient(w, r, h.logger)
	if !ok {
		return
	}

	target, err := client.SignInWithOAuth(r.Context(), supabase.OAuthOptions{
		Provider:   googleProvider,
		Scopes:     googleScopes,
		RedirectTo: h.cfg.callbackURL(googleProvider),
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInvalidCredentials {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgInvalidCredentials})
			return
		}
		h.logger.Error("oauth: start failed", slog.String("error", err.Error()))
		writeServerError(w)
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// registerForm is the register form as posted.
type registerForm struct {
	Username        string `form:"username" validate:"required,max=64"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required"`
	PasswordConfirm string `form:"passwordConfirm"`
}

// RegisterEmail creates an account with email and password.
//
// HTTP: POST /account/register/email
//
// FLOW:
//  1. Check the form, email and username uniqueness, and the password
//     confirmation. Every problem is collected and reported together.
//  2. Create the provider account.
//  3. Insert the user row. If step 2 or 3 fails, delete the provider account
//     again (best effort) and send the browser to the error page.
//
// The uniqueness check and the insert are not atomic. Two registrations
// racing with the same email can both succeed.
func (h *AuthHandler) RegisterEmail(w http.ResponseWriter, r *http.Request) {
	client, ok := requestClient(w, r, h.logger)
	if !ok {
		return
	}
	ctx := r.Context()

	form := registerForm{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("passwordConfirm"),
	}

	// --- Step 1: collect every form error ---
	fe := h.formErrors(form)

	var byEmail, byUsername *model.User
	var g errgroup.Group
	if form.Email != "" {
		g.Go(func() error {
			byEmail = h.users.GetByEmail(ctx, form.Email)
			return nil
		})
	}
	if form.Username != "" {
		g.Go(func() error {
			byUsername = h.users.GetByUsername(ctx, form.Username)
			return nil
		})
	}
	_ = g.Wait() // lookups report failure as nil, never as an error

	if byEmail != nil {
		fe.Add("email", msgEmailInUse)
	}
	if byUsername != nil {
		fe.Add("username", msgUsernameInUse)
	}
	if form.Password != form.PasswordConfirm {
		fe.Add("password", msgPasswordMismatch)
	}

	if err := fe.Err(); err != nil {
		h.logger.Info("register: form rejected", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"errors": fe})
		return
	}

	// --- Step 2: provider account ---
	res, err := client.SignUp(ctx, form.Email, form.Password)

	var providerID string
	if res != nil && res.User != nil {
		providerID = res.User.ID
	}

	// --- Step 3: user row ---
	var created *model.User
	if err == nil && res != nil && res.User != nil && res.User.Email != "" {
		created = h.users.Insert(ctx, model.UserInsert{
			ID:           res.User.ID,
			Username:     form.Username,
			Email:        res.User.Email,
			ProfileImage: model.DefaultProfileImage,
			Role:         model.RoleUser,
		})
	}

	if err != nil || created == nil {
		if err != nil {
			h.logger.Error("register: sign up failed", slog.String("error", err.Error()))
		} else {
			h.logger.Error("register: user row not created", slog.String("id", providerID))
		}
		h.rollback(r, providerID)
		redirectError(w, r, "")
		return
	}

	h.logger.Info("user registered", slog.String("id", created.ID))
	http.Redirect(w, r, "/account/login", http.StatusFound)
}

// rollback deletes a provider account whose registration did not complete.
// A failed delete is logged and otherwise ignored.
func (h *AuthHandler) rollback(r *http.Request, id string) {
	if id == "" {
		return
	}
	if err := h.admin.DeleteUser(r.Context(), id); err != nil {
		h.logger.Error("register: rollback failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

// formErrors runs the struct validation and turns it into field messages.
func (h *AuthHandler) formErrors(form registerForm) apperror.FieldErrors {
	fe := apperror.FieldErrors{}

	err := h.validate.Struct(form)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fe
	}
	for _, e := range ve {
		fe.Add(e.Field(), fieldMessage(e))
	}
	return fe
}

var fieldLabels = map[string]string{
	"username": "Username",
	"email":    "Email",
	"password": "Password",
}

func fieldMessage(e validator.FieldError) string {
	label := fieldLabels[e.Field()]
	switch e.Tag() {
	case "required":
		return label + " is required."
	case "email":
		return "Invalid email address."
	case "max":
		return label + " is too long."
	default:
		return "Invalid " + strings.ToLower(label) + "."
	}
}

// Callback finishes the OAuth flow.
//
// HTTP: GET /account/auth/callback/google?code=xxx&next=/path
//
// FLOW:
//  1. Exchange the code for a session (the PKCE verifier is in a cookie)
//  2. Verify the new session with the provider
//  3. Create the user row on first login, with the email as username
//  4. Redirect to next
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	next := q.Get("next")
	if next == "" {
		next = "/"
	}

	if code == "" {
		redirectError(w, r, "Failure with Google auth server")
		return
	}

	client, ok := requestClient(w, r, h.logger)
	if !ok {
		return
	}
	ctx := r.Context()

	// --- Step 1 ---
	if _, err := client.ExchangeCodeForSession(ctx, code); err != nil {
		h.logger.Warn("oauth callback: code exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/auth/auth-code-error", http.StatusSeeOther)
		return
	}

	// --- Step 2 ---
	res := auth.SafeGetSession(ctx)
	if res.User == nil {
		http.Redirect(w, r, "/auth/session-not-found", http.StatusSeeOther)
		return
	}

	// --- Step 3 ---
	user := h.users.GetByID(ctx, res.User.ID)
	if user == nil && res.User.ID != "" && res.User.Email != "" {
		user = h.users.Insert(ctx, model.UserInsert{
			ID:           res.User.ID,
			Username:     res.User.Email,
			Email:        res.User.Email,
			ProfileImage: model.DefaultProfileImage,
			Role:         model.RoleUser,
		})
		if user != nil {
			h.logger.Info("user created from OAuth login", slog.String("id", user.ID))
		}
	}
	if user == nil {
		redirectError(w, r, "Failed to create user")
		return
	}

	// --- Step 4 ---
	http.Redirect(w, r, localPath(next), http.StatusSeeOther)
}

// localPath forces next to a path on this site. The first character (not
// byte) is replaced by "/" and anything that would still leave the site
// ("//host", "/\host") collapses to "/".
func localPath(next string) string {
	if next == "" {
		return "/"
	}
	_, n := utf8.DecodeRuneInString(next)
	p := "/" + next[n:]
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, `/\`) {
		return "/"
	}
	return p
}

// Logout revokes the session at the provider and clears the cookies.
//
// HTTP: POST /account/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	client, ok := requestClient(w, r, h.logger)
	if !ok {
		return
	}
	if err := client.SignOut(r.Context()); err != nil {
		h.logger.Error("logout: sign out failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
