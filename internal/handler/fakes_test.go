package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/service"
	"github.com/sakif/account-portal/internal/supabase"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

const userID = "2c5ea4c0-4067-11e9-8bad-9b1deb4d3b7d"

// fakeAuth is an in-memory auth.Client. The session "exists" when session is
// non-nil; GetUser then answers with user/userErr.
type fakeAuth struct {
	session *supabase.Session
	user    *supabase.User
	userErr error

	signInErr   error
	signInEmail string

	oauthURL  string
	oauthErr  error
	oauthOpts supabase.OAuthOptions

	signUpRes   *supabase.SignUpResult
	signUpErr   error
	signUpCalls int

	exchangeErr   error
	exchangeCalls int

	signOutCalls int
}

func (f *fakeAuth) GetSession(ctx context.Context) (*supabase.Session, error) {
	return f.session, nil
}

func (f *fakeAuth) GetUser(ctx context.Context) (*supabase.User, error) {
	if f.session == nil {
		return nil, supabase.ErrSessionMissing
	}
	return f.user, f.userErr
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error) {
	f.signInEmail = email
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.session = &supabase.Session{AccessToken: "tok"}
	return f.session, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*supabase.SignUpResult, error) {
	f.signUpCalls++
	return f.signUpRes, f.signUpErr
}

func (f *fakeAuth) SignInWithOAuth(ctx context.Context, opts supabase.OAuthOptions) (string, error) {
	f.oauthOpts = opts
	return f.oauthURL, f.oauthErr
}

func (f *fakeAuth) ExchangeCodeForSession(ctx context.Context, code string) (*supabase.Session, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	f.session = &supabase.Session{AccessToken: "tok"}
	return f.session, nil
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.signOutCalls++
	f.session = nil
	return nil
}

// signedIn returns a fakeAuth whose session verifies as user.
func signedIn(email string) *fakeAuth {
	return &fakeAuth{
		session: &supabase.Session{AccessToken: "tok"},
		user:    &supabase.User{ID: userID, Email: email},
	}
}

// fakeUsers is an in-memory handler.Users. Safe for the concurrent lookups
// made by RegisterEmail.
type fakeUsers struct {
	mu         sync.Mutex
	rows       map[string]*model.User
	inserts    []model.UserInsert
	failInsert bool
}

func newFakeUsers(rows ...model.User) *fakeUsers {
	f := &fakeUsers{rows: make(map[string]*model.User)}
	for i := range rows {
		f.rows[rows[i].ID] = &rows[i]
	}
	return f
}

func (f *fakeUsers) find(match func(*model.User) bool) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if match(u) {
			copied := *u
			return &copied
		}
	}
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) *model.User {
	return f.find(func(u *model.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) *model.User {
	return f.find(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) *model.User {
	return f.find(func(u *model.User) bool { return u.Username == username })
}

func (f *fakeUsers) Insert(ctx context.Context, in model.UserInsert) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, in)
	if f.failInsert {
		return nil
	}
	u := &model.User{ID: in.ID, Username: in.Username, Email: in.Email, ProfileImage: in.ProfileImage, Role: in.Role}
	f.rows[in.ID] = u
	copied := *u
	return &copied
}

func (f *fakeUsers) Update(ctx context.Context, id string, upd model.UserUpdate) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil
	}
	if upd.ProfileImage != nil {
		u.ProfileImage = *upd.ProfileImage
	}
	copied := *u
	return &copied
}

// fakeImages returns path for every upload and records what it was given.
type fakeImages struct {
	path        string
	contentType string
	body        string
	calls       int
}

func (f *fakeImages) UploadProfileImage(ctx context.Context, file service.ImageFile) string {
	f.calls++
	f.contentType = file.ContentType
	b, _ := io.ReadAll(file.Body)
	f.body = string(b)
	return f.path
}

// fakeAdmin records deleted provider accounts.
type fakeAdmin struct {
	deleted []string
	err     error
}

func (f *fakeAdmin) DeleteUser(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withScope attaches the per-request client the way middleware.Backend does.
func withScope(r *http.Request, client *fakeAuth) *http.Request {
	ctx := auth.NewContext(r.Context(), &auth.Scope{
		Client:    client,
		Validator: auth.NewValidator(client, testLogger()),
	})
	return r.WithContext(ctx)
}

// formRequest builds a POST with an urlencoded form body.
func formRequest(target string, form url.Values, client *fakeAuth) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withScope(req, client)
}

func providerErr(status int) error {
	return apperror.Provider(status, "", "provider said no")
}
