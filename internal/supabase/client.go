// Package supabase is a small HTTP client for a Supabase-compatible backend:
// the GoTrue auth API (/auth/v1), the PostgREST data API (/rest/v1) and the
// storage API (/storage/v1).
//
// A process-lifetime Client is built once with New and carries the
// service-role key, which bypasses row-level security. Per-request clients are
// derived from it with ForRequest; they share the HTTP connection pool but
// read and write the auth session through the caller's cookies.
//
// The client does not retry, back off or cache anything. Every failure is
// returned to the caller as an *apperror.ProviderError.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/account-portal/internal/apperror"
)

// DefaultTimeout bounds a single provider call when Options.HTTPClient is nil.
const DefaultTimeout = 10 * time.Second

// Options configures New.
type Options struct {
	// URL is the project base URL, e.g. "https://abcd.supabase.co".
	URL string
	// Key is the API key sent as "apikey" and, when no user token applies,
	// as the bearer token. For the server this is the service-role key.
	Key string
	// HTTPClient is optional; a client with DefaultTimeout is used otherwise.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one provider project.
type Client struct {
	baseURL    *url.URL
	key        string
	http       *http.Client
	logger     *slog.Logger
	storageKey string // cookie name of the persisted session
	now        func() time.Time

	// request scope; nil on the process-lifetime client
	cookies    CookieStore
	onResponse func(http.Header)
}

// New validates opts and returns a process-lifetime client.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("supabase: URL is required")
	}
	if opts.Key == "" {
		return nil, errors.New("supabase: key is required")
	}

	u, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase: parsing URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("supabase: URL %q must be absolute", opts.URL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    u,
		key:        opts.Key,
		http:       httpClient,
		logger:     logger,
		storageKey: storageKeyFor(u),
		now:        time.Now,
	}, nil
}

// ForRequest returns a copy of c bound to one request's cookies.
// onResponse, if non-nil, is called with the headers of every provider
// response so the caller can forward a selection of them.
func (c *Client) ForRequest(cookies CookieStore, onResponse func(http.Header)) *Client {
	rc := *c
	rc.cookies = cookies
	rc.onResponse = onResponse
	return &rc
}

// StorageKey is the name of the cookie the session is persisted under.
func (c *Client) StorageKey() string {
	return c.storageKey
}

// storageKeyFor mirrors the provider SDK default: "sb-<first host label>-auth-token".
func storageKeyFor(u *url.URL) string {
	ref := strings.Split(u.Hostname(), ".")[0]
	return "sb-" + ref + "-auth-token"
}

// call describes one provider request.
type call struct {
	method      string
	path        string
	query       url.Values
	body        any    // JSON-encoded when non-nil
	raw         []byte // sent verbatim when non-nil; takes precedence over body
	contentType string
	bearer      string // defaults to the API key
	header      http.Header
}

// do performs the call and decodes a 2xx JSON response into dest (if non-nil).
// Non-2xx responses become *apperror.ProviderError.
func (c *Client) do(ctx context.Context, cl call, dest any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	contentType := cl.contentType
	switch {
	case cl.raw != nil:
		body = bytes.NewReader(cl.raw)
	case cl.body != nil:
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("supabase: encoding %s %s body: %w", cl.method, cl.path, err)
		}
		body = bytes.NewReader(b)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("supabase: building %s %s: %w", cl.method, cl.path, err)
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	bearer := cl.bearer
	if bearer == "" {
		bearer = c.key
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Transport(fmt.Errorf("%s %s: %w", cl.method, cl.path, err))
	}
	defer resp.Body.Close()

	if c.onResponse != nil {
		c.onResponse(resp.Header)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("supabase: decoding %s %s response: %w", cl.method, cl.path, err)
	}
	return nil
}

// errorBody covers the error shapes of GoTrue, PostgREST and storage.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	ErrorDescription string          `json:"error_description"`
	Error            string          `json:"error"`
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	code := eb.ErrorCode
	if code == "" && len(eb.Code) > 0 && eb.Code[0] == '"' {
		_ = json.Unmarshal(eb.Code, &code)
	}
	if code == "" {
		code = eb.Error
	}

	msg := firstNonEmpty(eb.Msg, eb.Message, eb.ErrorDescription, eb.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return apperror.Provider(resp.StatusCode, code, msg)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
