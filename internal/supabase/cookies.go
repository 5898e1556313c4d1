package supabase

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CookieStore is the per-request cookie jar the client persists the auth
// session in. Implementations decide how options are applied; the HTTP
// middleware, for example, pins every cookie to Path "/".
type CookieStore interface {
	Get(name string) (string, bool)
	Set(name, value string, opts CookieOptions)
	Remove(name string, opts CookieOptions)
}

// CookieOptions are the attributes the client asks for when writing a cookie.
type CookieOptions struct {
	Path     string
	MaxAge   int // seconds; negative deletes
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
}

const (
	// maxChunkSize keeps each cookie well under the 4096-byte browser limit
	// once name and attributes are added.
	maxChunkSize = 3180

	sessionPrefix  = "base64-"
	verifierSuffix = "-code-verifier"
)

var defaultCookieOptions = CookieOptions{
	MaxAge:   int((400 * 24 * time.Hour).Seconds()),
	SameSite: http.SameSiteLaxMode,
}

// readCookie returns the value stored under name, joining chunks
// name.0, name.1, ... when the unchunked cookie is absent.
func (c *Client) readCookie(name string) (string, bool) {
	if c.cookies == nil {
		return "", false
	}
	if v, ok := c.cookies.Get(name); ok {
		return v, true
	}

	var b strings.Builder
	for i := 0; ; i++ {
		v, ok := c.cookies.Get(chunkName(name, i))
		if !ok {
			if i == 0 {
				return "", false
			}
			break
		}
		b.WriteString(v)
	}
	return b.String(), true
}

// writeCookie stores value under name, splitting it into chunks when it is
// too large for a single cookie. Stale chunks from a previous write are removed.
func (c *Client) writeCookie(name, value string) {
	if c.cookies == nil {
		return
	}
	c.removeChunks(name)

	if len(value) <= maxChunkSize {
		c.cookies.Set(name, value, defaultCookieOptions)
		return
	}

	if _, ok := c.cookies.Get(name); ok {
		c.cookies.Remove(name, defaultCookieOptions)
	}
	for i := 0; len(value) > 0; i++ {
		n := min(maxChunkSize, len(value))
		c.cookies.Set(chunkName(name, i), value[:n], defaultCookieOptions)
		value = value[n:]
	}
}

// deleteCookie removes name and any chunks of it.
func (c *Client) deleteCookie(name string) {
	if c.cookies == nil {
		return
	}
	if _, ok := c.cookies.Get(name); ok {
		c.cookies.Remove(name, defaultCookieOptions)
	}
	c.removeChunks(name)
}

func (c *Client) removeChunks(name string) {
	for i := 0; ; i++ {
		cn := chunkName(name, i)
		if _, ok := c.cookies.Get(cn); !ok {
			return
		}
		c.cookies.Remove(cn, defaultCookieOptions)
	}
}

func chunkName(name string, i int) string {
	return fmt.Sprintf("%s.%d", name, i)
}

// loadSession decodes the persisted session, or returns nil if there is none.
func (c *Client) loadSession() (*Session, error) {
	raw, ok := c.readCookie(c.storageKey)
	if !ok || raw == "" {
		return nil, nil
	}

	data := []byte(raw)
	if strings.HasPrefix(raw, sessionPrefix) {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(raw, sessionPrefix))
		if err != nil {
			return nil, fmt.Errorf("supabase: decoding session cookie: %w", err)
		}
		data = decoded
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("supabase: parsing session cookie: %w", err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

func (c *Client) saveSession(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("supabase: encoding session: %w", err)
	}
	c.writeCookie(c.storageKey, sessionPrefix+base64.RawURLEncoding.EncodeToString(data))
	return nil
}

func (c *Client) removeSession() {
	c.deleteCookie(c.storageKey)
}
