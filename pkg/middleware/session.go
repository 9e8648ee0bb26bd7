package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/verve-web/verve/pkg/common"
)

// SessionConfig defines configuration for cookie-backed sessions.
type SessionConfig struct {
	// SecretKey signs the session payload. Required.
	SecretKey string

	// CookieName defaults to "session".
	CookieName string

	// CookiePath defaults to "/".
	CookiePath string

	// MaxAge bounds the cookie lifetime. Defaults to 14 days.
	MaxAge time.Duration

	// CookieSecure marks the session cookie Secure.
	CookieSecure bool

	// SameSite defaults to Lax.
	SameSite http.SameSite
}

func (c *SessionConfig) cookieName() string {
	if c.CookieName != "" {
		return c.CookieName
	}
	return "session"
}

func (c *SessionConfig) cookiePath() string {
	if c.CookiePath != "" {
		return c.CookiePath
	}
	return "/"
}

func (c *SessionConfig) maxAge() time.Duration {
	if c.MaxAge > 0 {
		return c.MaxAge
	}
	return 14 * 24 * time.Hour
}

func (c *SessionConfig) sameSite() http.SameSite {
	if c.SameSite != 0 {
		return c.SameSite
	}
	return http.SameSiteLaxMode
}

// Session is per-client state stored in a signed cookie.
type Session struct {
	values map[string]any
	dirty  bool
}

// Get returns a value from the session, or nil.
func (s *Session) Get(key string) any {
	if s == nil {
		return nil
	}
	return s.values[key]
}

// Put sets a value in the session and marks it for saving.
func (s *Session) Put(key string, value any) {
	if s == nil {
		return
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
	s.dirty = true
}

// Delete removes a value from the session.
func (s *Session) Delete(key string) {
	if s == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Clear removes all values from the session.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.values = make(map[string]any)
	s.dirty = true
}

type sessionKey struct{}

// GetSession returns the request's session. It is nil when the session
// middleware is not configured.
func GetSession(r *http.Request) *Session {
	s, _ := r.Context().Value(sessionKey{}).(*Session)
	return s
}

// SessionStore is a middleware that loads a signed cookie session into the
// request context and writes it back when modified. The cookie is emitted
// with the response headers, before the first body byte.
func SessionStore(config *SessionConfig) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := loadSession(r, config)
			ctx := context.WithValue(r.Context(), sessionKey{}, sess)

			// The cookie must go out with the headers, so the save happens
			// lazily on the first header/body write.
			sw := &sessionWriter{ResponseWriter: w, config: config, session: sess}
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.flushCookie()
		})
	}
}

type sessionWriter struct {
	http.ResponseWriter
	config  *SessionConfig
	session *Session
	wrote   bool
}

func (sw *sessionWriter) flushCookie() {
	if sw.wrote {
		return
	}
	sw.wrote = true
	if sw.session.dirty {
		http.SetCookie(sw.ResponseWriter, &http.Cookie{
			Name:     sw.config.cookieName(),
			Value:    encodeSession(sw.session, sw.config.SecretKey),
			Path:     sw.config.cookiePath(),
			MaxAge:   int(sw.config.maxAge().Seconds()),
			Secure:   sw.config.CookieSecure,
			HttpOnly: true,
			SameSite: sw.config.sameSite(),
		})
	}
}

func (sw *sessionWriter) WriteHeader(statusCode int) {
	sw.flushCookie()
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.flushCookie()
	return sw.ResponseWriter.Write(b)
}

func (sw *sessionWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loadSession(r *http.Request, config *SessionConfig) *Session {
	cookie, err := r.Cookie(config.cookieName())
	if err != nil {
		return &Session{}
	}
	values, ok := decodeSession(cookie.Value, config.SecretKey)
	if !ok {
		return &Session{}
	}
	return &Session{values: values}
}

// encodeSession produces "<base64(json(values))>.<hmac hex>".
func encodeSession(s *Session, secret string) string {
	payload, err := json.Marshal(s.values)
	if err != nil {
		return ""
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + signSession(secret, encoded)
}

func decodeSession(value, secret string) (map[string]any, bool) {
	encoded, sig, ok := strings.Cut(value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(signSession(secret, encoded))) {
		return nil, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	var values map[string]any
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, false
	}
	return values, true
}

func signSession(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
