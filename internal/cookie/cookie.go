package cookie

import (
	"errors"
	"net/http"
	"time"

	"github.com/dhruvspathak/Songify/internal/crypto"
	"github.com/dhruvspathak/Songify/internal/envutil"
	"github.com/dhruvspathak/Songify/internal/log"
)

// Cookie names shared with the frontend
const (
	AccessTokenCookie  = "spotify_access_token"
	RefreshTokenCookie = "spotify_refresh_token"
	StateCookie        = "spotify_auth_state"
)

// Lifetimes for cookies whose TTL is not dictated by the provider
const (
	StateTTL        = 5 * time.Minute
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// ErrNotPresent is returned when a cookie is missing, empty, or fails to unseal.
var ErrNotPresent = errors.New("cookie not present")

// Options is the attribute set applied to every cookie the service issues.
type Options struct {
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	// MaxAge is zero for session-lifetime cookies.
	MaxAge time.Duration
}

// BuildOptions returns the attributes for a cookie. A zero maxAge yields a
// session cookie.
func BuildOptions(isProduction bool, maxAge time.Duration) Options {
	return Options{
		HTTPOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// Cookie materializes the options as an *http.Cookie.
func (o Options) Cookie(name, value string) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: o.HTTPOnly,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
	if o.MaxAge > 0 {
		c.MaxAge = int(o.MaxAge / time.Second)
		c.Expires = time.Now().Add(o.MaxAge)
	}
	return c
}

// Manager issues, reads and clears the auth cookies. When a sealer is
// configured, token cookies are encrypted at rest in the browser.
type Manager struct {
	env    envutil.Environment
	sealer *crypto.Sealer
}

// NewManager creates a cookie manager. sealer may be nil.
func NewManager(env envutil.Environment, sealer *crypto.Sealer) *Manager {
	return &Manager{env: env, sealer: sealer}
}

func (m *Manager) set(w http.ResponseWriter, name, value string, maxAge time.Duration, seal bool) error {
	if seal && m.sealer != nil {
		sealed, err := m.sealer.Seal(name, value)
		if err != nil {
			return err
		}
		value = sealed
	}

	opts := BuildOptions(m.env.IsProduction(), maxAge)
	http.SetCookie(w, opts.Cookie(name, value))

	log.LogTraceWithFields("cookie", "Cookie set", map[string]any{
		"name":     name,
		"maxAge":   maxAge.String(),
		"secure":   opts.Secure,
		"sealed":   seal && m.sealer != nil,
		"sameSite": "Lax",
	})
	return nil
}

func (m *Manager) get(r *http.Request, name string, sealed bool) (string, error) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", ErrNotPresent
	}
	if !sealed || m.sealer == nil {
		return c.Value, nil
	}
	plain, err := m.sealer.Open(name, c.Value)
	if err != nil {
		log.LogDebugWithFields("cookie", "Discarding cookie that failed to unseal", map[string]any{
			"name": name,
		})
		return "", ErrNotPresent
	}
	return plain, nil
}

// Clear expires a cookie. Attributes match the issuing ones so that browsers
// replace rather than shadow it.
func (m *Manager) Clear(w http.ResponseWriter, name string) {
	opts := BuildOptions(m.env.IsProduction(), 0)
	c := opts.Cookie(name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
	log.LogTraceWithFields("cookie", "Cookie cleared", map[string]any{"name": name})
}

// SetState stores the login state for StateTTL.
func (m *Manager) SetState(w http.ResponseWriter, state string) error {
	return m.set(w, StateCookie, state, StateTTL, false)
}

// State returns the login state cookie.
func (m *Manager) State(r *http.Request) (string, error) {
	return m.get(r, StateCookie, false)
}

// ClearState removes the login state cookie.
func (m *Manager) ClearState(w http.ResponseWriter) {
	m.Clear(w, StateCookie)
}

// SetAccessToken stores the access token for expiresIn seconds.
func (m *Manager) SetAccessToken(w http.ResponseWriter, token string, expiresIn int) error {
	return m.set(w, AccessTokenCookie, token, time.Duration(expiresIn)*time.Second, true)
}

// AccessToken returns the access token from the request.
func (m *Manager) AccessToken(r *http.Request) (string, error) {
	return m.get(r, AccessTokenCookie, true)
}

// SetRefreshToken stores the refresh token for RefreshTokenTTL.
func (m *Manager) SetRefreshToken(w http.ResponseWriter, token string) error {
	return m.set(w, RefreshTokenCookie, token, RefreshTokenTTL, true)
}

// RefreshToken returns the refresh token from the request.
func (m *Manager) RefreshToken(r *http.Request) (string, error) {
	return m.get(r, RefreshTokenCookie, true)
}

// ClearTokens removes the access and refresh cookies.
func (m *Manager) ClearTokens(w http.ResponseWriter) {
	m.Clear(w, AccessTokenCookie)
	m.Clear(w, RefreshTokenCookie)
}
