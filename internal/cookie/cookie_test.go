package cookie

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dhruvspathak/Songify/internal/crypto"
	"github.com/dhruvspathak/Songify/internal/envutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestBuildOptions(t *testing.T) {
	prod := BuildOptions(true, time.Hour)
	assert.Equal(t, Options{HTTPOnly: true, Secure: true, SameSite: http.SameSiteLaxMode, MaxAge: time.Hour}, prod)

	dev := BuildOptions(false, 0)
	assert.True(t, dev.HTTPOnly)
	assert.False(t, dev.Secure)
	assert.Zero(t, dev.MaxAge)

	session := dev.Cookie("x", "y")
	assert.Zero(t, session.MaxAge, "session cookies carry no Max-Age")
	assert.True(t, session.Expires.IsZero())
}

func TestManagerAttributes(t *testing.T) {
	for _, env := range []envutil.Environment{envutil.Development, envutil.Production} {
		t.Run(string(env), func(t *testing.T) {
			m := NewManager(env, nil)
			w := httptest.NewRecorder()

			require.NoError(t, m.SetState(w, "S1"))
			require.NoError(t, m.SetAccessToken(w, "access", 3600))
			require.NoError(t, m.SetRefreshToken(w, "refresh"))

			for _, name := range []string{StateCookie, AccessTokenCookie, RefreshTokenCookie} {
				c := findCookie(t, w, name)
				assert.True(t, c.HttpOnly, name)
				assert.Equal(t, env.IsProduction(), c.Secure, name)
				assert.Equal(t, http.SameSiteLaxMode, c.SameSite, name)
				assert.Equal(t, "/", c.Path, name)
			}

			assert.Equal(t, 300, findCookie(t, w, StateCookie).MaxAge)
			assert.Equal(t, 3600, findCookie(t, w, AccessTokenCookie).MaxAge)
			assert.Equal(t, 30*24*3600, findCookie(t, w, RefreshTokenCookie).MaxAge)
		})
	}
}

func TestManagerReadBack(t *testing.T) {
	m := NewManager(envutil.Development, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := m.AccessToken(r)
	assert.ErrorIs(t, err, ErrNotPresent)

	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "tok"})
	r.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: ""})
	v, err := m.AccessToken(r)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	_, err = m.RefreshToken(r)
	assert.ErrorIs(t, err, ErrNotPresent, "empty cookie counts as absent")
}

func TestManagerSealed(t *testing.T) {
	sealer, err := crypto.NewSealer([]byte(strings.Repeat("s", 32)))
	require.NoError(t, err)
	m := NewManager(envutil.Production, sealer)

	w := httptest.NewRecorder()
	require.NoError(t, m.SetAccessToken(w, "BQD-plain", 60))
	require.NoError(t, m.SetState(w, "S1"))

	access := findCookie(t, w, AccessTokenCookie)
	assert.NotEqual(t, "BQD-plain", access.Value)
	assert.Equal(t, "S1", findCookie(t, w, StateCookie).Value, "state is not sealed")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(access)
	v, err := m.AccessToken(r)
	require.NoError(t, err)
	assert.Equal(t, "BQD-plain", v)

	tampered := httptest.NewRequest(http.MethodGet, "/", nil)
	tampered.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "BQD-plain"})
	_, err = m.AccessToken(tampered)
	assert.ErrorIs(t, err, ErrNotPresent)
}

func TestManagerClear(t *testing.T) {
	m := NewManager(envutil.Production, nil)
	w := httptest.NewRecorder()
	m.ClearTokens(w)
	m.ClearState(w)

	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, StateCookie} {
		c := findCookie(t, w, name)
		assert.Equal(t, -1, c.MaxAge, name)
		assert.Empty(t, c.Value, name)
		assert.True(t, c.HttpOnly, name)
		assert.True(t, c.Secure, name)
	}
}
