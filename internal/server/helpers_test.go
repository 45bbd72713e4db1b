package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dhruvspathak/Songify/internal/cookie"
	"github.com/dhruvspathak/Songify/internal/crypto"
	"github.com/dhruvspathak/Songify/internal/envutil"
	"github.com/dhruvspathak/Songify/internal/idp"
	"github.com/dhruvspathak/Songify/internal/log"
	"github.com/dhruvspathak/Songify/internal/storage"
	"github.com/dhruvspathak/Songify/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testFrontend = "http://localhost:5173"

type testEnv struct {
	fake    *testutil.FakeSpotify
	store   *storage.MemoryUsedCodes
	auth    *AuthHandlers
	health  *HealthHandler
	handler http.Handler
}

type envOptions struct {
	environment envutil.Environment
	missing     []string
	sealKey     string
	timeout     time.Duration
	authHost    string
	limits      RateLimits

	// clientSecret overrides the secret the provider sends.
	clientSecret string
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	fake := testutil.NewFakeSpotify()
	t.Cleanup(fake.Server.Close)

	if opts.environment == "" {
		opts.environment = envutil.Development
	}
	if opts.timeout == 0 {
		opts.timeout = 2 * time.Second
	}
	if opts.authHost == "" {
		opts.authHost = fake.Host()
	}
	if opts.clientSecret == "" {
		opts.clientSecret = fake.ClientSecret
	}

	var sealer *crypto.Sealer
	if opts.sealKey != "" {
		var err error
		sealer, err = crypto.NewSealer([]byte(opts.sealKey))
		require.NoError(t, err)
	}

	provider := idp.NewSpotifyProvider(idp.SpotifyConfig{
		ClientID:     fake.ClientID,
		ClientSecret: opts.clientSecret,
		RedirectURI:  testFrontend + "/callback",
		AuthURL:      fake.AuthURL(),
		TokenURL:     fake.TokenURL(),
		APIURL:       fake.APIURL(),
		AuthHost:     opts.authHost,
		Timeout:      opts.timeout,
	})

	store := storage.NewMemoryUsedCodes()
	auth := NewAuthHandlers(provider, cookie.NewManager(opts.environment, sealer), store, AuthConfig{
		Environment:   opts.environment,
		ReplayTTL:     5 * time.Minute,
		MissingConfig: opts.missing,
	})
	health := NewHealthHandler("test", opts.environment, store, opts.missing)

	return &testEnv{
		fake:   fake,
		store:  store,
		auth:   auth,
		health: health,
		handler: NewRouter(auth, health, RouterOptions{
			Environment:    opts.environment,
			AllowedOrigins: []string{testFrontend},
			RateLimits:     opts.limits,
		}),
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// login runs /auth/login and returns the state and state cookie.
func (e *testEnv) login(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	c := responseCookies(rec)[cookie.StateCookie]
	require.NotNil(t, c)
	return state, c
}

func callbackRequest(t *testing.T, path, code, state string, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]string{"code": code, "state": state})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func requestWithCookies(method, path string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// captureLogs redirects the process logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func tokenCookie(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: value}
}

func hasCookie(rec *httptest.ResponseRecorder, name string) bool {
	for _, line := range rec.Header().Values("Set-Cookie") {
		if strings.HasPrefix(line, name+"=") {
			return true
		}
	}
	return false
}
