package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// TokenResponse is what the fake token endpoint returns for a code or
// refresh token. ExpiresIn is untyped so tests can send malformed values.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    any    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenRequest records one call to the fake token endpoint.
type TokenRequest struct {
	GrantType    string
	Code         string
	RefreshToken string
	RedirectURI  string
	BasicAuth    bool
}

// FakeSpotify is an httptest server that speaks enough of the Spotify
// accounts and Web API for the auth flow.
type FakeSpotify struct {
	Server *httptest.Server

	ClientID     string
	ClientSecret string

	mu            sync.Mutex
	codes         map[string]TokenResponse
	refreshTokens map[string]TokenResponse
	users         map[string]map[string]any
	probeStatus   map[string]int
	tokenDelay    time.Duration
	tokenRequests []TokenRequest

	ExchangeCalls atomic.Int32
	RefreshCalls  atomic.Int32
	MeCalls       atomic.Int32
	ProbeCalls    atomic.Int32
}

// NewFakeSpotify starts a fake provider. Close it with Server.Close.
func NewFakeSpotify() *FakeSpotify {
	f := &FakeSpotify{
		ClientID:      "test-client-id",
		ClientSecret:  "test-client-secret",
		codes:         make(map[string]TokenResponse),
		refreshTokens: make(map[string]TokenResponse),
		users:         make(map[string]map[string]any),
		probeStatus:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", f.handleToken)
	mux.HandleFunc("/v1/me", f.handleMe)
	mux.HandleFunc("/v1/", f.handleProbe)
	f.Server = httptest.NewServer(mux)
	return f
}

// TokenURL is the fake token endpoint.
func (f *FakeSpotify) TokenURL() string { return f.Server.URL + "/api/token" }

// APIURL is the fake Web API base.
func (f *FakeSpotify) APIURL() string { return f.Server.URL + "/v1" }

// AuthURL is the fake authorize endpoint. Nothing serves it; only its host
// matters to the flow.
func (f *FakeSpotify) AuthURL() string { return f.Server.URL + "/authorize" }

// Host is the fake server's host:port.
func (f *FakeSpotify) Host() string { return strings.TrimPrefix(f.Server.URL, "http://") }

// AddCode registers an authorization code. Codes stay valid until removed so
// tests can observe the service's own replay protection.
func (f *FakeSpotify) AddCode(code string, resp TokenResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = resp
}

// AddRefreshToken registers a refresh token.
func (f *FakeSpotify) AddRefreshToken(token string, resp TokenResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTokens[token] = resp
}

// AddUser registers the /me profile for an access token.
func (f *FakeSpotify) AddUser(accessToken string, profile map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[accessToken] = profile
}

// SetProbeStatus forces the status returned for an API path such as
// "/me/player/devices". Unset paths answer 200 for known tokens.
func (f *FakeSpotify) SetProbeStatus(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeStatus[path] = status
}

// SetTokenDelay delays every token endpoint response.
func (f *FakeSpotify) SetTokenDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenDelay = d
}

// TokenRequests returns the recorded token endpoint calls.
func (f *FakeSpotify) TokenRequests() []TokenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TokenRequest(nil), f.tokenRequests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_ = r.ParseForm()

	id, secret, basic := r.BasicAuth()
	req := TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RefreshToken: r.PostForm.Get("refresh_token"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		BasicAuth:    basic,
	}

	f.mu.Lock()
	f.tokenRequests = append(f.tokenRequests, req)
	delay := f.tokenDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !basic || id != f.ClientID || secret != f.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_client",
			"error_description": "Invalid client",
		})
		return
	}

	var (
		resp TokenResponse
		ok   bool
	)
	switch req.GrantType {
	case "authorization_code":
		f.ExchangeCalls.Add(1)
		f.mu.Lock()
		resp, ok = f.codes[req.Code]
		f.mu.Unlock()
	case "refresh_token":
		f.RefreshCalls.Add(1)
		f.mu.Lock()
		resp, ok = f.refreshTokens[req.RefreshToken]
		f.mu.Unlock()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid authorization code",
		})
		return
	}
	if resp.TokenType == "" {
		resp.TokenType = "Bearer"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeSpotify) bearer(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, known := f.users[token]
	return token, known
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error": map[string]any{"status": 401, "message": "The access token expired"},
	})
}

func (f *FakeSpotify) handleMe(w http.ResponseWriter, r *http.Request) {
	f.MeCalls.Add(1)
	token, ok := f.bearer(r)
	if !ok {
		unauthorized(w)
		return
	}
	f.mu.Lock()
	profile := f.users[token]
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, profile)
}

func (f *FakeSpotify) handleProbe(w http.ResponseWriter, r *http.Request) {
	f.ProbeCalls.Add(1)
	if _, ok := f.bearer(r); !ok {
		unauthorized(w)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1")
	f.mu.Lock()
	status, forced := f.probeStatus[path]
	f.mu.Unlock()

	if forced && status != http.StatusOK {
		writeJSON(w, status, map[string]any{
			"error": map[string]any{"status": status, "message": "Insufficient client scope"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
}
