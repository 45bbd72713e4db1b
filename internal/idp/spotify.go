package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dhruvspathak/Songify/internal/ioutil"
	"github.com/dhruvspathak/Songify/internal/log"
	"github.com/dhruvspathak/Songify/internal/oauth"
	"github.com/dhruvspathak/Songify/internal/urlutil"
	"github.com/dhruvspathak/Songify/internal/validate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// Spotify endpoints
const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"
	SpotifyAPIURL   = "https://api.spotify.com/v1"
	SpotifyAuthHost = "accounts.spotify.com"
)

// DefaultTimeout bounds every call to the provider.
const DefaultTimeout = 10 * time.Second

// DefaultScopes are requested at login.
var DefaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"streaming",
	"user-read-playback-state",
	"user-modify-playback-state",
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-library-read",
	"user-top-read",
	"playlist-modify-public",
	"playlist-modify-private",
}

// probeTargets are the endpoints checked by ProbeEndpoints.
var probeTargets = []struct {
	name  string
	path  string
	query string
}{
	{"User Playlists", "/me/playlists", "limit=1"},
	{"User Top Tracks", "/me/top/tracks", "limit=1"},
	{"Featured Playlists", "/browse/featured-playlists", "limit=1"},
	{"Player Devices", "/me/player/devices", ""},
}

var tracer = otel.Tracer("github.com/dhruvspathak/Songify/internal/idp")

// SpotifyConfig configures a SpotifyProvider.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// Endpoints default to Spotify's. AuthHost is the host AuthURL must
	// produce and defaults to SpotifyAuthHost.
	AuthURL  string
	TokenURL string
	APIURL   string
	AuthHost string

	Timeout time.Duration
}

// SpotifyProvider implements Provider for Spotify.
type SpotifyProvider struct {
	config     oauth2.Config
	apiBaseURL string
	authHost   string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Provider = (*SpotifyProvider)(nil)

// NewSpotifyProvider creates a Spotify provider.
func NewSpotifyProvider(cfg SpotifyConfig) *SpotifyProvider {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = SpotifyAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = SpotifyTokenURL
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = SpotifyAPIURL
	}
	authHost := cfg.AuthHost
	if authHost == "" {
		authHost = SpotifyAuthHost
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &SpotifyProvider{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiBaseURL: strings.TrimRight(apiURL, "/"),
		authHost:   authHost,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Scopes returns the requested scopes.
func (p *SpotifyProvider) Scopes() []string {
	return p.config.Scopes
}

// AuthURL builds the authorize redirect. show_dialog forces the consent
// screen so users can switch accounts.
func (p *SpotifyProvider) AuthURL(state string) (string, error) {
	authURL := p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))

	u, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("parsing authorization URL: %w", err)
	}
	if u.Host != p.authHost {
		return "", fmt.Errorf("%w: got %q, want %q", ErrAuthHostMismatch, u.Host, p.authHost)
	}
	return authURL, nil
}

// withClient bounds ctx by the provider timeout and routes x/oauth2 through
// the provider's HTTP client.
func (p *SpotifyProvider) withClient(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), cancel
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		pe := oauth.Classify(err)
		span.SetAttributes(
			attribute.String("oauth.error_kind", pe.Kind.String()),
			attribute.Bool("oauth.transport_error", pe.Transport()),
		)
		span.SetStatus(codes.Error, pe.Kind.String())
	}
	span.End()
}

// ExchangeCode redeems an authorization code at the token endpoint using
// HTTP Basic client authentication.
func (p *SpotifyProvider) ExchangeCode(ctx context.Context, code string) (tok *oauth2.Token, err error) {
	ctx, span := tracer.Start(ctx, "spotify.exchange_code")
	defer func() { endSpan(span, err) }()

	ctx, cancel := p.withClient(ctx)
	defer cancel()

	start := time.Now()
	tok, err = p.config.Exchange(ctx, code)
	if err != nil {
		pe := oauth.Classify(err)
		log.LogWarnWithFields("spotify", "Code exchange failed", map[string]any{
			"kind":        pe.Kind.String(),
			"status":      pe.StatusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, pe
	}

	log.LogDebugWithFields("spotify", "Code exchanged", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"has_refresh": tok.RefreshToken != "",
		"token_type":  tok.TokenType,
	})
	return tok, nil
}

// Refresh redeems a refresh token. Token.RefreshToken is set whenever the
// provider's response carried one, even when it echoes the presented token.
// Rotated is set only when that token differs from the one presented.
func (p *SpotifyProvider) Refresh(ctx context.Context, refreshToken string) (res *RefreshResult, err error) {
	ctx, span := tracer.Start(ctx, "spotify.refresh")
	defer func() { endSpan(span, err) }()

	ctx, cancel := p.withClient(ctx)
	defer cancel()

	start := time.Now()
	tok, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		pe := oauth.Classify(err)
		log.LogWarnWithFields("spotify", "Token refresh failed", map[string]any{
			"kind":        pe.Kind.String(),
			"status":      pe.StatusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, pe
	}

	issued, _ := tok.Extra("refresh_token").(string)
	if issued == "" {
		// x/oauth2 copies the presented refresh token forward when none is issued.
		tok.RefreshToken = ""
	}
	rotated := issued != "" && issued != refreshToken

	log.LogDebugWithFields("spotify", "Token refreshed", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"rotated":     rotated,
	})
	return &RefreshResult{Token: tok, Rotated: rotated}, nil
}

func (p *SpotifyProvider) get(ctx context.Context, accessToken, path, rawQuery string) (*http.Response, error) {
	endpoint, err := urlutil.JoinPath(p.apiBaseURL, path)
	if err != nil {
		return nil, err
	}
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	return p.httpClient.Do(req)
}

// CurrentUser fetches /me. A 401 from the API yields ErrTokenExpired.
func (p *SpotifyProvider) CurrentUser(ctx context.Context, accessToken string) (user *User, err error) {
	ctx, span := tracer.Start(ctx, "spotify.current_user")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.get(ctx, accessToken, "/me", "")
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrTokenExpired
	}
	if resp.StatusCode != http.StatusOK {
		log.LogWarnWithFields("spotify", "Profile request failed", map[string]any{
			"status": resp.StatusCode,
			"body":   validate.ErrorMessage(ioutil.ReadLimited(resp.Body, 512)),
		})
		return nil, fmt.Errorf("failed to get user: status %d", resp.StatusCode)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &u, nil
}

type apiErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// ProbeEndpoints calls each probe target and records the outcome. A 401 on
// any of them yields ErrTokenExpired. Other failures are reported per
// endpoint rather than returned.
func (p *SpotifyProvider) ProbeEndpoints(ctx context.Context, accessToken string) ([]EndpointProbe, error) {
	ctx, span := tracer.Start(ctx, "spotify.probe_endpoints")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	probes := make([]EndpointProbe, 0, len(probeTargets))
	for _, target := range probeTargets {
		probe := EndpointProbe{Endpoint: target.name, Path: target.path}

		resp, err := p.get(ctx, accessToken, target.path, target.query)
		if err != nil {
			probe.Error = "request failed"
			probes = append(probes, probe)
			continue
		}

		probe.Status = resp.StatusCode
		probe.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
		if !probe.Success {
			var body apiErrorBody
			if json.Unmarshal([]byte(ioutil.ReadLimited(resp.Body, 2048)), &body) == nil && body.Error.Message != "" {
				probe.Error = validate.ErrorMessage(body.Error.Message)
			}
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			span.SetStatus(codes.Error, "token expired")
			return nil, ErrTokenExpired
		}
		probes = append(probes, probe)
	}
	return probes, nil
}
