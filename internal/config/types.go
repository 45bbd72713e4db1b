package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dhruvspathak/Songify/internal/envutil"
	"github.com/dhruvspathak/Songify/internal/urlutil"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// GoString covers %#v
func (s Secret) GoString() string {
	return fmt.Sprintf("config.Secret(%q)", s.String())
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Replay store kinds
const (
	ReplayStoreMemory    = "memory"
	ReplayStoreFirestore = "firestore"
)

// SpotifyConfig holds the Spotify app credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string        `env:"SPOTIFY_CLIENT_ID"`
	ClientSecret Secret        `env:"SPOTIFY_CLIENT_SECRET"`
	AuthURL      string        `env:"SPOTIFY_AUTH_URL" envDefault:"https://accounts.spotify.com/authorize"`
	TokenURL     string        `env:"SPOTIFY_TOKEN_URL" envDefault:"https://accounts.spotify.com/api/token"`
	APIURL       string        `env:"SPOTIFY_API_URL" envDefault:"https://api.spotify.com/v1"`
	AuthHost     string        `env:"SPOTIFY_AUTH_HOST" envDefault:"accounts.spotify.com"`
	Scopes       []string      `env:"SPOTIFY_SCOPES" envSeparator:" "`
	Timeout      time.Duration `env:"SPOTIFY_TIMEOUT" envDefault:"10s"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"3000"`
	FrontendURL     string        `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// TrustProxy derives client IPs from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `env:"TRUST_PROXY"`
}

// ReplayConfig selects and tunes the used-code store.
type ReplayConfig struct {
	Store               string        `env:"REPLAY_STORE" envDefault:"memory"`
	TTL                 time.Duration `env:"REPLAY_TTL" envDefault:"5m"`
	SweepInterval       time.Duration `env:"REPLAY_SWEEP_INTERVAL" envDefault:"1m"`
	FirestoreProjectID  string        `env:"FIRESTORE_PROJECT_ID"`
	FirestoreDatabase   string        `env:"FIRESTORE_DATABASE" envDefault:"(default)"`
	FirestoreCollection string        `env:"FIRESTORE_COLLECTION" envDefault:"used_authorization_codes"`
}

// CookieConfig controls optional sealing of token cookies.
type CookieConfig struct {
	SealKey Secret `env:"COOKIE_SEAL_KEY"`
}

// RateLimitConfig holds per-IP request budgets.
type RateLimitConfig struct {
	Enabled      bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Requests     int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	Window       time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	AuthRequests int           `env:"AUTH_RATE_LIMIT_REQUESTS" envDefault:"10"`
	AuthWindow   time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// TracingConfig enables OTLP trace export.
type TracingConfig struct {
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Disabled bool   `env:"OTEL_SDK_DISABLED"`
}

// Config is the complete service configuration.
type Config struct {
	EnvName   string `env:"NODE_ENV"`
	Spotify   SpotifyConfig
	Server    ServerConfig
	Replay    ReplayConfig
	Cookies   CookieConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig

	// Version is stamped by the binary, not read from the environment.
	Version string `env:"-"`
}

// Environment returns the parsed deployment environment.
func (c Config) Environment() envutil.Environment {
	return envutil.Parse(c.EnvName)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// RedirectURI is the callback URL registered with Spotify.
func (c Config) RedirectURI() string {
	u, err := urlutil.CallbackURL(c.Server.FrontendURL)
	if err != nil {
		return ""
	}
	return u
}

// HasCredentials reports whether the Spotify client id and secret are set.
func (c Config) HasCredentials() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// MissingCredentials lists unset credential variables.
func (c Config) MissingCredentials() []string {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	return missing
}

// devOrigins are allowed in development in addition to the frontend URL.
var devOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// AllowedOrigins lists the CORS origins that may send credentials.
func (c Config) AllowedOrigins() []string {
	seen := make(map[string]bool)
	var origins []string
	add := func(o string) {
		if o != "" && !seen[o] {
			seen[o] = true
			origins = append(origins, o)
		}
	}

	if o, err := urlutil.Origin(c.Server.FrontendURL); err == nil {
		add(o)
	}
	if c.Environment().IsDev() {
		for _, o := range devOrigins {
			add(o)
		}
	}
	return origins
}
