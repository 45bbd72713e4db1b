package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/dhruvspathak/Songify/internal/crypto"
	"github.com/dhruvspathak/Songify/internal/urlutil"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// Err folds the errors into one error, or nil when valid.
func (v *ValidationResult) Err() error {
	if v.IsValid() {
		return nil
	}
	msgs := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		msgs[i] = e.String()
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Validate checks cfg. Missing Spotify credentials are a warning: the service
// boots and reports not-ready until they are provided.
func Validate(cfg Config) *ValidationResult {
	result := &ValidationResult{}

	for _, name := range cfg.MissingCredentials() {
		result.addWarning(name, "not set; login will fail until it is configured")
	}

	if _, err := urlutil.Origin(cfg.Server.FrontendURL); err != nil {
		result.addError("FRONTEND_URL", "must be an absolute http(s) URL: %v", err)
	} else if cfg.Environment().IsProduction() && !strings.HasPrefix(strings.ToLower(cfg.Server.FrontendURL), "https://") {
		result.addWarning("FRONTEND_URL", "should use https in production")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		result.addError("PORT", "must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	for path, raw := range map[string]string{
		"SPOTIFY_AUTH_URL":  cfg.Spotify.AuthURL,
		"SPOTIFY_TOKEN_URL": cfg.Spotify.TokenURL,
		"SPOTIFY_API_URL":   cfg.Spotify.APIURL,
	} {
		if !govalidator.IsRequestURL(raw) {
			result.addError(path, "must be an absolute URL")
		}
	}
	if u, err := url.Parse(cfg.Spotify.AuthURL); err == nil && u.Host != cfg.Spotify.AuthHost {
		result.addError("SPOTIFY_AUTH_URL", "host %q does not match SPOTIFY_AUTH_HOST %q", u.Host, cfg.Spotify.AuthHost)
	}
	if cfg.Spotify.Timeout <= 0 {
		result.addError("SPOTIFY_TIMEOUT", "must be positive")
	}

	switch cfg.Replay.Store {
	case ReplayStoreMemory:
	case ReplayStoreFirestore:
		if cfg.Replay.FirestoreProjectID == "" {
			result.addError("FIRESTORE_PROJECT_ID", "required when REPLAY_STORE is firestore")
		}
	default:
		result.addError("REPLAY_STORE", "unknown store %q, use memory or firestore", cfg.Replay.Store)
	}
	if cfg.Replay.TTL <= 0 {
		result.addError("REPLAY_TTL", "must be positive")
	}
	if cfg.Replay.SweepInterval <= 0 {
		result.addError("REPLAY_SWEEP_INTERVAL", "must be positive")
	}

	if key := cfg.Cookies.SealKey; key != "" && len(key) < crypto.MinSealKeyLength {
		result.addError("COOKIE_SEAL_KEY", "must be at least %d bytes", crypto.MinSealKeyLength)
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
			result.addError("RATE_LIMIT_REQUESTS", "requests and window must be positive")
		}
		if cfg.RateLimit.AuthRequests <= 0 || cfg.RateLimit.AuthWindow <= 0 {
			result.addError("AUTH_RATE_LIMIT_REQUESTS", "requests and window must be positive")
		}
	}

	return result
}
