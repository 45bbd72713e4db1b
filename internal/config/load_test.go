package config

import (
	"testing"
	"time"

	"github.com/dhruvspathak/Songify/internal/envutil"
	"github.com/dhruvspathak/Songify/internal/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, envutil.Development, cfg.Environment())
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, "http://localhost:5173", cfg.Server.FrontendURL)
	assert.Equal(t, "http://localhost:5173/callback", cfg.RedirectURI())
	assert.Equal(t, idp.SpotifyAuthURL, cfg.Spotify.AuthURL)
	assert.Equal(t, idp.SpotifyTokenURL, cfg.Spotify.TokenURL)
	assert.Equal(t, idp.SpotifyAPIURL, cfg.Spotify.APIURL)
	assert.Equal(t, idp.DefaultScopes, cfg.Spotify.Scopes)
	assert.Equal(t, 10*time.Second, cfg.Spotify.Timeout)
	assert.Equal(t, ReplayStoreMemory, cfg.Replay.Store)
	assert.Equal(t, 5*time.Minute, cfg.Replay.TTL)
	assert.Equal(t, time.Minute, cfg.Replay.SweepInterval)
	assert.Equal(t, "used_authorization_codes", cfg.Replay.FirestoreCollection)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10, cfg.RateLimit.AuthRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.AuthWindow)
	assert.False(t, cfg.HasCredentials())
	assert.Equal(t, []string{"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET"}, cfg.MissingCredentials())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"SPOTIFY_CLIENT_ID":     "id",
		"SPOTIFY_CLIENT_SECRET": "secret",
		"FRONTEND_URL":          "https://songify.example.com/app",
		"PORT":                  "8080",
		"NODE_ENV":              "production",
		"SPOTIFY_SCOPES":        "user-read-email streaming",
		"REPLAY_STORE":          " Firestore ",
		"REPLAY_TTL":            "2m",
		"FIRESTORE_PROJECT_ID":  "songify-prod",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Environment().IsProduction())
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, "secret", string(cfg.Spotify.ClientSecret))
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "https://songify.example.com/app/callback", cfg.RedirectURI())
	assert.Equal(t, []string{"user-read-email", "streaming"}, cfg.Spotify.Scopes)
	assert.Equal(t, ReplayStoreFirestore, cfg.Replay.Store)
	assert.Equal(t, 2*time.Minute, cfg.Replay.TTL)
	assert.Equal(t, "songify-prod", cfg.Replay.FirestoreProjectID)
}

func TestLoadEnvironmentAlias(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"SONGIFY_ENV": "production"})
	require.NoError(t, err)
	assert.True(t, cfg.Environment().IsProduction())

	cfg, err = LoadFrom(map[string]string{"NODE_ENV": "test", "SONGIFY_ENV": "production"})
	require.NoError(t, err)
	assert.Equal(t, envutil.Test, cfg.Environment(), "NODE_ENV wins")
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"port", map[string]string{"PORT": "http"}},
		{"duration", map[string]string{"REPLAY_TTL": "five minutes"}},
		{"bool", map[string]string{"RATE_LIMIT_ENABLED": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse env")
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	dev, err := LoadFrom(map[string]string{"FRONTEND_URL": "http://localhost:5173/"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}, dev.AllowedOrigins())

	prod, err := LoadFrom(map[string]string{
		"NODE_ENV":     "production",
		"FRONTEND_URL": "https://Songify.example.com/app",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://songify.example.com"}, prod.AllowedOrigins())

	staging, err := LoadFrom(map[string]string{
		"NODE_ENV":     "staging",
		"FRONTEND_URL": "https://app.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com"}, staging.AllowedOrigins())
	assert.False(t, staging.Environment().IsDev())
	assert.True(t, staging.Environment().IsProduction())
}
