package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/dhruvspathak/Songify/internal/idp"
	"github.com/dhruvspathak/Songify/internal/log"
)

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(envMap(os.Environ()))
}

// LoadFrom reads the configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.EnvName == "" {
		cfg.EnvName = vars["SONGIFY_ENV"]
	}
	if cfg.EnvName == "" {
		cfg.EnvName = "development"
	}
	if len(cfg.Spotify.Scopes) == 0 {
		cfg.Spotify.Scopes = idp.DefaultScopes
	}
	cfg.Replay.Store = strings.ToLower(strings.TrimSpace(cfg.Replay.Store))

	log.LogDebugWithFields("config", "Configuration loaded", map[string]any{
		"environment":  string(cfg.Environment()),
		"port":         cfg.Server.Port,
		"frontend_url": cfg.Server.FrontendURL,
		"replay_store": cfg.Replay.Store,
		"credentials":  cfg.HasCredentials(),
		"sealed":       cfg.Cookies.SealKey != "",
	})
	return cfg, nil
}

func envMap(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}
