package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhruvspathak/Songify/internal/config"
	"github.com/dhruvspathak/Songify/internal/cookie"
	"github.com/dhruvspathak/Songify/internal/crypto"
	"github.com/dhruvspathak/Songify/internal/idp"
	"github.com/dhruvspathak/Songify/internal/log"
	"github.com/dhruvspathak/Songify/internal/server"
	"github.com/dhruvspathak/Songify/internal/storage"
	"github.com/dhruvspathak/Songify/internal/tracing"
)

// ServiceName identifies the service in traces and logs.
const ServiceName = "songify-auth"

// Songify is the assembled auth service.
type Songify struct {
	config     config.Config
	handler    http.Handler
	httpServer *server.HTTPServer
	usedCodes  storage.UsedCodeStore
	cleanup    *storage.CleanupManager
	shutdownTr func(context.Context) error
}

// NewSongify builds the service and all of its dependencies from cfg.
func NewSongify(ctx context.Context, cfg config.Config) (*Songify, error) {
	env := cfg.Environment()
	log.LogInfoWithFields("songify", "Building auth service", map[string]any{
		"environment":  string(env),
		"frontend_url": cfg.Server.FrontendURL,
		"replay_store": cfg.Replay.Store,
	})

	shutdownTr, err := tracing.Setup(ctx, tracing.Options{
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    string(env),
		Endpoint:       cfg.Tracing.Endpoint,
		Disabled:       cfg.Tracing.Disabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup tracing: %w", err)
	}

	usedCodes, err := setupUsedCodeStore(ctx, cfg)
	if err != nil {
		_ = shutdownTr(ctx)
		return nil, fmt.Errorf("failed to setup used-code store: %w", err)
	}

	var sealer *crypto.Sealer
	if cfg.Cookies.SealKey != "" {
		sealer, err = crypto.NewSealer([]byte(cfg.Cookies.SealKey))
		if err != nil {
			_ = usedCodes.Close()
			_ = shutdownTr(ctx)
			return nil, fmt.Errorf("failed to create cookie sealer: %w", err)
		}
	}

	redirectURI := cfg.RedirectURI()
	if redirectURI == "" {
		_ = usedCodes.Close()
		_ = shutdownTr(ctx)
		return nil, fmt.Errorf("invalid FRONTEND_URL %q", cfg.Server.FrontendURL)
	}

	provider := idp.NewSpotifyProvider(idp.SpotifyConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: string(cfg.Spotify.ClientSecret),
		RedirectURI:  redirectURI,
		Scopes:       cfg.Spotify.Scopes,
		AuthURL:      cfg.Spotify.AuthURL,
		TokenURL:     cfg.Spotify.TokenURL,
		APIURL:       cfg.Spotify.APIURL,
		AuthHost:     cfg.Spotify.AuthHost,
		Timeout:      cfg.Spotify.Timeout,
	})

	missing := cfg.MissingCredentials()
	if len(missing) > 0 {
		log.LogWarnWithFields("songify", "Spotify credentials missing; login is disabled", map[string]any{
			"missing": missing,
		})
	}

	authHandlers := server.NewAuthHandlers(provider, cookie.NewManager(env, sealer), usedCodes, server.AuthConfig{
		Environment:   env,
		ReplayTTL:     cfg.Replay.TTL,
		MissingConfig: missing,
	})
	healthHandler := server.NewHealthHandler(cfg.Version, env, usedCodes, missing)

	opts := server.RouterOptions{
		Environment:    env,
		AllowedOrigins: cfg.AllowedOrigins(),
		TrustProxy:     cfg.Server.TrustProxy,
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimits = server.RateLimits{
			Requests:     cfg.RateLimit.Requests,
			Window:       cfg.RateLimit.Window,
			AuthRequests: cfg.RateLimit.AuthRequests,
			AuthWindow:   cfg.RateLimit.AuthWindow,
		}
	}
	handler := server.NewRouter(authHandlers, healthHandler, opts)

	return &Songify{
		config:     cfg,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, cfg.Addr()),
		usedCodes:  usedCodes,
		cleanup:    storage.NewCleanupManager(usedCodes, cfg.Replay.SweepInterval),
		shutdownTr: shutdownTr,
	}, nil
}

// Handler returns the service's HTTP handler.
func (s *Songify) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives or the server
// fails, then shuts down gracefully.
func (s *Songify) Run(ctx context.Context) error {
	log.LogInfoWithFields("songify", "Starting auth service", map[string]any{
		"addr":    s.httpServer.Addr(),
		"version": s.config.Version,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.cleanup.Start(ctx)

	// Channel to signal errors that should trigger shutdown
	errChan := make(chan error, 1)

	go func() {
		if err := s.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var (
		shutdownReason string
		runErr         error
	)
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("songify", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		runErr = err
		log.LogErrorWithFields("songify", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	case <-ctx.Done():
		shutdownReason = "context cancelled"
		log.LogInfoWithFields("songify", "Context cancelled, shutting down", nil)
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log.LogInfoWithFields("songify", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": timeout.String(),
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := s.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("songify", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		if runErr == nil {
			runErr = err
		}
	}

	s.cleanup.Stop()
	if err := s.usedCodes.Close(); err != nil {
		log.LogWarnWithFields("songify", "Used-code store close error", map[string]any{"error": err.Error()})
	}
	if err := s.shutdownTr(shutdownCtx); err != nil {
		log.LogWarnWithFields("songify", "Tracer shutdown error", map[string]any{"error": err.Error()})
	}

	log.LogInfoWithFields("songify", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return runErr
}

// setupUsedCodeStore creates the replay-guard backend named by the config.
func setupUsedCodeStore(ctx context.Context, cfg config.Config) (storage.UsedCodeStore, error) {
	switch cfg.Replay.Store {
	case config.ReplayStoreFirestore:
		log.LogInfoWithFields("songify", "Using Firestore used-code store", map[string]any{
			"project":    cfg.Replay.FirestoreProjectID,
			"database":   cfg.Replay.FirestoreDatabase,
			"collection": cfg.Replay.FirestoreCollection,
		})
		store, err := storage.NewFirestoreUsedCodes(ctx,
			cfg.Replay.FirestoreProjectID,
			cfg.Replay.FirestoreDatabase,
			cfg.Replay.FirestoreCollection,
		)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.ReplayStoreMemory, "":
		log.LogInfoWithFields("songify", "Using in-memory used-code store", nil)
		return storage.NewMemoryUsedCodes(), nil
	default:
		return nil, fmt.Errorf("unknown replay store %q", cfg.Replay.Store)
	}
}
