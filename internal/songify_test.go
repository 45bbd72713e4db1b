package internal

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dhruvspathak/Songify/internal/config"
	"github.com/dhruvspathak/Songify/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, fake *testutil.FakeSpotify, extra map[string]string) config.Config {
	t.Helper()
	vars := map[string]string{
		"NODE_ENV":              "development",
		"SPOTIFY_CLIENT_ID":     fake.ClientID,
		"SPOTIFY_CLIENT_SECRET": fake.ClientSecret,
		"SPOTIFY_AUTH_URL":      fake.AuthURL(),
		"SPOTIFY_TOKEN_URL":     fake.TokenURL(),
		"SPOTIFY_API_URL":       fake.APIURL(),
		"SPOTIFY_AUTH_HOST":     fake.Host(),
		"OTEL_SDK_DISABLED":     "true",
	}
	for k, v := range extra {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)
	cfg.Version = "test"
	return cfg
}

func TestNewSongifyHandler(t *testing.T) {
	fake := testutil.NewFakeSpotify()
	t.Cleanup(fake.Server.Close)

	app, err := NewSongify(context.Background(), testConfig(t, fake, nil))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), fake.AuthURL()))

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewSongifyErrors(t *testing.T) {
	fake := testutil.NewFakeSpotify()
	t.Cleanup(fake.Server.Close)

	tests := []struct {
		name  string
		extra map[string]string
	}{
		{"unknown store", map[string]string{"REPLAY_STORE": "redis"}},
		{"short seal key", map[string]string{"COOKIE_SEAL_KEY": "short"}},
		{"bad frontend url", map[string]string{"FRONTEND_URL": "::not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSongify(context.Background(), testConfig(t, fake, tt.extra))
			assert.Error(t, err)
		})
	}
}

func TestSongifyRunStopsOnCancel(t *testing.T) {
	fake := testutil.NewFakeSpotify()
	t.Cleanup(fake.Server.Close)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	app, err := NewSongify(context.Background(), testConfig(t, fake, map[string]string{
		"PORT":             fmt.Sprint(port),
		"SHUTDOWN_TIMEOUT": "2s",
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
