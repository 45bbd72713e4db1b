package integration

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/dhruvspathak/Songify/internal/testutil"
	"github.com/stretchr/testify/require"
)

// trace logs a message if TRACE environment variable is set
func trace(t *testing.T, format string, args ...any) {
	if os.Getenv("TRACE") == "1" {
		t.Logf("TRACE: "+format, args...)
	}
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// songifyEnv is the environment that points a server at fake.
func songifyEnv(fake *testutil.FakeSpotify, port int) []string {
	return []string{
		"NODE_ENV=development",
		fmt.Sprintf("PORT=%d", port),
		"FRONTEND_URL=http://localhost:5173",
		"SPOTIFY_CLIENT_ID=" + fake.ClientID,
		"SPOTIFY_CLIENT_SECRET=" + fake.ClientSecret,
		"SPOTIFY_AUTH_URL=" + fake.AuthURL(),
		"SPOTIFY_TOKEN_URL=" + fake.TokenURL(),
		"SPOTIFY_API_URL=" + fake.APIURL(),
		"SPOTIFY_AUTH_HOST=" + fake.Host(),
		"SPOTIFY_TIMEOUT=2s",
		"REPLAY_STORE=memory",
		"RATE_LIMIT_ENABLED=false",
		"OTEL_SDK_DISABLED=true",
	}
}

// startSongify starts the songify-auth binary with extraEnv layered over the
// process environment, and returns its base URL once it answers /health.
func startSongify(t *testing.T, port int, extraEnv ...string) string {
	t.Helper()
	cmd := exec.Command(binaryPath, "serve")
	cmd.Env = append(os.Environ(), extraEnv...)

	if logFile := os.Getenv("SONGIFY_LOG_FILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			cmd.Stderr = f
			cmd.Stdout = f
			t.Cleanup(func() { f.Close() })
		}
	}

	require.NoError(t, cmd.Start(), "failed to start songify-auth")
	t.Cleanup(func() { stopSongify(cmd) })

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForSongify(t, baseURL)
	return baseURL
}

// stopSongify stops the server gracefully
func stopSongify(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}

// waitForSongify waits for the server to answer its health check
func waitForSongify(t *testing.T, baseURL string) {
	t.Helper()
	for range 50 {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("songify-auth failed to become ready after 5 seconds")
}

// browser is an HTTP client with a cookie jar that does not follow redirects,
// standing in for the frontend.
func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}
