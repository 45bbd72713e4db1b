package integration

import (
	"os"
	"os/exec"
	"testing"

	"github.com/dhruvspathak/Songify/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLICheckConfig(t *testing.T) {
	fake := testutil.NewFakeSpotify()
	t.Cleanup(fake.Server.Close)

	t.Run("valid environment passes", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "check-config")
		cmd.Env = append(os.Environ(), songifyEnv(fake, 3000)...)
		output, err := cmd.CombinedOutput()
		t.Logf("check-config output: %s", output)

		require.NoError(t, err)
		assert.Contains(t, string(output), "Result: PASS")
	})

	t.Run("invalid environment fails", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "check-config")
		cmd.Env = append(os.Environ(), songifyEnv(fake, 3000)...)
		cmd.Env = append(cmd.Env, "PORT=70000", "REPLAY_STORE=redis")
		output, err := cmd.CombinedOutput()
		t.Logf("check-config output: %s", output)

		require.Error(t, err)
		assert.Contains(t, string(output), "Result: FAIL")
		assert.Contains(t, string(output), "PORT")
		assert.Contains(t, string(output), "REPLAY_STORE")
	})

	t.Run("serve refuses an invalid environment", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "serve")
		cmd.Env = append(os.Environ(), songifyEnv(fake, 3000)...)
		cmd.Env = append(cmd.Env, "FRONTEND_URL=not a url")
		output, err := cmd.CombinedOutput()

		require.Error(t, err)
		assert.Contains(t, string(output), "FRONTEND_URL")
	})
}
