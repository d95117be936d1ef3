package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadOptional_MissingFileIsEmpty(t *testing.T) {
	cfg, err := LoadOptional(DefaultPath(t.TempDir()))
	require.NoError(t, err)
	require.Equal(t, &File{}, cfg)
}

func TestLoadFromFile_StreamOptions(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("from-file\n"), 0o600))

	path := DefaultPath(dir)
	require.NoError(t, os.WriteFile(path, []byte(`
server: http://localhost:8000/api/v1/
token_file: `+tokenPath+`
stream:
  include_thinking: false
  heartbeat_timeout: 20s
  token_yield: 2ms
reconnect:
  max_attempts: 8
  initial_delay: 500ms
  max_delay: 10s
  jitter_factor: 0
`), 0o644))

	cfg, err := LoadOptional(path)
	require.NoError(t, err)

	opts := cfg.StreamOptions("t1")
	require.Equal(t, "http://localhost:8000/api/v1", opts.BaseURL)
	require.Equal(t, "t1", opts.TaskID)
	require.False(t, opts.IncludeThinking)
	require.True(t, opts.IncludeToolCalls)
	require.Equal(t, 20*time.Second, opts.HeartbeatTimeout)
	require.Equal(t, 2*time.Millisecond, opts.TokenYield)
	require.Equal(t, 8, opts.MaxReconnectAttempts)
	require.Equal(t, 500*time.Millisecond, opts.Backoff.InitialDelay)
	require.Equal(t, 10*time.Second, opts.Backoff.MaxDelay)
	require.Equal(t, 0.0, opts.Backoff.JitterFactor)
	require.True(t, opts.Backoff.NoJitter)

	token, ok := cfg.Credentials().Get()
	require.True(t, ok)
	require.Equal(t, "from-file", token)
}

func TestCredentials_FallsBackToDefaultEnv(t *testing.T) {
	t.Setenv(DefaultTokenEnv, "env-token")
	token, ok := (&File{}).Credentials().Get()
	require.True(t, ok)
	require.Equal(t, "env-token", token)
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := LoadFromFile(path)
	require.Error(t, err)
}
