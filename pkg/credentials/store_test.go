package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	tok, ok := Static("  abc \n").Get()
	require.True(t, ok)
	require.Equal(t, "abc", tok)

	_, ok = Static("").Get()
	require.False(t, ok)
}

func TestEnv(t *testing.T) {
	t.Setenv("AUDITCTL_TEST_TOKEN", "from-env")
	tok, ok := Env{Name: "AUDITCTL_TEST_TOKEN"}.Get()
	require.True(t, ok)
	require.Equal(t, "from-env", tok)

	_, ok = Env{Name: "AUDITCTL_TEST_TOKEN_MISSING"}.Get()
	require.False(t, ok)
}

func TestFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(p, []byte("from-file\n"), 0o600))

	tok, ok := File{Path: p}.Get()
	require.True(t, ok)
	require.Equal(t, "from-file", tok)

	_, ok = File{Path: filepath.Join(t.TempDir(), "nope")}.Get()
	require.False(t, ok)
}

func TestChain_FirstHit(t *testing.T) {
	c := Chain{Static(""), nil, Static("second"), Static("third")}
	tok, ok := c.Get()
	require.True(t, ok)
	require.Equal(t, "second", tok)

	_, ok = Chain{}.Get()
	require.False(t, ok)
}
