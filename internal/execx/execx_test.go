package execx

import (
	"bytes"
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}
}

func TestOSRunner_Success(t *testing.T) {
	skipOnWindows(t)

	res, err := OSRunner{}.Run(context.Background(), Command{Name: "echo", Args: []string{"hello world"}})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "hello world", res.Stdout)
	assert.Equal(t, "", res.Stderr)
}

func TestOSRunner_NonZeroExitIsNotAnError(t *testing.T) {
	skipOnWindows(t)

	res, err := OSRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo 'normal output'; echo 'error message' >&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "normal output", res.Stdout)
	assert.Equal(t, "error message", res.Stderr)
}

func TestOSRunner_CopiesToCommandWriters(t *testing.T) {
	skipOnWindows(t)

	var stdout, stderr, echo bytes.Buffer
	res, err := OSRunner{Echo: &echo}.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "echo out; echo err >&2"},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.NoError(t, err)
	assert.Equal(t, "out", res.Stdout)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
	assert.Equal(t, "out\n", echo.String())
}

func TestOSRunner_EnvAndDir(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	res, err := OSRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `printf '%s:%s' "$EXECX_TEST_VALUE" "$(pwd)"`},
		Dir:  dir,
		Env:  map[string]string{"EXECX_TEST_VALUE": "set"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "set:")
	assert.Contains(t, res.Stdout, dir)
}

func TestOSRunner_ContextCancellation(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := OSRunner{}.Run(ctx, Command{Name: "sleep", Args: []string{"5"}})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
}

func TestOSRunner_CommandNotFound(t *testing.T) {
	res, err := OSRunner{}.Run(context.Background(), Command{Name: "this-command-does-not-exist"})
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
	assert.Empty(t, res.Stdout)
}

func TestOSRunner_EmptyName(t *testing.T) {
	_, err := OSRunner{}.Run(context.Background(), Command{})
	require.Error(t, err)
}

func TestPrimaryOutput(t *testing.T) {
	assert.Equal(t, "error message", PrimaryOutput(Result{Stdout: "normal", Stderr: "error message"}))
	assert.Equal(t, "normal", PrimaryOutput(Result{Stdout: "normal"}))
	assert.Equal(t, "", PrimaryOutput(Result{}))
}

func TestBuildEnvIsSortedAndAppended(t *testing.T) {
	env := BuildEnv(map[string]string{"ZZ_EXECX": "2", "AA_EXECX": "1"})
	require.GreaterOrEqual(t, len(env), 2)
	assert.Equal(t, "AA_EXECX=1", env[len(env)-2])
	assert.Equal(t, "ZZ_EXECX=2", env[len(env)-1])
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "vagrant", Args: []string{"destroy", "-f"}}
	assert.Equal(t, "vagrant destroy -f", c.String())
	assert.Equal(t, []string{"vagrant", "destroy", "-f"}, c.Argv())
}
