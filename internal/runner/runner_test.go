package runner_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phrazzld/pgunit/internal/platform/logger"
	"github.com/phrazzld/pgunit/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sh(script string, env ...string) runner.Command {
	return runner.Command{Env: env, Name: "sh", Args: []string{"-c", script}}
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	cmd := runner.Command{
		Env:  []string{"PGUSER=test", "PGPASSWORD=test"},
		Name: "sqitch",
		Args: []string{"deploy", "view", "--registry", "sqitch_test"},
	}
	assert.Equal(t, "PGUSER=test PGPASSWORD=test sqitch deploy view --registry sqitch_test", cmd.String())
}

func TestExecRunSuccess(t *testing.T) {
	t.Parallel()

	r := runner.New(t.TempDir(), logger.NewTestLogger(t, slog.LevelDebug))
	res := r.Run(context.Background(), sh("echo hello"))

	require.True(t, res.OK(), res.Diagnostic())
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Diagnostic())
}

func TestExecRunsInDir(t *testing.T) {
	t.Parallel()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	res := runner.New(dir, nil).Run(context.Background(), sh("pwd"))

	require.True(t, res.OK())
	assert.Equal(t, dir, strings.TrimSpace(res.Stdout))
}

func TestExecPassesEnv(t *testing.T) {
	t.Parallel()

	res := runner.New(t.TempDir(), nil).Run(context.Background(),
		sh(`echo "$PGUSER/$PGPASSWORD"`, "PGUSER=spu3", "PGPASSWORD=spu3"))

	require.True(t, res.OK())
	assert.Equal(t, "spu3/spu3", strings.TrimSpace(res.Stdout))
}

func TestExecFailurePrefersStdout(t *testing.T) {
	t.Parallel()

	res := runner.New(t.TempDir(), nil).Run(context.Background(),
		sh("echo 'Unknown change: \"views\"'; echo noise >&2; exit 2"))

	require.False(t, res.OK())
	assert.Equal(t, 2, res.ExitCode)
	assert.True(t, errors.Is(res.Err, runner.ErrCommandFailed))
	assert.Equal(t, `Unknown change: "views"`, res.Err.Error())

	var cmdErr *runner.CommandError
	require.True(t, errors.As(res.Err, &cmdErr))
	assert.Equal(t, "noise\n", cmdErr.Stderr)
}

func TestExecFailureWithoutStdout(t *testing.T) {
	t.Parallel()

	res := runner.New(t.TempDir(), nil).Run(context.Background(),
		sh("echo broken >&2; exit 1", "PGPASSWORD=hidden"))

	require.False(t, res.OK())
	assert.Equal(t, 1, res.ExitCode)
	msg := res.Diagnostic()
	assert.Contains(t, msg, "failed")
	assert.Contains(t, msg, "broken")
	assert.NotContains(t, msg, "hidden", "passwords must be masked")
}

func TestExecMissingBinary(t *testing.T) {
	t.Parallel()

	res := runner.New(t.TempDir(), nil).Run(context.Background(),
		runner.Command{Name: "pgunit-binary-that-does-not-exist"})

	require.False(t, res.OK())
	assert.Equal(t, -1, res.ExitCode)
	assert.ErrorIs(t, res.Err, runner.ErrCommandFailed)
}

func TestExecHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := runner.New(t.TempDir(), nil).Run(ctx, sh("sleep 5"))

	assert.False(t, res.OK())
}

func TestExecLogsMaskedCommand(t *testing.T) {
	t.Parallel()

	buf, l := logger.NewBufferLogger()
	runner.New(os.TempDir(), l).Run(context.Background(), sh("true", "PGPASSWORD=secret"))

	logger.AssertLogContains(t, buf, "PGPASSWORD=****")
	assert.NotContains(t, buf.String(), "secret")
}

func TestFailureAndSuccessResults(t *testing.T) {
	t.Parallel()

	failed := runner.Failure("seed", errors.New("missing seed file"))
	assert.False(t, failed.OK())
	assert.Equal(t, "missing seed file", failed.Diagnostic())

	ok := runner.Success("verify", "Verify successful\n")
	assert.True(t, ok.OK())
	assert.Equal(t, "Verify successful\n", ok.Diagnostic())
}
