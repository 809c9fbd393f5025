// Package runner executes external commands from the project root and
// reports their outcome as a Result value instead of a raised error.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/phrazzld/pgunit/internal/projectroot"
)

// ErrCommandFailed matches every CommandError.
var ErrCommandFailed = errors.New("command failed")

// Command is a program invocation. Env entries (KEY=VALUE) are added to the
// inherited process environment. No shell is involved.
type Command struct {
	Env  []string
	Name string
	Args []string
}

// String renders the command as the equivalent shell text, for example
// "PGUSER=a PGPASSWORD=a sqitch deploy --registry sqitch_a".
func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+len(c.Args)+1)
	parts = append(parts, c.Env...)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// CommandError describes a command that could not start or exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Error returns the captured stdout when there is any, otherwise a generic
// failure message carrying stderr.
func (e *CommandError) Error() string {
	if out := strings.TrimSpace(e.Stdout); out != "" {
		return out
	}
	msg := fmt.Sprintf("command %q failed: %v", projectroot.MaskCommandLine(e.Command), e.Err)
	if errOut := strings.TrimSpace(e.Stderr); errOut != "" {
		msg += ": " + errOut
	}
	return msg
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCommandFailed.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}

// Result is the outcome of one command. Err is nil on success.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Diagnostic returns the best available description of the outcome:
// stdout when present, else the error text.
func (r Result) Diagnostic() string {
	if r.Stdout != "" {
		return r.Stdout
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}

// Failure builds a Result for an operation that failed before any command
// ran, such as a missing input file.
func Failure(command string, err error) Result {
	return Result{Command: command, ExitCode: -1, Err: err}
}

// Success builds a Result carrying output produced without a subprocess.
func Success(command, stdout string) Result {
	return Result{Command: command, Stdout: stdout}
}

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// Exec runs commands as subprocesses from Dir.
type Exec struct {
	Dir    string
	Logger *slog.Logger
}

// New returns an Exec rooted at dir.
func New(dir string, logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{Dir: dir, Logger: logger}
}

// Run executes cmd and waits for it to finish.
func (e *Exec) Run(ctx context.Context, cmd Command) Result {
	text := cmd.String()
	masked := projectroot.MaskCommandLine(text)
	e.Logger.DebugContext(ctx, "running command", "command", masked, "dir", e.Dir)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = e.Dir
	c.Env = append(os.Environ(), cmd.Env...)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := Result{
		Command:  text,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		res.Err = &CommandError{
			Command:  text,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Err:      err,
		}
		e.Logger.DebugContext(ctx, "command failed",
			"command", masked,
			"exit_code", res.ExitCode,
			"duration", res.Duration,
			"error", res.Err.Error(),
		)
		return res
	}

	e.Logger.DebugContext(ctx, "command finished",
		"command", masked,
		"duration", res.Duration,
	)
	return res
}
