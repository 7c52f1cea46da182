// Package execx runs external tools while capturing their output.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Command describes a single external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the parent environment.
	Env map[string]string
	// Stdout and Stderr receive a live copy of the output when set.
	Stdout io.Writer
	Stderr io.Writer
}

// Argv returns the command line as a slice, name first.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Result captures stdout/stderr emitted by a command run along with its exit code.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the process exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes commands. A non-zero exit is reported through
// Result.ExitCode with a nil error; the error is reserved for processes that
// could not be started or were interrupted by ctx.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// OSRunner runs commands on the local machine.
type OSRunner struct {
	// Echo mirrors child output to the given writers in addition to any
	// writers set on the Command.
	Echo    io.Writer
	EchoErr io.Writer
}

var _ Runner = OSRunner{}

// Run implements Runner.
func (r OSRunner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Name == "" {
		return Result{}, errors.New("execx: empty command name")
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = BuildEnv(c.Env)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.MultiWriter(writers(&stdoutBuf, c.Stdout, r.Echo)...)
	cmd.Stderr = io.MultiWriter(writers(&stderrBuf, c.Stderr, r.EchoErr)...)

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimSpace(stdoutBuf.String()),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}

	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", c.Name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("start %s: %w", c.Name, err)
}

// PrimaryOutput returns stderr if present, otherwise stdout.
func PrimaryOutput(res Result) string {
	if res.Stderr != "" {
		return res.Stderr
	}
	return res.Stdout
}

// BuildEnv layers custom on top of the current process environment. Keys are
// appended in sorted order so the resulting slice is deterministic.
func BuildEnv(custom map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(custom))
	for k := range custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, custom[k]))
	}
	return env
}

func writers(buf *bytes.Buffer, extra ...io.Writer) []io.Writer {
	out := []io.Writer{buf}
	for _, w := range extra {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}
