// Package bwcli runs the Bitwarden command-line tool with an isolated
// environment and captures its output.
package bwcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/forest6511/sshctl/internal/logging"
)

// DefaultBinary is looked up on PATH when Runner.Binary is empty.
const DefaultBinary = "bw"

// waitDelay bounds how long a killed bw may hold its output pipes open.
const waitDelay = 2 * time.Second

// Errors
var (
	ErrToolNotFound    = errors.New("bwcli: bw CLI not found")
	ErrCommandFailed   = errors.New("bwcli: command failed")
	ErrMalformedOutput = errors.New("bwcli: malformed output")
)

// CommandError describes a bw invocation that exited unsuccessfully.
type CommandError struct {
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("bw %s failed", subcommand(e.Args))
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCommandFailed) match any CommandError.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}

// Runner executes bw. Each call is a single attempt; callers decide
// whether to retry.
type Runner struct {
	// Binary is the executable name or path. Defaults to "bw".
	Binary string

	// Environ supplies the base environment. Defaults to os.Environ.
	Environ func() []string

	// Timeout bounds calls whose context has no deadline. Zero means none.
	Timeout time.Duration

	Logger *log.Logger
}

// NewRunner returns a Runner for the given binary.
func NewRunner(binary string, logger *log.Logger) *Runner {
	return &Runner{Binary: binary, Logger: logger}
}

func (r *Runner) binary() string {
	if r.Binary == "" {
		return DefaultBinary
	}
	return r.Binary
}

func (r *Runner) logger() *log.Logger {
	return logging.OrDefault(r.Logger)
}

// Run executes bw with args under env and returns trimmed stdout.
func (r *Runner) Run(ctx context.Context, env Env, args ...string) (string, error) {
	path, err := exec.LookPath(r.binary())
	if err != nil {
		r.logger().Error("bw CLI not found", "binary", r.binary())
		return "", ErrToolNotFound
	}

	if r.Timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}
	}

	base := hostEnviron
	if r.Environ != nil {
		base = r.Environ
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = env.Environ(base())
	cmd.WaitDelay = waitDelay

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	commandString := "bw " + strings.Join(args, " ")
	r.logger().Debug("Executing command", "command", commandString, "config_dir", env.ConfigDir)

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	stdout := strings.TrimSpace(outBuf.String())
	stderr := strings.TrimSpace(errBuf.String())

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger().Error("Command aborted", "command", commandString, "duration", duration, "error", ctxErr)
		return "", &CommandError{Args: args, Stderr: stderr, ExitCode: -1, Err: ctxErr}
	}

	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		r.logger().Error("Command failed", "command", commandString, "duration", duration, "exit_code", code)
		r.logger().Debug("Command stderr", "command", commandString, "stderr", stderr)
		return "", &CommandError{Args: args, Stderr: stderr, ExitCode: code, Err: err}
	}

	r.logger().Debug("Command successful", "command", commandString, "duration", duration, "stdout_len", len(stdout))
	return stdout, nil
}

// RunJSON executes bw and decodes its stdout into out.
// Decoding problems are reported as ErrMalformedOutput only.
func (r *Runner) RunJSON(ctx context.Context, env Env, out any, args ...string) error {
	stdout, err := r.Run(ctx, env, args...)
	if err != nil {
		return err
	}
	if stdout == "" {
		r.logger().Error("Empty bw output", "command", subcommand(args))
		return ErrMalformedOutput
	}
	if err := json.Unmarshal([]byte(stdout), out); err != nil {
		r.logger().Error("Failed to parse bw output", "command", subcommand(args), "error", err)
		return ErrMalformedOutput
	}
	return nil
}

// subcommand returns the leading non-flag words of args, which never carry
// secrets.
func subcommand(args []string) string {
	var words []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") || len(words) == 2 {
			break
		}
		words = append(words, a)
	}
	return strings.Join(words, " ")
}
