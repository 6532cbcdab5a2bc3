package sshlaunch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/catalog"
)

// DefaultBinary is looked up on PATH when Launcher.Binary is empty.
const DefaultBinary = "ssh"

// Exit codes
const (
	ExitSSHNotFound = 127
	ExitSignalBase  = 128
)

// ErrSSHNotFound is returned when the ssh binary is not on PATH.
var ErrSSHNotFound = errors.New("sshlaunch: ssh not found")

// ErrInvalidConnection is returned for connections without host or
// username, or whose host or username would be read as an ssh option.
var ErrInvalidConnection = errors.New("sshlaunch: invalid connection")

// ExitError reports a non-zero ssh exit.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("ssh exited with status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int { return e.Code }

// Launcher starts ssh sessions for catalog connections.
type Launcher struct {
	// Binary is the ssh executable name or path. Defaults to "ssh".
	Binary string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// WaitDelay is how long a cancelled ssh may linger before it is killed.
	WaitDelay time.Duration

	Logger *log.Logger
}

// NewLauncher returns a Launcher attached to the process's stdio.
func NewLauncher(binary string, logger *log.Logger) *Launcher {
	return &Launcher{
		Binary:    binary,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		WaitDelay: 5 * time.Second,
		Logger:    logger,
	}
}

func (l *Launcher) binary() string {
	if l.Binary == "" {
		return DefaultBinary
	}
	return l.Binary
}

func (l *Launcher) logger() *log.Logger {
	return logging.OrDefault(l.Logger)
}

// Prepare validates conn and returns the resolved ssh path and arguments.
func (l *Launcher) Prepare(conn catalog.Connection) (string, []string, error) {
	if !conn.Valid() {
		return "", nil, ErrInvalidConnection
	}
	if host, _ := Target(conn); host == "" || optionLike(host) || optionLike(conn.Username) {
		return "", nil, fmt.Errorf("%w: user %q host %q", ErrInvalidConnection, conn.Username, host)
	}
	if key := strOrEmpty(conn.KeyPath); key != "" {
		if err := CheckKey(key); err != nil {
			return "", nil, err
		}
	}
	path, err := exec.LookPath(l.binary())
	if err != nil {
		return "", nil, &ExitError{Code: ExitSSHNotFound, Err: ErrSSHNotFound}
	}
	return path, Args(conn), nil
}

// Run executes ssh as a child process and waits for it to exit.
// Termination signals received meanwhile are forwarded to ssh.
func (l *Launcher) Run(ctx context.Context, conn catalog.Connection) error {
	path, args, err := l.Prepare(conn)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(terminateSignal())
	}
	cmd.WaitDelay = l.WaitDelay

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signalsToNotify()...)
	defer signal.Stop(sigChan)

	l.logger().Info("Connecting", "label", conn.Label, "destination", Destination(conn))
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sshlaunch: failed to start ssh: %w", err)
	}

	done := make(chan struct{})
	var sigWg sync.WaitGroup
	sigWg.Add(1)
	go func() {
		defer sigWg.Done()
		for {
			select {
			case sig := <-sigChan:
				if forwardSignal(sig) && cmd.Process != nil {
					_ = cmd.Process.Signal(sig)
				}
			case <-done:
				return
			}
		}
	}()

	err = cmd.Wait()
	close(done)
	sigWg.Wait()

	duration := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			l.logger().Warn("Session cancelled", "label", conn.Label, "duration", duration)
			return &ExitError{Code: ExitSignalBase + 15, Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			l.logger().Info("Session ended", "label", conn.Label, "duration", duration, "exit_code", exitErr.ExitCode())
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return err
	}

	l.logger().Info("Session ended", "label", conn.Label, "duration", duration)
	return nil
}

// Exec replaces the current process with ssh. It returns only on failure.
func (l *Launcher) Exec(conn catalog.Connection) error {
	path, args, err := l.Prepare(conn)
	if err != nil {
		return err
	}
	l.logger().Info("Connecting", "label", conn.Label, "destination", Destination(conn))
	return execProcess(path, append([]string{l.binary()}, args...), os.Environ())
}
