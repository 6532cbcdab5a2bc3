package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

// shutdownSignals cancel the command context instead of killing the
// process, so deferred session cleanup still runs.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), shutdownSignals...)
}

func run() int {
	ctx, stop := signalContext()
	defer stop()

	rootCmd.Version = version
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	code := exitCode(err)
	// ssh already reported its own failure on the terminal.
	if !isSSHExit(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return code
}

// exitCoder is implemented by errors that carry a process exit status.
type exitCoder interface {
	ExitCode() int
}

func exitCode(err error) int {
	var ec exitCoder
	if errors.As(err, &ec) && ec.ExitCode() > 0 {
		return ec.ExitCode()
	}
	return 1
}
