//go:build !windows

package sshlaunch

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func signalsToNotify() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
}

// forwardSignal reports whether sig must be relayed to ssh. Ctrl+C already
// reaches ssh through the terminal's foreground process group.
func forwardSignal(sig os.Signal) bool {
	return sig != os.Interrupt
}

func terminateSignal() os.Signal {
	return syscall.SIGTERM
}

func execProcess(path string, argv, env []string) error {
	if err := unix.Exec(path, argv, env); err != nil {
		return fmt.Errorf("sshlaunch: exec failed: %w", err)
	}
	return nil
}
