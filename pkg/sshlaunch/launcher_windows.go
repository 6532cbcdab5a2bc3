//go:build windows

package sshlaunch

import (
	"errors"
	"os"
)

// ErrExecUnsupported is returned by Launcher.Exec on Windows.
var ErrExecUnsupported = errors.New("sshlaunch: exec is not supported on windows")

func signalsToNotify() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func forwardSignal(os.Signal) bool { return false }

func terminateSignal() os.Signal {
	return os.Kill
}

func execProcess(string, []string, []string) error {
	return ErrExecUnsupported
}
