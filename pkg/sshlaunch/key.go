package sshlaunch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Errors
var (
	ErrKeyNotFound    = errors.New("sshlaunch: key file not found")
	ErrKeyPermissions = errors.New("sshlaunch: key file is accessible by other users")
	ErrKeyInvalid     = errors.New("sshlaunch: key file is not a private key")
)

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// CheckKey verifies that path names a private key ssh will accept.
// Encrypted keys pass; ssh prompts for the passphrase itself.
func CheckKey(path string) error {
	path = ExpandPath(path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, path)
		}
		return fmt.Errorf("sshlaunch: failed to stat key: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrKeyInvalid, path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0077 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrKeyPermissions, path, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sshlaunch: failed to read key: %w", err)
	}
	if _, err := ssh.ParseRawPrivateKey(data); err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrKeyInvalid, path)
	}
	return nil
}
