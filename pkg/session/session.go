// Package session owns the authentication state shared by every vault
// operation: the bw session token, the server, an isolated CLI config
// directory and the signed-in identity.
package session

import (
	"errors"

	"github.com/forest6511/sshctl/pkg/bwcli"
)

// DefaultServer is the Bitwarden cloud endpoint used when none is given.
const DefaultServer = "https://vault.bitwarden.com"

// PasswordEnv carries the master password to `bw login --passwordenv` so
// that it never appears on a command line.
const PasswordEnv = "SSHCTL_BW_PASSWORD"

// configDirPattern names the per-login temporary bw state directory.
const configDirPattern = "sshctl_bw_"

// Errors
var (
	ErrInvalidCredentials = errors.New("session: email and password are required")
	ErrNotUnlocked        = errors.New("session: vault is not unlocked")
	ErrNetwork            = errors.New("session: network error")
)

// Status is the vault state reported by `bw status`.
type Status string

const (
	StatusUnlocked        Status = "unlocked"
	StatusLocked          Status = "locked"
	StatusUnauthenticated Status = "unauthenticated"
	StatusUnknown         Status = "unknown"
)

func parseStatus(s string) Status {
	switch Status(s) {
	case StatusUnlocked, StatusLocked, StatusUnauthenticated:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// Session is a snapshot of the authentication state. Empty strings mean
// absent. A non-empty SessionToken means the last login succeeded.
type Session struct {
	SessionToken string
	ServerURL    string
	ConfigDir    string
	UserEmail    string
	UserID       string
	LastError    string
}

// Env returns the bw execution context for this session.
func (s Session) Env() bwcli.Env {
	return bwcli.Env{
		Session:   s.SessionToken,
		Server:    s.ServerURL,
		ConfigDir: s.ConfigDir,
	}
}

// UserInfo identifies the signed-in account for display.
type UserInfo struct {
	Server string `json:"server" yaml:"server"`
	Email  string `json:"email" yaml:"email"`
	UserID string `json:"user_id" yaml:"user_id"`
}

// Complete reports whether every field is known.
func (u *UserInfo) Complete() bool {
	return u != nil && u.Server != "" && u.Email != "" && u.UserID != ""
}

// statusResponse is the JSON printed by `bw status`.
type statusResponse struct {
	ServerURL string `json:"serverUrl"`
	LastSync  string `json:"lastSync"`
	UserEmail string `json:"userEmail"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
}

// EventKind names a session transition reported to observers.
type EventKind string

const (
	EventLogin       EventKind = "login"
	EventLoginFailed EventKind = "login_failed"
	EventLogout      EventKind = "logout"
)

// Event describes a session transition. It never carries secrets.
type Event struct {
	Kind   EventKind
	Email  string
	Server string
	Detail string
}
