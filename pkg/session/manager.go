package session

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/bwcli"
)

// Runner executes bw.
type Runner interface {
	Run(ctx context.Context, env bwcli.Env, args ...string) (string, error)
	RunJSON(ctx context.Context, env bwcli.Env, out any, args ...string) error
}

// Manager drives login, logout and status queries against bw and holds the
// single process-wide Session. Login and Logout hold the write lock for
// their whole duration, so other callers never observe a half-built
// session. Callers must still serialise login attempts themselves.
type Manager struct {
	mu    sync.RWMutex
	state Session

	// avatar cache, valid for avatarToken only
	avatar      []byte
	avatarToken string

	runner        Runner
	defaultServer string
	httpClient    *http.Client
	tempDir       string
	observer      func(Event)
	logger        *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithDefaultServer sets the server used when Login is given none.
func WithDefaultServer(url string) Option {
	return func(m *Manager) {
		if url != "" {
			m.defaultServer = url
		}
	}
}

// WithHTTPClient sets the client used for avatar downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithTempDir sets the parent directory for isolated config directories.
func WithTempDir(dir string) Option {
	return func(m *Manager) { m.tempDir = dir }
}

// WithObserver registers a callback for session transitions.
func WithObserver(fn func(Event)) Option {
	return func(m *Manager) { m.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager with an empty session.
func NewManager(runner Runner, opts ...Option) *Manager {
	m := &Manager{
		runner:        runner,
		defaultServer: DefaultServer,
		httpClient:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrDefault(m.logger)
	return m
}

// Login authenticates email against server (DefaultServer when empty).
// Any previous session is destroyed first. On failure the session is left
// empty and LastError describes the reason.
func (m *Manager) Login(ctx context.Context, email, password, server string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.destroyLocked()
	m.state.LastError = ""

	if server == "" {
		server = m.defaultServer
	}
	server = strings.TrimRight(server, "/")

	state, err := m.login(ctx, email, password, server)
	if err != nil {
		if state.ConfigDir != "" {
			removeDir(m.logger, state.ConfigDir)
		}
		m.state = Session{LastError: describeLoginError(err)}
		m.logger.Error("Login failed", "email", email, "server", server, "reason", m.state.LastError)
		m.notify(Event{Kind: EventLoginFailed, Email: email, Server: server, Detail: m.state.LastError})
		return err
	}

	m.state = state
	m.logger.Info("Logged in", "email", state.UserEmail, "server", state.ServerURL)
	m.notify(Event{Kind: EventLogin, Email: state.UserEmail, Server: state.ServerURL})
	return nil
}

// login performs the bw calls. The returned state carries ConfigDir even on
// failure so that the caller can clean it up.
func (m *Manager) login(ctx context.Context, email, password, server string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	dir, err := os.MkdirTemp(m.tempDir, configDirPattern)
	if err != nil {
		return Session{}, err
	}
	state := Session{ServerURL: server, ConfigDir: dir, UserEmail: email}

	if server != DefaultServer {
		if _, err := m.runner.Run(ctx, state.Env(), "config", "server", server); err != nil {
			return state, err
		}
	}

	loginEnv := state.Env().With(PasswordEnv, password)
	token, err := m.runner.Run(ctx, loginEnv, "login", email, "--passwordenv", PasswordEnv, "--raw")
	if err != nil {
		return state, err
	}
	if token == "" || strings.ContainsAny(token, " \n") {
		return state, bwcli.ErrMalformedOutput
	}
	state.SessionToken = token

	if _, err := m.runner.Run(ctx, state.Env(), "sync"); err != nil {
		m.logger.Warn("Initial sync failed", "error", err)
	}

	var st statusResponse
	if err := m.runner.RunJSON(ctx, state.Env(), &st, "status"); err != nil {
		m.logger.Warn("Could not read account details", "error", err)
		return state, nil
	}
	if st.ServerURL != "" {
		state.ServerURL = strings.TrimRight(st.ServerURL, "/")
	}
	if st.UserEmail != "" {
		state.UserEmail = st.UserEmail
	}
	state.UserID = st.UserID
	return state, nil
}

func describeLoginError(err error) string {
	var cmdErr *bwcli.CommandError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Email and password are required"
	case errors.Is(err, bwcli.ErrToolNotFound):
		return "bw CLI not found"
	case errors.As(err, &cmdErr):
		if cmdErr.Stderr != "" {
			return cmdErr.Stderr
		}
		return "Bitwarden login failed"
	case errors.Is(err, bwcli.ErrMalformedOutput):
		return "bw returned no session token"
	default:
		return err.Error()
	}
}

// Logout clears the session and removes its config directory. Calling it
// without a session is a no-op.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasLoggedIn := m.state.SessionToken != ""
	email, server := m.state.UserEmail, m.state.ServerURL
	m.destroyLocked()
	m.state = Session{}

	if wasLoggedIn {
		m.logger.Info("Logged out", "email", email)
		m.notify(Event{Kind: EventLogout, Email: email, Server: server})
	}
}

// Close releases the session at process exit.
func (m *Manager) Close() error {
	m.Logout()
	return nil
}

// destroyLocked removes the config directory and forgets cached data.
// LastError is kept; callers decide whether to reset it.
func (m *Manager) destroyLocked() {
	if m.state.ConfigDir != "" {
		removeDir(m.logger, m.state.ConfigDir)
	}
	m.state = Session{LastError: m.state.LastError}
	m.avatar = nil
	m.avatarToken = ""
}

func removeDir(logger *log.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("Failed to remove bw config directory", "dir", dir, "error", err)
	}
}

func (m *Manager) notify(ev Event) {
	if m.observer != nil {
		m.observer(ev)
	}
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Env returns the bw execution context for the current session.
func (m *Manager) Env() bwcli.Env {
	return m.Snapshot().Env()
}

// LastError returns the reason the most recent login failed, or "".
func (m *Manager) LastError() string {
	return m.Snapshot().LastError
}

// Status asks bw for the live vault state. Without a config directory
// there is no CLI state to ask about, so bw is not invoked.
func (m *Manager) Status(ctx context.Context) Status {
	state := m.Snapshot()
	if state.ConfigDir == "" {
		return StatusUnauthenticated
	}

	var st statusResponse
	if err := m.runner.RunJSON(ctx, state.Env(), &st, "status"); err != nil {
		m.logger.Warn("Status query failed", "error", err)
		return StatusUnknown
	}
	return parseStatus(st.Status)
}

// IsUnlocked reports whether a session token is held and bw confirms the
// vault is unlocked. The cached token alone is not trusted because the
// vault can be locked behind our back.
func (m *Manager) IsUnlocked(ctx context.Context) bool {
	if m.Snapshot().SessionToken == "" {
		return false
	}
	return m.Status(ctx) == StatusUnlocked
}

// UserInfo returns the signed-in identity, or nil unless unlocked.
func (m *Manager) UserInfo(ctx context.Context) *UserInfo {
	if !m.IsUnlocked(ctx) {
		return nil
	}
	state := m.Snapshot()
	return &UserInfo{
		Server: state.ServerURL,
		Email:  state.UserEmail,
		UserID: state.UserID,
	}
}
