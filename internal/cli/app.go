package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/catalog"
	"github.com/forest6511/sshctl/pkg/history"
	"github.com/forest6511/sshctl/pkg/session"
	"github.com/forest6511/sshctl/pkg/sshlaunch"
)

// Errors
var (
	ErrNotLoggedIn = errors.New("cli: not logged in")
	ErrLoginFailed = errors.New("cli: login failed")
)

// Sessions is the session manager surface the app drives.
type Sessions interface {
	Login(ctx context.Context, email, password, server string) error
	Logout()
	Status(ctx context.Context) session.Status
	UserInfo(ctx context.Context) *session.UserInfo
	Snapshot() session.Session
}

// Catalog loads the connection list.
type Catalog interface {
	Load(ctx context.Context) ([]catalog.Connection, error)
	Folder() string
}

// Connector opens an SSH session to a connection.
type Connector interface {
	Run(ctx context.Context, conn catalog.Connection) error
}

// Recorder stores history events.
type Recorder interface {
	Record(ctx context.Context, ev history.Event) (history.Event, error)
}

// CredentialsFunc supplies the email and master password for a login.
type CredentialsFunc func(ctx context.Context) (email, password string, err error)

// App ties the session, catalog and launcher together for the commands and
// the interactive shell. The connection list is cached after the first load
// so that list numbers stay stable until the next reload.
type App struct {
	Sessions    Sessions
	Connector   Connector
	History     Recorder
	Credentials CredentialsFunc
	Server      string
	Out         io.Writer
	Logger      *log.Logger

	mu      sync.Mutex
	catalog Catalog
	conns   []catalog.Connection
	loaded  bool
}

// NewApp returns an App reading connections from cat.
func NewApp(sessions Sessions, cat Catalog, connector Connector) *App {
	return &App{
		Sessions:  sessions,
		Connector: connector,
		Out:       os.Stdout,
		catalog:   cat,
	}
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return io.Discard
	}
	return a.Out
}

func (a *App) logger() *log.Logger {
	return logging.OrDefault(a.Logger)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out(), format, args...)
}

// SetCatalog swaps the catalog, e.g. after the configured folder changed,
// and drops the cached list.
func (a *App) SetCatalog(c Catalog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.catalog = c
	a.conns = nil
	a.loaded = false
}

// LoggedIn reports whether a login has succeeded. It does not ask bw.
func (a *App) LoggedIn(context.Context) bool {
	return a.Sessions.Snapshot().SessionToken != ""
}

// Login prompts for credentials and signs in. It prints nothing so that
// one-shot commands keep machine-readable output.
func (a *App) Login(ctx context.Context) error {
	if a.Credentials == nil {
		return fmt.Errorf("%w: no credential source", ErrLoginFailed)
	}
	email, password, err := a.Credentials(ctx)
	if err != nil {
		return err
	}

	if err := a.Sessions.Login(ctx, email, password, a.Server); err != nil {
		reason := a.Sessions.Snapshot().LastError
		if reason == "" {
			reason = err.Error()
		}
		return fmt.Errorf("%w: %s", ErrLoginFailed, reason)
	}

	a.mu.Lock()
	a.conns = nil
	a.loaded = false
	a.mu.Unlock()
	return nil
}

// Logout ends the session.
func (a *App) Logout(context.Context) error {
	a.Sessions.Logout()
	a.mu.Lock()
	a.conns = nil
	a.loaded = false
	a.mu.Unlock()
	a.printf("Logged out\n")
	return nil
}

// Status prints the live vault state.
func (a *App) Status(ctx context.Context) error {
	st := a.Sessions.Status(ctx)
	snap := a.Sessions.Snapshot()

	a.printf("Status: %s\n", st)
	if snap.ServerURL != "" {
		a.printf("Server: %s\n", snap.ServerURL)
	}
	if snap.UserEmail != "" {
		a.printf("Email:  %s\n", snap.UserEmail)
	}
	if snap.LastError != "" {
		a.printf("Last error: %s\n", snap.LastError)
	}
	return nil
}

// Whoami prints the signed-in identity.
func (a *App) Whoami(ctx context.Context) error {
	info := a.Sessions.UserInfo(ctx)
	if info == nil {
		return ErrNotLoggedIn
	}
	a.printf("%s\n", info.Email)
	a.printf("Server:  %s\n", info.Server)
	a.printf("User ID: %s\n", info.UserID)
	return nil
}

// Connections returns the cached connection list, loading it on first use.
func (a *App) Connections(ctx context.Context) ([]catalog.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return a.conns, nil
	}

	conns, err := a.catalog.Load(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrNotUnlocked) {
			return nil, ErrNotLoggedIn
		}
		if errors.Is(err, catalog.ErrFolderNotFound) {
			return nil, fmt.Errorf("%w: %q", err, a.catalog.Folder())
		}
		return nil, err
	}
	a.conns = conns
	a.loaded = true
	return conns, nil
}

// List prints the numbered connection table.
func (a *App) List(ctx context.Context) error {
	conns, err := a.Connections(ctx)
	if err != nil {
		return err
	}
	return WriteConnections(a.out(), conns, FormatTable)
}

// Reload refetches the connection list from the vault and prints it.
func (a *App) Reload(ctx context.Context) error {
	a.mu.Lock()
	a.conns = nil
	a.loaded = false
	a.mu.Unlock()
	return a.List(ctx)
}

// Resolve returns the single connection selector refers to.
func (a *App) Resolve(ctx context.Context, selector string) (catalog.Connection, error) {
	conns, err := a.Connections(ctx)
	if err != nil {
		return catalog.Connection{}, err
	}
	return SelectOne(selector, conns)
}

// Connect opens an SSH session to the connection selector refers to.
func (a *App) Connect(ctx context.Context, selector string) error {
	conn, err := a.Resolve(ctx, selector)
	if err != nil {
		return err
	}
	a.Record(ctx, ConnectEvent(a.Sessions.Snapshot().UserEmail, conn))
	return a.Connector.Run(ctx, conn)
}

// Record stores ev when history is enabled. Failures are logged only.
func (a *App) Record(ctx context.Context, ev history.Event) {
	if a.History == nil {
		return
	}
	if _, err := a.History.Record(ctx, ev); err != nil {
		a.logger().Warn("Failed to record history", "op", ev.Op, "error", err)
	}
}

// ConnectEvent builds the history event for connecting to conn.
func ConnectEvent(email string, conn catalog.Connection) history.Event {
	host, _ := sshlaunch.Target(conn)
	return history.Event{
		Op:       history.OpConnect,
		Email:    email,
		Label:    conn.Label,
		Host:     host,
		Username: conn.Username,
	}
}

// SessionEvent converts a session manager event into a history event.
func SessionEvent(ev session.Event) history.Event {
	op := history.OpLogin
	switch ev.Kind {
	case session.EventLoginFailed:
		op = history.OpLoginFailed
	case session.EventLogout:
		op = history.OpLogout
	}
	detail := ev.Detail
	if ev.Server != "" {
		detail = strings.TrimSpace("server=" + ev.Server + " " + detail)
	}
	return history.Event{Op: op, Email: ev.Email, Detail: detail}
}
