package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/bwcli"
)

// fakeBW emulates the bw subcommands used by the manager. State lives in
// the isolated config directory, exactly where the real CLI keeps it.
const fakeBW = `#!/bin/sh
dir="$BITWARDENCLI_APPDATA_DIR"
case "$1" in
config)
	[ -n "$FAKE_CONFIG_FAIL" ] && { echo "invalid server url" >&2; exit 1; }
	echo "$3" > "$dir/server"
	echo "Saved setting config."
	;;
login)
	[ "$SSHCTL_BW_PASSWORD" = "correct horse" ] || { echo "Username or password is incorrect. Try again." >&2; exit 1; }
	[ -n "$FAKE_LOGIN_SILENT_FAIL" ] && exit 1
	[ -n "$FAKE_EMPTY_TOKEN" ] && exit 0
	echo "$2" > "$dir/email"
	echo "token-$2"
	;;
sync)
	[ -n "$FAKE_SYNC_FAIL" ] && { echo "sync failed" >&2; exit 1; }
	[ "$BW_SESSION" = "" ] && exit 1
	echo "Syncing complete."
	;;
status)
	[ -n "$FAKE_STATUS_GARBAGE" ] && { echo "not json"; exit 0; }
	server=$(cat "$dir/server" 2>/dev/null)
	email=$(cat "$dir/email" 2>/dev/null)
	state=unauthenticated
	if [ -n "$email" ]; then
		state=locked
		[ -n "$BW_SESSION" ] && state=unlocked
		[ -f "$dir/locked" ] && state=locked
	fi
	[ -n "$FAKE_STATUS" ] && state="$FAKE_STATUS"
	echo "{\"serverUrl\":\"$server\",\"userEmail\":\"$email\",\"userId\":\"uid-42\",\"status\":\"$state\"}"
	;;
*)
	echo "unknown command $1" >&2
	exit 2
	;;
esac
`

type fixture struct {
	manager *Manager
	tmp     string
	events  []Event
}

func newFixture(t *testing.T, extraEnv ...string) *fixture {
	t.Helper()
	binDir := t.TempDir()
	bin := filepath.Join(binDir, "bw")
	require.NoError(t, os.WriteFile(bin, []byte(fakeBW), 0o755))

	env := append([]string{"PATH=/usr/bin:/bin", "BW_SESSION=ambient"}, extraEnv...)
	runner := &bwcli.Runner{
		Binary:  bin,
		Environ: func() []string { return append([]string(nil), env...) },
		Logger:  logging.Discard(),
	}

	f := &fixture{tmp: t.TempDir()}
	f.manager = NewManager(runner,
		WithTempDir(f.tmp),
		WithLogger(logging.Discard()),
		WithObserver(func(ev Event) { f.events = append(f.events, ev) }),
	)
	t.Cleanup(func() { _ = f.manager.Close() })
	return f
}

func (f *fixture) configDirs(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.tmp, configDirPattern+"*"))
	require.NoError(t, err)
	return matches
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Login(ctx, "alice@example.com", "correct horse", ""))

	state := f.manager.Snapshot()
	assert.Equal(t, "token-alice@example.com", state.SessionToken)
	assert.Equal(t, DefaultServer, state.ServerURL, "empty serverUrl falls back to the requested server")
	assert.Equal(t, "alice@example.com", state.UserEmail)
	assert.Equal(t, "uid-42", state.UserID)
	assert.Empty(t, state.LastError)
	assert.DirExists(t, state.ConfigDir)
	assert.True(t, f.manager.IsUnlocked(ctx))
	assert.Equal(t, StatusUnlocked, f.manager.Status(ctx))

	require.Len(t, f.events, 1)
	assert.Equal(t, EventLogin, f.events[0].Kind)
}

func TestLogin_CustomServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Login(ctx, "bob@example.com", "correct horse", "https://vault.example.com/"))

	info := f.manager.UserInfo(ctx)
	require.NotNil(t, info)
	assert.Equal(t, UserInfo{Server: "https://vault.example.com", Email: "bob@example.com", UserID: "uid-42"}, *info)
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Login(ctx, "alice@example.com", "correct horse", ""))
	first := f.manager.Snapshot()

	require.NoError(t, f.manager.Login(ctx, "bob@example.com", "correct horse", ""))
	second := f.manager.Snapshot()

	assert.Equal(t, "token-bob@example.com", second.SessionToken)
	assert.Equal(t, "bob@example.com", second.UserEmail)
	assert.NotEqual(t, first.ConfigDir, second.ConfigDir)
	assert.NoDirExists(t, first.ConfigDir)
	assert.Len(t, f.configDirs(t), 1)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name      string
		env       []string
		email     string
		password  string
		server    string
		wantErr   error
		wantError string
	}{
		{
			name: "empty email", email: "", password: "correct horse",
			wantErr: ErrInvalidCredentials, wantError: "Email and password are required",
		},
		{
			name: "empty password", email: "alice@example.com", password: "",
			wantErr: ErrInvalidCredentials, wantError: "Email and password are required",
		},
		{
			name: "wrong password", email: "alice@example.com", password: "nope",
			wantErr: bwcli.ErrCommandFailed, wantError: "Username or password is incorrect. Try again.",
		},
		{
			name: "failure without stderr", env: []string{"FAKE_LOGIN_SILENT_FAIL=1"},
			email: "alice@example.com", password: "correct horse",
			wantErr: bwcli.ErrCommandFailed, wantError: "Bitwarden login failed",
		},
		{
			name: "empty token", env: []string{"FAKE_EMPTY_TOKEN=1"},
			email: "alice@example.com", password: "correct horse",
			wantErr: bwcli.ErrMalformedOutput, wantError: "bw returned no session token",
		},
		{
			name: "server config rejected", env: []string{"FAKE_CONFIG_FAIL=1"},
			email: "alice@example.com", password: "correct horse", server: "not a url",
			wantErr: bwcli.ErrCommandFailed, wantError: "invalid server url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.env...)
			ctx := context.Background()

			err := f.manager.Login(ctx, tc.email, tc.password, tc.server)
			require.ErrorIs(t, err, tc.wantErr)

			assert.False(t, f.manager.IsUnlocked(ctx))
			assert.Equal(t, tc.wantError, f.manager.LastError())
			assert.Equal(t, Session{LastError: tc.wantError}, f.manager.Snapshot())
			assert.Empty(t, f.configDirs(t), "config dir must be removed after a failed login")

			require.Len(t, f.events, 1)
			assert.Equal(t, EventLoginFailed, f.events[0].Kind)
		})
	}
}

func TestLogin_FailureClearsPriorSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Login(ctx, "alice@example.com", "correct horse", ""))
	old := f.manager.Snapshot().ConfigDir

	require.Error(t, f.manager.Login(ctx, "alice@example.com", "wrong", ""))
	assert.False(t, f.manager.IsUnlocked(ctx))
	assert.Empty(t, f.manager.Snapshot().SessionToken)
	assert.NoDirExists(t, old)
}

func TestLogin_ToolNotFound(t *testing.T) {
	runner := &bwcli.Runner{Binary: filepath.Join(t.TempDir(), "bw"), Logger: logging.Discard()}
	m := NewManager(runner, WithTempDir(t.TempDir()), WithLogger(logging.Discard()))
	ctx := context.Background()

	err := m.Login(ctx, "alice@example.com", "correct horse", "")
	require.ErrorIs(t, err, bwcli.ErrToolNotFound)
	assert.Equal(t, "bw CLI not found", m.LastError())
	assert.False(t, m.IsUnlocked(ctx))
}

func TestLogin_SyncFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "FAKE_SYNC_FAIL=1")
	ctx := context.Background()

	require.NoError(t, f.manager.Login(ctx, "alice@example.com", "correct horse", ""))
	assert.True(t, f.manager.IsUnlocked(ctx))
}

func TestLogin_StatusFailureKeepsSession(t *testing.T) {
	f := newFixture(t, "FAKE_STATUS_GARBAGE=1")
	ctx := context.Background()

	require.NoError(t, f.manager.Login(ctx, "alice@example.com", "correct horse", ""))
	state := f.manager.Snapshot()
	assert.NotEmpty(t, state.SessionToken)
	assert.Equal(t, "alice@example.com", state.UserEmail)
	assert.Empty(t, state.UserID)

	// Live status cannot be read, so the vault is not considered unlocked.
	assert.Equal(t, StatusUnknown, f.manager.Status(ctx))
	assert.False(t, f.manager.IsUnlocked(ctx))
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Login(ctx, "alice@example.com", "correct horse", ""))
	dir := f.manager.Snapshot().ConfigDir

	f.manager.Logout()
	assert.False(t, f.manager.IsUnlocked(ctx))
	assert.Equal(t, Session{}, f.manager.Snapshot())
	assert.NoDirExists(t, dir)
	assert.Equal(t, StatusUnauthenticated, f.manager.Status(ctx))

	// Second logout is a no-op.
	f.manager.Logout()
	assert.Equal(t, Session{}, f.manager.Snapshot())

	require.Len(t, f.events, 2)
	assert.Equal(t, EventLogout, f.events[1].Kind)
	assert.Equal(t, "alice@example.com", f.events[1].Email)
}

func TestLogout_WhenNeverLoggedIn(t *testing.T) {
	f := newFixture(t)
	f.manager.Logout()
	assert.Empty(t, f.events)
	assert.NoError(t, f.manager.Close())
}

func TestStatus_QueriesCLI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, StatusUnauthenticated, f.manager.Status(ctx))

	require.NoError(t, f.manager.Login(ctx, "alice@example.com", "correct horse", ""))
	assert.Equal(t, StatusUnlocked, f.manager.Status(ctx))
	assert.Equal(t, f.manager.Status(ctx), f.manager.Status(ctx))

	// Locked out of band: cached token is still present but bw says locked.
	dir := f.manager.Snapshot().ConfigDir
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locked"), nil, 0o600))
	assert.Equal(t, StatusLocked, f.manager.Status(ctx))
	assert.False(t, f.manager.IsUnlocked(ctx))
	assert.Nil(t, f.manager.UserInfo(ctx))
}

func TestStatus_UnknownValue(t *testing.T) {
	f := newFixture(t, "FAKE_STATUS=confused")
	ctx := context.Background()

	require.NoError(t, f.manager.Login(ctx, "alice@example.com", "correct horse", ""))
	assert.Equal(t, StatusUnknown, f.manager.Status(ctx))
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusUnlocked, parseStatus("unlocked"))
	assert.Equal(t, StatusLocked, parseStatus("locked"))
	assert.Equal(t, StatusUnauthenticated, parseStatus("unauthenticated"))
	assert.Equal(t, StatusUnknown, parseStatus(""))
	assert.Equal(t, StatusUnknown, parseStatus("Unlocked"))
}
