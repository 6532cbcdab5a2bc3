package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/forest6511/sshctl/internal/cli"
	"github.com/forest6511/sshctl/internal/config"
	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/bwcli"
	"github.com/forest6511/sshctl/pkg/catalog"
	"github.com/forest6511/sshctl/pkg/history"
	"github.com/forest6511/sshctl/pkg/notes"
	"github.com/forest6511/sshctl/pkg/session"
	"github.com/forest6511/sshctl/pkg/sshlaunch"
	"github.com/forest6511/sshctl/pkg/vault"
)

// Environment variables read by the CLI besides SSHCTL_* config keys.
const (
	envPassword          = "SSHCTL_PASSWORD"
	envEmail             = "SSHCTL_EMAIL"
	envCompletionEnabled = "SSHCTL_COMPLETION_ENABLED"
)

// Global flags
var (
	configFile  string
	flagEmail   string
	flagServer  string
	flagFolder  string
	flagLogLvl  string
	flagVerbose bool
)

var (
	cfg    *config.Config
	logger *log.Logger

	// stdin/stdout are swapped by tests.
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "sshctl",
	Short: "sshctl opens SSH sessions described in a Bitwarden vault",
	Long: `sshctl reads SSH connection records from a folder in your Bitwarden vault
through the bw CLI and connects to them.

Each login item in the folder becomes a connection: the username is the SSH
user and the first URI is the host. JSON in the item's notes may override
label, host, username, port, folder, key_path and initial_cmd.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE loads configuration and the logger for every
	// subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		level := cfg.LogLevel
		if flagVerbose {
			level = "debug"
		}
		logger = logging.New(stderr, level)
		log.SetDefault(logger)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/sshctl/config.yaml)")
	pf.StringVar(&flagEmail, "email", "", "Bitwarden account email")
	pf.StringVar(&flagServer, "server", "", "Bitwarden server URL")
	pf.StringVar(&flagFolder, "folder", "", "Vault folder holding SSH connections")
	pf.StringVar(&flagLogLvl, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	pf := cmd.Flags()
	if pf.Changed("email") {
		c.Email = strings.TrimSpace(flagEmail)
	}
	if pf.Changed("server") {
		c.Server = strings.TrimSpace(flagServer)
	}
	if pf.Changed("folder") {
		c.Folder = strings.TrimSpace(flagFolder)
	}
	if pf.Changed("log-level") {
		c.LogLevel = flagLogLvl
	}
}

// environment is the wired object graph for one command invocation.
type environment struct {
	cfg      *config.Config
	runner   *bwcli.Runner
	manager  *session.Manager
	browser  *vault.Browser
	loader   *catalog.Loader
	history  *history.Store
	launcher *sshlaunch.Launcher
	app      *cli.App
}

func newEnvironment(c *config.Config, l *log.Logger) *environment {
	env := &environment{cfg: c}

	if c.HistoryEnabled {
		store, err := history.Open(c.HistoryPath)
		if err != nil {
			l.Warn("History disabled", "path", c.HistoryPath, "error", err)
		} else {
			env.history = store
		}
	}

	env.runner = bwcli.NewRunner(c.BWBinary, l)
	env.runner.Timeout = c.CommandTimeout

	opts := []session.Option{
		session.WithDefaultServer(c.Server),
		session.WithHTTPClient(&http.Client{Timeout: c.AvatarTimeout}),
		session.WithLogger(l),
	}
	if env.history != nil {
		opts = append(opts, session.WithObserver(func(ev session.Event) {
			if _, err := env.history.Record(context.Background(), cli.SessionEvent(ev)); err != nil {
				l.Warn("Failed to record history", "op", ev.Kind, "error", err)
			}
		}))
	}
	env.manager = session.NewManager(env.runner, opts...)

	env.browser = vault.NewBrowser(env.runner, env.manager, l)
	env.loader = newLoader(env, c.Folder, l)
	env.launcher = sshlaunch.NewLauncher(c.SSHBinary, l)
	env.launcher.Stdin = stdin
	env.launcher.Stdout = stdout
	env.launcher.Stderr = stderr

	env.app = cli.NewApp(env.manager, env.loader, env.launcher)
	env.app.Server = c.Server
	env.app.Out = stdout
	env.app.Logger = l
	env.app.Credentials = func(ctx context.Context) (string, string, error) {
		return readCredentials(ctx, c.Email)
	}
	if env.history != nil {
		env.app.History = env.history
	}
	return env
}

func newLoader(env *environment, folder string, l *log.Logger) *catalog.Loader {
	builder := catalog.NewBuilder(notes.NewDecoder(l), l)
	return catalog.NewLoader(env.browser, builder, folder, l)
}

// Close logs out, removes the isolated bw state and closes history.
func (e *environment) Close() {
	_ = e.manager.Close()
	if e.history != nil {
		_ = e.history.Close()
	}
}

// withEnvironment runs fn with a wired environment and tears it down after.
func withEnvironment(fn func(*environment) error) error {
	env := newEnvironment(cfg, logger)
	defer env.Close()
	return fn(env)
}

// withSession is withEnvironment plus a login before fn runs.
func withSession(ctx context.Context, fn func(*environment) error) error {
	return withEnvironment(func(env *environment) error {
		if err := env.app.Login(ctx); err != nil {
			return err
		}
		return fn(env)
	})
}

// readCredentials returns the email and master password. The password comes
// from SSHCTL_PASSWORD when set, otherwise from a no-echo terminal prompt.
// Prompts give up when ctx is cancelled.
func readCredentials(ctx context.Context, configured string) (string, string, error) {
	email := resolveEmail(configured)
	if email == "" {
		line, err := prompt(ctx, "Email: ")
		if err != nil {
			return "", "", err
		}
		email = line
	}
	if email == "" {
		return "", "", errors.New("email is required (use --email, config email, or " + envEmail + ")")
	}

	if password, ok := os.LookupEnv(envPassword); ok && password != "" {
		return email, password, nil
	}

	password, err := readPassword(ctx, "Master password: ")
	if err != nil {
		return "", "", err
	}
	if password == "" {
		return "", "", errors.New("master password is required")
	}
	return email, password, nil
}

func resolveEmail(configured string) string {
	if configured != "" {
		return configured
	}
	return strings.TrimSpace(os.Getenv(envEmail))
}

var stdinReader *bufio.Reader

// prompt reads a single line from stdin, trimming the trailing newline.
func prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(stderr, label)
	if stdinReader == nil {
		stdinReader = bufio.NewReader(stdin)
	}
	r := stdinReader
	line, err := readInterruptible(ctx, func() (string, error) {
		return r.ReadString('\n')
	})
	if err != nil && err != io.EOF {
		if ctx.Err() != nil {
			fmt.Fprintln(stderr)
			return "", err
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo on a terminal and falls back to a plain
// line for piped input. The terminal state is restored when ctx is
// cancelled mid-prompt.
func readPassword(ctx context.Context, label string) (string, error) {
	if f, ok := stdin.(*os.File); ok && isTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		state, err := term.GetState(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprint(stderr, label)
		password, err := readInterruptible(ctx, func() (string, error) {
			b, err := term.ReadPassword(fd)
			return string(b), err
		})
		fmt.Fprintln(stderr)
		if ctx.Err() != nil {
			_ = term.Restore(fd, state)
			return "", ctx.Err()
		}
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return password, nil
	}
	line, err := prompt(ctx, label)
	if err != nil {
		return "", err
	}
	return line, nil
}

// readInterruptible runs a blocking read and returns early with ctx.Err()
// once ctx is done. The abandoned read finishes in the background.
func readInterruptible(ctx context.Context, read func() (string, error)) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := read()
		done <- result{line, err}
	}()
	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// isTerminal returns true if the file descriptor is a terminal
func isTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// parseDuration parses durations like "24h", "30d", "2w", "6m" (months) or
// "1y", falling back to time.ParseDuration.
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}

	unit := s[len(s)-1]
	value, err := strconv.Atoi(s[:len(s)-1])

	var d time.Duration
	switch {
	case err != nil:
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	case unit == 'h':
		d = time.Duration(value) * time.Hour
	case unit == 'd':
		d = time.Duration(value) * 24 * time.Hour
	case unit == 'w':
		d = time.Duration(value) * 7 * 24 * time.Hour
	case unit == 'm':
		d = time.Duration(value) * 30 * 24 * time.Hour
	case unit == 'y':
		d = time.Duration(value) * 365 * 24 * time.Hour
	default:
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}

// isSSHExit reports whether err is ssh's own non-zero exit.
func isSSHExit(err error) bool {
	var exitErr *sshlaunch.ExitError
	return errors.As(err, &exitErr) && exitErr.Err == nil
}
