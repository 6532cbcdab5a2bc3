// Package mcp serves the connection catalog to AI agents over the Model
// Context Protocol. Agents see connection metadata only; passwords and
// session tokens never leave the process.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/catalog"
	"github.com/forest6511/sshctl/pkg/session"
)

// Environment variables holding the MCP server credentials.
const (
	EnvEmail    = "SSHCTL_EMAIL"
	EnvPassword = "SSHCTL_PASSWORD"
)

// Errors
var (
	ErrNoEmail    = errors.New("no email provided: set " + EnvEmail + " environment variable")
	ErrNoPassword = errors.New("no password provided: set " + EnvPassword + " environment variable")
)

// Sessions is the session manager surface the server needs.
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

// Server is the sshctl MCP server.
type Server struct {
	server   *mcp.Server
	sessions Sessions
	catalog  Catalog
	policy   *Policy
	logger   *log.Logger
}

// ServerOptions contains configuration options for the MCP server.
type ServerOptions struct {
	Sessions Sessions
	Catalog  Catalog

	// Email and Password default to SSHCTL_EMAIL and SSHCTL_PASSWORD. The
	// password variable is cleared once read.
	Email    string
	Password string
	Server   string

	// PolicyDir holds mcp-policy.yaml. Empty means no policy file.
	PolicyDir string

	Version string
	Logger  *log.Logger
}

// NewServer logs in and creates a server with its tools registered.
func NewServer(ctx context.Context, opts *ServerOptions) (*Server, error) {
	if opts == nil || opts.Sessions == nil || opts.Catalog == nil {
		return nil, errors.New("mcp: sessions and catalog are required")
	}
	logger := logging.OrDefault(opts.Logger)

	policy := DefaultPolicy()
	if opts.PolicyDir != "" {
		p, err := LoadPolicy(opts.PolicyDir)
		switch {
		case err == nil:
			policy = p
		case errors.Is(err, ErrPolicyNotFound):
		default:
			return nil, fmt.Errorf("failed to load MCP policy: %w", err)
		}
	}

	email := opts.Email
	if email == "" {
		email = os.Getenv(EnvEmail)
	}
	password := opts.Password
	if password == "" {
		password = os.Getenv(EnvPassword)
		os.Unsetenv(EnvPassword)
	}
	if email == "" {
		return nil, ErrNoEmail
	}
	if password == "" {
		return nil, ErrNoPassword
	}

	if err := opts.Sessions.Login(ctx, email, password, opts.Server); err != nil {
		reason := opts.Sessions.Snapshot().LastError
		if reason == "" {
			reason = err.Error()
		}
		return nil, fmt.Errorf("failed to log in: %s", reason)
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		server:   mcp.NewServer(&mcp.Implementation{Name: "sshctl", Version: version}, nil),
		sessions: opts.Sessions,
		catalog:  opts.Catalog,
		policy:   policy,
		logger:   logger,
	}
	s.registerTools()
	logger.Info("MCP server ready", "folder", opts.Catalog.Folder(), "email", email)
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vault_status",
		Description: "Report whether the Bitwarden vault is unlocked, and the signed-in server and account. Never returns passwords or session tokens.",
	}, s.handleVaultStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "connection_list",
		Description: "List SSH connections stored in the vault folder: label, host, username, port and folder. Optionally filter by folder or label glob. Never returns passwords.",
	}, s.handleConnectionList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "connection_get",
		Description: "Get one SSH connection by label or list position, including the ssh command line that reaches it. Never returns passwords.",
	}, s.handleConnectionGet)
}

// Run serves MCP over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close logs out of the vault.
func (s *Server) Close() error {
	s.sessions.Logout()
	return nil
}
