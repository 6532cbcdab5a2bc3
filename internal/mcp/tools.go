package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forest6511/sshctl/internal/cli"
	"github.com/forest6511/sshctl/pkg/catalog"
	"github.com/forest6511/sshctl/pkg/sshlaunch"
)

// VaultStatusInput represents input for vault_status tool.
type VaultStatusInput struct{}

// VaultStatusOutput represents output for vault_status tool.
type VaultStatusOutput struct {
	Status string `json:"status"`
	Server string `json:"server,omitempty"`
	Email  string `json:"email,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Folder string `json:"folder"`
}

// ConnectionListInput represents input for connection_list tool.
type ConnectionListInput struct {
	Folder  string `json:"folder,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// ConnectionListOutput represents output for connection_list tool.
type ConnectionListOutput struct {
	Connections []ConnectionInfo `json:"connections"`
	Total       int              `json:"total"`
}

// ConnectionGetInput represents input for connection_get tool.
type ConnectionGetInput struct {
	Label string `json:"label"`
}

// ConnectionInfo is the metadata of a connection shown to agents.
type ConnectionInfo struct {
	Index      int    `json:"index"`
	Label      string `json:"label"`
	Host       string `json:"host"`
	Username   string `json:"username"`
	Port       int    `json:"port"`
	Folder     string `json:"folder"`
	HasKey     bool   `json:"has_key"`
	KeyPath    string `json:"key_path,omitempty"`
	InitialCmd string `json:"initial_cmd,omitempty"`
	Command    string `json:"ssh_command,omitempty"`
}

func (s *Server) handleVaultStatus(ctx context.Context, _ *mcp.CallToolRequest, _ VaultStatusInput) (*mcp.CallToolResult, VaultStatusOutput, error) {
	out := VaultStatusOutput{
		Status: string(s.sessions.Status(ctx)),
		Folder: s.catalog.Folder(),
	}
	if info := s.sessions.UserInfo(ctx); info != nil {
		out.Server = info.Server
		out.Email = info.Email
		out.UserID = info.UserID
	}
	return nil, out, nil
}

func (s *Server) handleConnectionList(ctx context.Context, _ *mcp.CallToolRequest, input ConnectionListInput) (*mcp.CallToolResult, ConnectionListOutput, error) {
	conns, err := s.connections(ctx)
	if err != nil {
		return nil, ConnectionListOutput{}, err
	}

	out := ConnectionListOutput{Connections: make([]ConnectionInfo, 0, len(conns))}
	for i, c := range conns {
		if input.Folder != "" && c.Folder != input.Folder {
			continue
		}
		if input.Pattern != "" {
			idx, err := cli.MatchLabels(input.Pattern, []catalog.Connection{c})
			if err != nil {
				return nil, ConnectionListOutput{}, err
			}
			if len(idx) == 0 {
				continue
			}
		}
		out.Connections = append(out.Connections, s.info(i+1, c, false))
	}
	out.Total = len(out.Connections)
	return nil, out, nil
}

func (s *Server) handleConnectionGet(ctx context.Context, _ *mcp.CallToolRequest, input ConnectionGetInput) (*mcp.CallToolResult, ConnectionInfo, error) {
	if strings.TrimSpace(input.Label) == "" {
		return nil, ConnectionInfo{}, errors.New("label is required")
	}
	if cli.IsPattern(input.Label) {
		return nil, ConnectionInfo{}, errors.New("label must not contain glob characters; use connection_list")
	}

	conns, err := s.connections(ctx)
	if err != nil {
		return nil, ConnectionInfo{}, err
	}
	conn, err := cli.SelectOne(input.Label, conns)
	if err != nil {
		return nil, ConnectionInfo{}, err
	}
	index := 0
	for i, c := range conns {
		if c == conn {
			index = i + 1
			break
		}
	}
	return nil, s.info(index, conn, true), nil
}

// connections loads the catalog and applies the policy. Indexes are
// positions in the filtered list.
func (s *Server) connections(ctx context.Context) ([]catalog.Connection, error) {
	conns, err := s.catalog.Load(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrFolderNotFound) {
			return nil, fmt.Errorf("vault folder %q not found", s.catalog.Folder())
		}
		if errors.Is(err, catalog.ErrNotUnlocked) {
			return nil, errors.New("vault is not unlocked")
		}
		return nil, err
	}
	return s.policy.Filter(conns), nil
}

func (s *Server) info(index int, c catalog.Connection, withCommand bool) ConnectionInfo {
	info := ConnectionInfo{
		Index:    index,
		Label:    c.Label,
		Host:     c.Host,
		Username: c.Username,
		Port:     c.Port,
		Folder:   c.Folder,
		HasKey:   c.KeyPath != nil && *c.KeyPath != "",
	}
	if info.HasKey && !s.policy.HideKeyPaths {
		info.KeyPath = *c.KeyPath
	}
	if c.InitialCmd != nil {
		info.InitialCmd = *c.InitialCmd
	}
	if withCommand {
		shown := c
		if s.policy.HideKeyPaths {
			shown.KeyPath = nil
		}
		info.Command = commandLine(sshlaunch.Args(shown))
	}
	return info
}

// commandLine renders ssh args for display, quoting arguments that contain
// shell metacharacters.
func commandLine(args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, "ssh")
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t'\"$;&|<>*?()`\\") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
