package mcp

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/forest6511/sshctl/pkg/catalog"
)

// Policy limits which connections MCP clients may see.
type Policy struct {
	Version       int      `yaml:"version"`
	DefaultAction string   `yaml:"default_action"`
	DeniedLabels  []string `yaml:"denied_labels"`
	AllowedLabels []string `yaml:"allowed_labels"`
	HideKeyPaths  bool     `yaml:"hide_key_paths"`
}

// PolicyFileName is the name of the policy file in the config directory.
const PolicyFileName = "mcp-policy.yaml"

// Policy action constants
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// Errors
var (
	ErrPolicyNotFound       = errors.New("MCP policy file not found")
	ErrPolicyInsecure       = errors.New("MCP policy file has insecure permissions")
	ErrPolicySymlink        = errors.New("MCP policy file is a symlink")
	ErrPolicyNotOwnedByUser = errors.New("MCP policy file not owned by current user")
)

// DefaultPolicy exposes every connection. It applies when no policy file
// exists; the tools never return secrets either way.
func DefaultPolicy() *Policy {
	return &Policy{Version: 1, DefaultAction: ActionAllow}
}

// LoadPolicy loads the policy from dir. The file is opened without
// following symlinks and checked on the open descriptor.
func LoadPolicy(dir string) (*Policy, error) {
	policyPath := filepath.Join(dir, PolicyFileName)

	f, err := openPolicyFile(policyPath)
	if err != nil {
		if errors.Is(err, ErrPolicyNotFound) || errors.Is(err, ErrPolicySymlink) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy file: %w", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		return nil, fmt.Errorf("%w: %o (expected 0600)", ErrPolicyInsecure, perm)
	}
	if err := checkFileOwnership(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if policy.DefaultAction == "" {
		policy.DefaultAction = ActionDeny
	}
	if err := policy.ValidatePolicy(); err != nil {
		return nil, err
	}
	return &policy, nil
}

// ValidatePolicy checks the version, action and label patterns.
func (p *Policy) ValidatePolicy() error {
	if p.Version != 1 {
		return fmt.Errorf("unsupported policy version: %d", p.Version)
	}
	if p.DefaultAction != ActionDeny && p.DefaultAction != ActionAllow {
		return fmt.Errorf("invalid default_action: %s (must be '%s' or '%s')", p.DefaultAction, ActionDeny, ActionAllow)
	}
	for _, pattern := range append(append([]string(nil), p.DeniedLabels...), p.AllowedLabels...) {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid label pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// IsLabelAllowed evaluates denied_labels, then allowed_labels, then
// default_action.
func (p *Policy) IsLabelAllowed(label string) (allowed bool, reason string) {
	for _, denied := range p.DeniedLabels {
		if matchLabel(label, denied) {
			return false, fmt.Sprintf("connection '%s' matches denied pattern '%s'", label, denied)
		}
	}
	for _, pattern := range p.AllowedLabels {
		if matchLabel(label, pattern) {
			return true, ""
		}
	}
	if p.DefaultAction == ActionAllow {
		return true, ""
	}
	return false, fmt.Sprintf("connection '%s' not in allowed_labels list", label)
}

func matchLabel(label, pattern string) bool {
	ok, err := filepath.Match(pattern, label)
	return err == nil && ok
}

// Filter returns the connections the policy allows, in order.
func (p *Policy) Filter(conns []catalog.Connection) []catalog.Connection {
	out := make([]catalog.Connection, 0, len(conns))
	for _, c := range conns {
		if ok, _ := p.IsLabelAllowed(c.Label); ok {
			out = append(out, c)
		}
	}
	return out
}
