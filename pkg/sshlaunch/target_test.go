package sshlaunch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/sshctl/pkg/catalog"
)

func strPtr(s string) *string { return &s }

func TestTarget(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		wantHost string
		wantPort int
	}{
		{"plain host", "10.0.0.5", 22, "10.0.0.5", 22},
		{"custom port kept", "10.0.0.5", 2222, "10.0.0.5", 2222},
		{"zero port defaults", "h", 0, "h", 22},
		{"ssh uri with port", "ssh://admin@db.example.com:2200", 22, "db.example.com", 2200},
		{"uri port loses to override", "ssh://db.example.com:2200", 2222, "db.example.com", 2222},
		{"https uri", "https://web.example.com/", 22, "web.example.com", 22},
		{"user prefix", "root@box", 22, "box", 22},
		{"trailing slash", "box/", 22, "box", 22},
		{"whitespace", "  box ", 22, "box", 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port := Target(catalog.Connection{Host: tt.host, Port: tt.port})
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestArgs(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		conn := catalog.Connection{Label: "db1", Host: "10.0.0.5", Username: "admin", Port: 2222}
		assert.Equal(t, []string{"-p", "2222", "--", "admin@10.0.0.5"}, Args(conn))
	})

	t.Run("key and initial command", func(t *testing.T) {
		conn := catalog.Connection{
			Host:       "ssh://h:2200",
			Username:   "u",
			Port:       22,
			KeyPath:    strPtr("/keys/id_ed25519"),
			InitialCmd: strPtr("cd /srv"),
		}
		assert.Equal(t, []string{
			"-i", "/keys/id_ed25519",
			"-p", "2200",
			"-t",
			"--",
			"u@h",
			"cd /srv; exec $SHELL -l",
		}, Args(conn))
	})

	t.Run("blank values ignored", func(t *testing.T) {
		conn := catalog.Connection{Host: "h", Username: "u", Port: 22, KeyPath: strPtr(""), InitialCmd: strPtr("  ")}
		assert.Equal(t, []string{"-p", "22", "--", "u@h"}, Args(conn))
	})

	t.Run("tilde expanded", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		conn := catalog.Connection{Host: "h", Username: "u", Port: 22, KeyPath: strPtr("~/.ssh/id")}
		args := Args(conn)
		require.Len(t, args, 6)
		assert.Equal(t, filepath.Join(home, ".ssh", "id"), args[1])
	})
}

func TestArgs_DestinationAfterOptionEnd(t *testing.T) {
	conn := catalog.Connection{Host: "10.0.0.5", Username: "-oProxyCommand=touch /tmp/x", Port: 22, InitialCmd: strPtr("uptime")}
	args := Args(conn)

	assert.Equal(t, []string{"-p", "22", "-t", "--", "-oProxyCommand=touch /tmp/x@10.0.0.5", "uptime; exec $SHELL -l"}, args)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "k"), ExpandPath("~/k"))
	assert.Equal(t, "/abs/k", ExpandPath("/abs/k"))
	assert.Equal(t, "~other/k", ExpandPath("~other/k"))
}
