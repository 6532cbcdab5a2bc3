package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forest6511/sshctl/pkg/catalog"
	"github.com/forest6511/sshctl/pkg/sshlaunch"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"24h", 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"6m", 180 * 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"90s", 90 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"d", 0, true},
		{"xyz", 0, true},
		{"-1d", 0, true},
		{"0d", 0, true},
		{"-90s", 0, true},
		{"0s", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("plain")))
	assert.Equal(t, 255, exitCode(&sshlaunch.ExitError{Code: 255}))
	assert.Equal(t, 3, exitCode(fmt.Errorf("wrapped: %w", &sshlaunch.ExitError{Code: 3})))
	assert.Equal(t, 127, exitCode(&sshlaunch.ExitError{Code: 127, Err: sshlaunch.ErrSSHNotFound}))
	assert.Equal(t, 1, exitCode(&sshlaunch.ExitError{Code: 0}))
}

func TestIsSSHExit(t *testing.T) {
	assert.True(t, isSSHExit(&sshlaunch.ExitError{Code: 255}))
	assert.False(t, isSSHExit(&sshlaunch.ExitError{Code: 127, Err: sshlaunch.ErrSSHNotFound}))
	assert.False(t, isSSHExit(errors.New("x")))
}

func TestResolveEmail(t *testing.T) {
	t.Setenv(envEmail, " env@example.com ")
	assert.Equal(t, "cfg@example.com", resolveEmail("cfg@example.com"))
	assert.Equal(t, "env@example.com", resolveEmail(""))
}

func TestMatchingLabels(t *testing.T) {
	conns := []catalog.Connection{{Label: "db1"}, {Label: "web"}, {Label: "db2"}, {Label: "db1"}}
	assert.Equal(t, []string{"db1", "db2"}, matchingLabels(conns, "db"))
	assert.Equal(t, []string{"db1", "web", "db2"}, matchingLabels(conns, ""))
	assert.Empty(t, matchingLabels(conns, "x"))
}

func TestReadCredentials_CancelledPrompt(t *testing.T) {
	t.Setenv(envEmail, "alice@example.com")
	t.Setenv(envPassword, "")

	pr, pw := io.Pipe()
	defer pw.Close()
	oldIn, oldErr := stdin, stderr
	stdin, stderr, stdinReader = pr, &bytes.Buffer{}, nil
	t.Cleanup(func() { stdin, stderr, stdinReader = oldIn, oldErr, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, _, err := readCredentials(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
