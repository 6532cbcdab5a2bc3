package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/forest6511/sshctl/pkg/catalog"
	"github.com/forest6511/sshctl/pkg/history"
)

func TestWriteConnections_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConnections(&buf, sampleConns[:2], FormatTable))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"#", "LABEL", "DESTINATION", "PORT", "FOLDER"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "db1", "admin@10.0.0.5", "2222", "Default"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "db2", "admin@10.0.0.6", "22", "Default"}, strings.Fields(lines[2]))
}

func TestWriteConnections_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConnections(&buf, nil, FormatTable))
	assert.Equal(t, "No connections found\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteConnections(&buf, nil, FormatJSON))
	assert.JSONEq(t, `{"connections":[]}`, buf.String())
}

func TestWriteConnections_JSON(t *testing.T) {
	key := "~/.ssh/id"
	conns := []catalog.Connection{{Label: "db1", Host: "h", Username: "u", Port: 22, Folder: "Default", KeyPath: &key}}

	var buf bytes.Buffer
	require.NoError(t, WriteConnections(&buf, conns, FormatJSON))

	var got catalog.Config
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, conns, got.Connections)
	assert.NotContains(t, buf.String(), "initial_cmd")
}

func TestWriteConnections_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConnections(&buf, sampleConns[2:3], FormatYAML))

	var got catalog.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Connections, 1)
	assert.Equal(t, "web.example.com", got.Connections[0].Host)
}

func TestWriteConnections_UnknownFormat(t *testing.T) {
	err := WriteConnections(&bytes.Buffer{}, sampleConns, "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteConnection_Table(t *testing.T) {
	cmd := "cd /srv"
	c := sampleConns[0]
	c.InitialCmd = &cmd

	var buf bytes.Buffer
	require.NoError(t, WriteConnection(&buf, c, FormatTable))
	out := buf.String()
	assert.Contains(t, out, "Host:")
	assert.Contains(t, out, "10.0.0.5")
	assert.Contains(t, out, "2222")
	assert.Contains(t, out, "cd /srv")
	assert.NotContains(t, out, "Key:")
}

func TestWriteEvents(t *testing.T) {
	events := []history.Event{
		{Time: time.Now(), Op: history.OpConnect, Label: "db1", Host: "10.0.0.5", Username: "admin"},
		{Time: time.Now(), Op: history.OpLogin, Email: "a@b"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEvents(&buf, events, FormatTable))
	out := buf.String()
	assert.Contains(t, out, "connect label:db1 dest:admin@10.0.0.5")
	assert.Contains(t, out, "login email:a@b")
	assert.Contains(t, out, "Total: 2 events")

	buf.Reset()
	require.NoError(t, WriteEvents(&buf, nil, FormatJSON))
	assert.JSONEq(t, `[]`, buf.String())
}
