// Package notes decodes connection settings embedded as JSON in the notes
// field of a vault item.
//
// A note is a JSON object with any subset of the keys label, host,
// username, port, folder, key_path and initial_cmd. Unknown keys are
// ignored. A key that is missing, null or of the wrong type leaves the
// corresponding field nil instead of failing the whole note.
package notes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/vault"
)

// Note keys.
const (
	KeyLabel      = "label"
	KeyHost       = "host"
	KeyUsername   = "username"
	KeyPort       = "port"
	KeyFolder     = "folder"
	KeyKeyPath    = "key_path"
	KeyInitialCmd = "initial_cmd"
)

// Port bounds.
const (
	MinPort = 1
	MaxPort = 65535
)

// Errors
var (
	ErrEmptyNotes = errors.New("notes: notes are empty")
	ErrNotObject  = errors.New("notes: notes are not a JSON object")
)

// Config holds the optional overrides found in a note. Nil means absent.
type Config struct {
	Label      *string `json:"label,omitempty" yaml:"label,omitempty"`
	Host       *string `json:"host,omitempty" yaml:"host,omitempty"`
	Username   *string `json:"username,omitempty" yaml:"username,omitempty"`
	Port       *int    `json:"port,omitempty" yaml:"port,omitempty"`
	Folder     *string `json:"folder,omitempty" yaml:"folder,omitempty"`
	KeyPath    *string `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	InitialCmd *string `json:"initial_cmd,omitempty" yaml:"initial_cmd,omitempty"`
}

// IsEmpty reports whether no field is set.
func (c *Config) IsEmpty() bool {
	return c == nil || (c.Label == nil && c.Host == nil && c.Username == nil && c.Port == nil &&
		c.Folder == nil && c.KeyPath == nil && c.InitialCmd == nil)
}

// Parse decodes note text. It fails only when the text is empty or is not
// a JSON object.
func Parse(text string) (*Config, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyNotes
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil || raw == nil {
		return nil, ErrNotObject
	}

	return &Config{
		Label:      stringField(raw, KeyLabel),
		Host:       stringField(raw, KeyHost),
		Username:   stringField(raw, KeyUsername),
		Port:       portField(raw, KeyPort),
		Folder:     stringField(raw, KeyFolder),
		KeyPath:    stringField(raw, KeyKeyPath),
		InitialCmd: stringField(raw, KeyInitialCmd),
	}, nil
}

func stringField(raw map[string]json.RawMessage, key string) *string {
	data, ok := raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

// portField accepts a JSON integer or a numeric string.
func portField(raw map[string]json.RawMessage, key string) *int {
	data, ok := raw[key]
	if !ok {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}

	v, err := strconv.Atoi(n.String())
	if err != nil || v < MinPort || v > MaxPort {
		return nil
	}
	return &v
}

// Decoder turns vault items into note configs.
type Decoder struct {
	logger *log.Logger
}

// NewDecoder returns a Decoder logging to logger.
func NewDecoder(logger *log.Logger) *Decoder {
	return &Decoder{logger: logging.OrDefault(logger)}
}

// Decode returns the config embedded in the item's notes, or nil when the
// notes are empty or not a JSON object. A non-JSON note is a normal vault
// item, so this is logged and never treated as an error.
func (d *Decoder) Decode(item *vault.Item) *Config {
	if item == nil {
		return nil
	}
	cfg, err := Parse(item.NoteText())
	switch {
	case errors.Is(err, ErrEmptyNotes):
		d.logger.Debug("Item has no notes", "item", item.Name)
		return nil
	case err != nil:
		d.logger.Warn("Ignoring notes that are not a JSON object", "item", item.Name)
		return nil
	}
	return cfg
}

// String renders the config for debugging. Values are shown as-is; a note
// never carries secrets.
func (c *Config) String() string {
	if c == nil {
		return "<nil>"
	}
	var parts []string
	add := func(k string, v *string) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s=%q", k, *v))
		}
	}
	add(KeyLabel, c.Label)
	add(KeyHost, c.Host)
	add(KeyUsername, c.Username)
	if c.Port != nil {
		parts = append(parts, fmt.Sprintf("%s=%d", KeyPort, *c.Port))
	}
	add(KeyFolder, c.Folder)
	add(KeyKeyPath, c.KeyPath)
	add(KeyInitialCmd, c.InitialCmd)
	return "{" + strings.Join(parts, " ") + "}"
}
