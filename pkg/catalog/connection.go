// Package catalog turns vault items into SSH connection records.
package catalog

import "fmt"

// Defaults applied when neither the item nor its notes say otherwise.
const (
	DefaultPort   = 22
	DefaultFolder = "Default"
)

// Connection is a resolved SSH target. It carries no credentials and no
// reference back to the session that produced it.
type Connection struct {
	Label      string  `json:"label" yaml:"label"`
	Host       string  `json:"host" yaml:"host"`
	Username   string  `json:"username" yaml:"username"`
	Port       int     `json:"port" yaml:"port"`
	Folder     string  `json:"folder" yaml:"folder"`
	KeyPath    *string `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	InitialCmd *string `json:"initial_cmd,omitempty" yaml:"initial_cmd,omitempty"`
}

// Valid reports whether the connection has both a host and a username.
func (c Connection) Valid() bool {
	return c.Host != "" && c.Username != ""
}

// Destination returns "user@host" as shown to users.
func (c Connection) Destination() string {
	return c.Username + "@" + c.Host
}

func (c Connection) String() string {
	if c.Port != 0 && c.Port != DefaultPort {
		return fmt.Sprintf("%s (%s:%d)", c.Label, c.Destination(), c.Port)
	}
	return fmt.Sprintf("%s (%s)", c.Label, c.Destination())
}

// Config is the connection list handed to the presentation layer.
type Config struct {
	Connections []Connection `json:"connections" yaml:"connections"`
}
