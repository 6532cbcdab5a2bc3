// Package sshlaunch turns a catalog connection into an ssh invocation and
// runs it.
package sshlaunch

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/forest6511/sshctl/pkg/catalog"
)

// remoteShell keeps the session interactive after the initial command.
const remoteShell = "exec $SHELL -l"

// Target returns the host and port ssh should dial for conn.
//
// Login URIs are often stored as ssh://user@host:port or https://host/; only
// the host part is used. A port in the URI applies only when the connection
// still carries the default port, so an explicit note override wins.
func Target(conn catalog.Connection) (string, int) {
	host := strings.TrimSpace(conn.Host)
	port := conn.Port
	if port == 0 {
		port = catalog.DefaultPort
	}

	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err == nil && u.Hostname() != "" {
			host = u.Hostname()
			if p, err := strconv.Atoi(u.Port()); err == nil && port == catalog.DefaultPort {
				port = p
			}
			return host, port
		}
	}

	if i := strings.LastIndexByte(host, '@'); i >= 0 {
		host = host[i+1:]
	}
	return strings.TrimSuffix(host, "/"), port
}

// Destination returns user@host for conn after host normalisation.
func Destination(conn catalog.Connection) string {
	host, _ := Target(conn)
	if conn.Username == "" {
		return host
	}
	return conn.Username + "@" + host
}

// Args builds the ssh argument list for conn, without the program name.
func Args(conn catalog.Connection) []string {
	_, port := Target(conn)

	var args []string
	if key := strOrEmpty(conn.KeyPath); key != "" {
		args = append(args, "-i", ExpandPath(key))
	}
	args = append(args, "-p", strconv.Itoa(port))

	cmd := strings.TrimSpace(strOrEmpty(conn.InitialCmd))
	if cmd != "" {
		args = append(args, "-t")
	}
	// Options end here; vault data after this point is never read as one.
	args = append(args, "--", Destination(conn))
	if cmd != "" {
		args = append(args, cmd+"; "+remoteShell)
	}
	return args
}

// optionLike reports whether ssh would parse s as an option.
func optionLike(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "-")
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
