// Package cli holds the pieces shared by the sshctl commands and the
// interactive shell: connection selection, output formatting and the
// REPL.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forest6511/sshctl/pkg/catalog"
)

// Errors
var (
	ErrNoMatch        = errors.New("cli: no connection matches")
	ErrAmbiguous      = errors.New("cli: selector matches more than one connection")
	ErrInvalidPattern = errors.New("cli: invalid pattern")
)

// IsPattern reports whether s contains glob characters.
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// MatchLabels returns the indexes of conns whose label matches pattern.
// Without glob characters the label must match exactly.
func MatchLabels(pattern string, conns []catalog.Connection) ([]int, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}

	glob := IsPattern(pattern)
	var matches []int
	for i, c := range conns {
		if !glob {
			if c.Label == pattern {
				matches = append(matches, i)
			}
			continue
		}
		ok, err := filepath.Match(pattern, c.Label)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, i)
		}
	}
	return matches, nil
}

// Select resolves selector against conns. A number picks the connection at
// that 1-based position as shown by list; anything else is a label or
// label glob.
func Select(selector string, conns []catalog.Connection) ([]catalog.Connection, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrNoMatch)
	}

	if n, err := strconv.Atoi(selector); err == nil {
		if n >= 1 && n <= len(conns) {
			return []catalog.Connection{conns[n-1]}, nil
		}
		// A label may legitimately be numeric.
	}

	idx, err := MatchLabels(selector, conns)
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoMatch, selector)
	}
	out := make([]catalog.Connection, len(idx))
	for i, j := range idx {
		out[i] = conns[j]
	}
	return out, nil
}

// SelectOne is Select for callers that need exactly one connection.
func SelectOne(selector string, conns []catalog.Connection) (catalog.Connection, error) {
	matches, err := Select(selector, conns)
	if err != nil {
		return catalog.Connection{}, err
	}
	if len(matches) > 1 {
		labels := make([]string, len(matches))
		for i, m := range matches {
			labels[i] = m.Label
		}
		return catalog.Connection{}, fmt.Errorf("%w %q: %s", ErrAmbiguous, selector, strings.Join(labels, ", "))
	}
	return matches[0], nil
}

// FilterFolder returns the connections whose folder equals folder.
// An empty folder returns conns unchanged.
func FilterFolder(conns []catalog.Connection, folder string) []catalog.Connection {
	if folder == "" {
		return conns
	}
	var out []catalog.Connection
	for _, c := range conns {
		if c.Folder == folder {
			out = append(out, c)
		}
	}
	return out
}
