package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/forest6511/sshctl/pkg/catalog"
	"github.com/forest6511/sshctl/pkg/history"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an unsupported -o value.
var ErrUnknownFormat = errors.New("cli: unknown output format")

// Formats lists the accepted -o values.
func Formats() []string {
	return []string{FormatTable, FormatJSON, FormatYAML}
}

// WriteConnections renders conns in format. Table rows are numbered so the
// number can be passed to connect.
func WriteConnections(w io.Writer, conns []catalog.Connection, format string) error {
	switch format {
	case FormatTable, "":
		if len(conns) == 0 {
			_, err := fmt.Fprintln(w, "No connections found")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tLABEL\tDESTINATION\tPORT\tFOLDER")
		for i, c := range conns {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1, c.Label, c.Destination(), c.Port, c.Folder)
		}
		return tw.Flush()
	case FormatJSON:
		return writeJSON(w, catalog.Config{Connections: nonNil(conns)})
	case FormatYAML:
		return writeYAML(w, catalog.Config{Connections: nonNil(conns)})
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// WriteConnection renders a single connection with all of its fields.
func WriteConnection(w io.Writer, c catalog.Connection, format string) error {
	switch format {
	case FormatTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		rows := [][2]string{
			{"Label", c.Label},
			{"Host", c.Host},
			{"Username", c.Username},
			{"Port", strconv.Itoa(c.Port)},
			{"Folder", c.Folder},
		}
		if c.KeyPath != nil {
			rows = append(rows, [2]string{"Key", *c.KeyPath})
		}
		if c.InitialCmd != nil {
			rows = append(rows, [2]string{"Initial command", *c.InitialCmd})
		}
		for _, r := range rows {
			fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
		}
		return tw.Flush()
	case FormatJSON:
		return writeJSON(w, c)
	case FormatYAML:
		return writeYAML(w, c)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// WriteEvents renders history events one per line, newest first.
func WriteEvents(w io.Writer, events []history.Event, format string) error {
	switch format {
	case FormatTable, "":
		if len(events) == 0 {
			_, err := fmt.Fprintln(w, "No history events found")
			return err
		}
		for _, ev := range events {
			line := fmt.Sprintf("%s %s", ev.Time.Local().Format("2006-01-02 15:04:05"), ev.Op)
			if ev.Email != "" {
				line += " email:" + ev.Email
			}
			if ev.Label != "" {
				line += " label:" + ev.Label
			}
			if ev.Host != "" {
				line += fmt.Sprintf(" dest:%s@%s", ev.Username, ev.Host)
			}
			if ev.Detail != "" {
				line += " detail:" + ev.Detail
			}
			fmt.Fprintln(w, line)
		}
		_, err := fmt.Fprintf(w, "\nTotal: %d events\n", len(events))
		return err
	case FormatJSON:
		if events == nil {
			events = []history.Event{}
		}
		return writeJSON(w, events)
	case FormatYAML:
		return writeYAML(w, events)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

func nonNil(conns []catalog.Connection) []catalog.Connection {
	if conns == nil {
		return []catalog.Connection{}
	}
	return conns
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

// WriteValue renders v as JSON or YAML.
func WriteValue(w io.Writer, v any, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, v)
	case FormatYAML:
		return writeYAML(w, v)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}
