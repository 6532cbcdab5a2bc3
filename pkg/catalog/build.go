package catalog

import (
	"github.com/charmbracelet/log"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/notes"
	"github.com/forest6511/sshctl/pkg/vault"
)

// NoteDecoder extracts overrides from an item's notes.
type NoteDecoder interface {
	Decode(item *vault.Item) *notes.Config
}

// Builder maps vault items to connections.
type Builder struct {
	decoder NoteDecoder
	logger  *log.Logger
}

// NewBuilder returns a Builder. A nil decoder disables note overrides.
func NewBuilder(decoder NoteDecoder, logger *log.Logger) *Builder {
	return &Builder{decoder: decoder, logger: logging.OrDefault(logger)}
}

// Build converts items in order. Items without a login username or a
// first login URI are skipped; most vault items are not SSH targets.
// Repeated labels are kept.
func (b *Builder) Build(items []vault.Item) []Connection {
	conns := make([]Connection, 0, len(items))
	for i := range items {
		conn, ok := b.buildOne(&items[i])
		if !ok {
			continue
		}
		conns = append(conns, conn)
	}
	b.logger.Debug("Built connection catalog", "items", len(items), "connections", len(conns))
	return conns
}

func (b *Builder) buildOne(item *vault.Item) (Connection, bool) {
	username := item.Username()
	host := item.PrimaryURI()
	if username == "" || host == "" {
		b.logger.Debug("Skipping item without login username or URI", "item", item.Name)
		return Connection{}, false
	}

	label := item.Name
	if label == "" {
		label = username
	}

	conn := Connection{
		Label:    label,
		Host:     host,
		Username: username,
		Port:     DefaultPort,
		Folder:   DefaultFolder,
	}

	if b.decoder != nil {
		applyOverrides(&conn, b.decoder.Decode(item))
	}

	if !conn.Valid() {
		b.logger.Debug("Skipping item with incomplete connection", "item", item.Name)
		return Connection{}, false
	}
	return conn, true
}

// applyOverrides copies set, non-empty note values onto conn.
func applyOverrides(conn *Connection, cfg *notes.Config) {
	if cfg == nil {
		return
	}
	setString(&conn.Label, cfg.Label)
	setString(&conn.Host, cfg.Host)
	setString(&conn.Username, cfg.Username)
	setString(&conn.Folder, cfg.Folder)
	if cfg.Port != nil {
		conn.Port = *cfg.Port
	}
	if cfg.KeyPath != nil && *cfg.KeyPath != "" {
		v := *cfg.KeyPath
		conn.KeyPath = &v
	}
	if cfg.InitialCmd != nil && *cfg.InitialCmd != "" {
		v := *cfg.InitialCmd
		conn.InitialCmd = &v
	}
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// Build converts items using a default note decoder.
func Build(items []vault.Item) []Connection {
	return NewBuilder(notes.NewDecoder(nil), nil).Build(items)
}
