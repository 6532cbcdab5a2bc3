package catalog

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/vault"
)

// DefaultFolderName is the vault folder holding SSH connections.
const DefaultFolderName = "SSH"

// Errors
var (
	ErrNotUnlocked    = errors.New("catalog: vault is not unlocked")
	ErrFolderNotFound = errors.New("catalog: vault folder not found")
)

// Browser is the subset of vault.Browser used to load connections.
type Browser interface {
	FolderItems(ctx context.Context, name string) ([]vault.Item, error)
}

// Loader fetches the connection list from the configured vault folder.
type Loader struct {
	browser Browser
	builder *Builder
	folder  string
	logger  *log.Logger
}

// NewLoader returns a Loader reading folder. An empty folder means "SSH".
func NewLoader(browser Browser, builder *Builder, folder string, logger *log.Logger) *Loader {
	if folder == "" {
		folder = DefaultFolderName
	}
	return &Loader{
		browser: browser,
		builder: builder,
		folder:  folder,
		logger:  logging.OrDefault(logger),
	}
}

// Folder returns the vault folder name the loader reads.
func (l *Loader) Folder() string { return l.folder }

// Load returns the connections in vault order. A missing folder is a
// configuration error and is reported as ErrFolderNotFound so it is not
// mistaken for an empty folder. Failures while listing items are logged by
// the browser and yield an empty list.
func (l *Loader) Load(ctx context.Context) ([]Connection, error) {
	items, err := l.browser.FolderItems(ctx, l.folder)
	switch {
	case errors.Is(err, vault.ErrNotUnlocked):
		return nil, ErrNotUnlocked
	case errors.Is(err, vault.ErrNoFolder):
		l.logger.Error("Bitwarden folder not found", "folder", l.folder)
		return nil, ErrFolderNotFound
	case err != nil:
		return nil, err
	}
	return l.builder.Build(items), nil
}
