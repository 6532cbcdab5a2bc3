// Package vault browses folders and items of an unlocked Bitwarden vault
// through the bw CLI.
package vault

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/bwcli"
)

// Errors
var (
	ErrNotUnlocked  = errors.New("vault: vault is not unlocked")
	ErrItemNotFound = errors.New("vault: item not found")
	ErrWrongFolder  = errors.New("vault: item is not in the expected folder")
	ErrNoFolder     = errors.New("vault: folder not found")
)

// Session is the part of the session manager the browser depends on.
type Session interface {
	IsUnlocked(ctx context.Context) bool
	Env() bwcli.Env
}

// Runner executes bw and decodes its JSON output.
type Runner interface {
	RunJSON(ctx context.Context, env bwcli.Env, out any, args ...string) error
}

// Browser lists and fetches vault content. Failures are logged and
// collapse to empty results; calling it while locked is not an error.
type Browser struct {
	runner  Runner
	session Session
	logger  *log.Logger
}

// NewBrowser returns a Browser reading through runner on behalf of session.
func NewBrowser(runner Runner, session Session, logger *log.Logger) *Browser {
	return &Browser{
		runner:  runner,
		session: session,
		logger:  logging.OrDefault(logger),
	}
}

// ListFolders returns all folders, or nil when locked or on failure.
func (b *Browser) ListFolders(ctx context.Context) []Folder {
	if !b.session.IsUnlocked(ctx) {
		return nil
	}
	folders, err := b.listFolders(ctx)
	if err != nil {
		b.logger.Error("Failed to list folders", "error", err)
		return nil
	}
	return folders
}

func (b *Browser) listFolders(ctx context.Context) ([]Folder, error) {
	var folders []Folder
	if err := b.runner.RunJSON(ctx, b.session.Env(), &folders, "list", "folders"); err != nil {
		return nil, err
	}
	return folders, nil
}

// ResolveFolder returns the ID of the folder named exactly name.
// Matching is case-sensitive; both sides are NFC-normalised so that
// composed and decomposed spellings of the same name agree.
func (b *Browser) ResolveFolder(ctx context.Context, name string) (string, bool) {
	if !b.session.IsUnlocked(ctx) {
		return "", false
	}
	id, err := b.resolveFolder(ctx, name)
	return id, err == nil
}

func (b *Browser) resolveFolder(ctx context.Context, name string) (string, error) {
	folders, err := b.listFolders(ctx)
	if err != nil {
		b.logger.Error("Failed to list folders", "error", err)
		return "", errors.Join(ErrNoFolder, err)
	}

	id, ok := matchFolder(folders, name)
	if !ok {
		b.logger.Warn("Folder not found", "folder", name)
		return "", ErrNoFolder
	}
	return id, nil
}

func matchFolder(folders []Folder, name string) (string, bool) {
	want := norm.NFC.String(name)
	for _, f := range folders {
		if f.ID != "" && norm.NFC.String(f.Name) == want {
			return f.ID, true
		}
	}
	return "", false
}

// ListItems returns the items of folderID in vault order.
func (b *Browser) ListItems(ctx context.Context, folderID string) []Item {
	if !b.session.IsUnlocked(ctx) {
		return nil
	}
	return b.listItems(ctx, folderID)
}

func (b *Browser) listItems(ctx context.Context, folderID string) []Item {
	var items []Item
	if err := b.runner.RunJSON(ctx, b.session.Env(), &items, "list", "items", "--folderid", folderID); err != nil {
		b.logger.Error("Failed to list items", "folder_id", folderID, "error", err)
		return nil
	}

	// Older CLI builds ignore --folderid; filter again locally.
	filtered := items[:0]
	for _, it := range items {
		if it.FolderID == folderID {
			filtered = append(filtered, it)
		}
	}
	if dropped := len(items) - len(filtered); dropped > 0 {
		b.logger.Debug("Dropped items outside folder", "folder_id", folderID, "count", dropped)
	}
	return filtered
}

// FolderItems resolves the folder named name and lists its items. The vault
// state is checked once for both bw calls. It returns ErrNotUnlocked or
// ErrNoFolder so callers can tell those apart from an empty folder; a
// failure while listing items yields an empty list.
func (b *Browser) FolderItems(ctx context.Context, name string) ([]Item, error) {
	if !b.session.IsUnlocked(ctx) {
		return nil, ErrNotUnlocked
	}
	folderID, err := b.resolveFolder(ctx, name)
	if err != nil {
		return nil, err
	}
	return b.listItems(ctx, folderID), nil
}

// GetItem fetches a single item by ID or name.
func (b *Browser) GetItem(ctx context.Context, idOrName string) (*Item, bool) {
	if !b.session.IsUnlocked(ctx) {
		return nil, false
	}
	item, err := b.getItem(ctx, idOrName)
	if err != nil {
		b.logger.Error("Failed to get item", "item", idOrName, "error", err)
		return nil, false
	}
	return item, true
}

func (b *Browser) getItem(ctx context.Context, idOrName string) (*Item, error) {
	var item Item
	if err := b.runner.RunJSON(ctx, b.session.Env(), &item, "get", "item", idOrName); err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

// GetItemInFolder fetches an item and verifies it belongs to folderID.
// This guards credential lookups against items of the same name living in
// other folders.
func (b *Browser) GetItemInFolder(ctx context.Context, idOrName, folderID string) (*Item, error) {
	if !b.session.IsUnlocked(ctx) {
		return nil, ErrNotUnlocked
	}
	item, err := b.getItem(ctx, idOrName)
	if err != nil {
		b.logger.Error("Failed to get item", "item", idOrName, "error", err)
		if errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrItemNotFound, err)
	}
	if item.FolderID != folderID {
		b.logger.Warn("Item is in another folder", "item", idOrName, "folder_id", item.FolderID, "expected", folderID)
		return nil, ErrWrongFolder
	}
	return item, nil
}
