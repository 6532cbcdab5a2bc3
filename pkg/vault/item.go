package vault

// Bitwarden item types.
const (
	ItemTypeLogin      = 1
	ItemTypeSecureNote = 2
	ItemTypeCard       = 3
	ItemTypeIdentity   = 4
)

// Folder is a named grouping of vault items.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Item is a vault item as returned by `bw get item` / `bw list items`.
// It is only held for the duration of a fetch and is never persisted.
type Item struct {
	ID         string `json:"id"`
	Type       int    `json:"type"`
	Name       string `json:"name"`
	FolderID   string `json:"folderId"`
	Notes      string `json:"notes"`
	NotesPlain string `json:"notesPlain"`
	Login      *Login `json:"login"`
}

// Login is the login sub-record of an Item.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
	URIs     []URI  `json:"uris"`
}

// URI is a single login URI entry.
type URI struct {
	URI string `json:"uri"`
}

// Username returns the login username, or "" when the item has no login.
func (it *Item) Username() string {
	if it == nil || it.Login == nil {
		return ""
	}
	return it.Login.Username
}

// PrimaryURI returns the first login URI, or "" when there is none.
func (it *Item) PrimaryURI() string {
	if it == nil || it.Login == nil || len(it.Login.URIs) == 0 {
		return ""
	}
	return it.Login.URIs[0].URI
}

// NoteText returns the notes, preferring rich notes over plain notes.
func (it *Item) NoteText() string {
	if it == nil {
		return ""
	}
	if it.Notes != "" {
		return it.Notes
	}
	return it.NotesPlain
}
