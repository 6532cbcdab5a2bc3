package vault

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/bwcli"
)

type fakeSession struct {
	unlocked bool
	checks   int
}

func (s *fakeSession) IsUnlocked(context.Context) bool {
	s.checks++
	return s.unlocked
}
func (s *fakeSession) Env() bwcli.Env                  { return bwcli.Env{Session: "tok"} }

// fakeRunner answers bw invocations from canned JSON keyed by the joined
// argument list.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (r *fakeRunner) RunJSON(_ context.Context, env bwcli.Env, out any, args ...string) error {
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)
	if env.Session != "tok" {
		return errors.New("missing session")
	}
	if err, ok := r.errs[key]; ok {
		return err
	}
	data, ok := r.outputs[key]
	if !ok {
		return bwcli.ErrMalformedOutput
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return bwcli.ErrMalformedOutput
	}
	return nil
}

const foldersJSON = `[
	{"id":"f-ssh","name":"SSH"},
	{"id":"f-lower","name":"ssh-keys"},
	{"id":"f-work","name":"Work"}
]`

func newTestBrowser(r *fakeRunner, unlocked bool) *Browser {
	return NewBrowser(r, &fakeSession{unlocked: unlocked}, logging.Discard())
}

func TestResolveFolder_ExactCaseSensitiveMatch(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"list folders": foldersJSON}}
	b := newTestBrowser(r, true)

	id, ok := b.ResolveFolder(context.Background(), "SSH")
	require.True(t, ok)
	assert.Equal(t, "f-ssh", id)

	_, ok = b.ResolveFolder(context.Background(), "ssh")
	assert.False(t, ok, "lowercase name must not match")

	_, ok = b.ResolveFolder(context.Background(), "SS")
	assert.False(t, ok)
}

func TestResolveFolder_NormalisesUnicode(t *testing.T) {
	// "Café" stored decomposed, requested composed.
	r := &fakeRunner{outputs: map[string]string{"list folders": `[{"id":"f1","name":"Cafe\u0301"}]`}}
	b := newTestBrowser(r, true)

	id, ok := b.ResolveFolder(context.Background(), "Caf\u00e9")
	require.True(t, ok)
	assert.Equal(t, "f1", id)
}

func TestResolveFolder_AbsentWhenSSHFolderMissing(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"list folders": `[{"id":"f-work","name":"Work"}]`}}
	b := newTestBrowser(r, true)

	_, ok := b.ResolveFolder(context.Background(), "SSH")
	assert.False(t, ok)
}

func TestBrowser_LockedReturnsNothingWithoutSpawning(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"list folders": foldersJSON}}
	b := newTestBrowser(r, false)
	ctx := context.Background()

	assert.Nil(t, b.ListFolders(ctx))
	_, ok := b.ResolveFolder(ctx, "SSH")
	assert.False(t, ok)
	assert.Nil(t, b.ListItems(ctx, "f-ssh"))
	item, ok := b.GetItem(ctx, "db1")
	assert.Nil(t, item)
	assert.False(t, ok)
	_, err := b.GetItemInFolder(ctx, "db1", "f-ssh")
	assert.ErrorIs(t, err, ErrNotUnlocked)

	assert.Empty(t, r.calls)
}

func TestListItems_PreservesOrderAndFiltersFolder(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"list items --folderid f-ssh": `[
			{"id":"3","name":"web","folderId":"f-ssh"},
			{"id":"1","name":"db","folderId":"f-ssh"},
			{"id":"9","name":"stray","folderId":"f-work"},
			{"id":"2","name":"cache","folderId":"f-ssh"}
		]`,
	}}
	b := newTestBrowser(r, true)

	items := b.ListItems(context.Background(), "f-ssh")
	require.Len(t, items, 3)
	assert.Equal(t, "3", items[0].ID)
	assert.Equal(t, "1", items[1].ID)
	assert.Equal(t, "2", items[2].ID)
}

func TestListItems_FailureDegradesToEmpty(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{
		"list items --folderid f-ssh": &bwcli.CommandError{Args: []string{"list", "items"}, ExitCode: 1},
	}}
	b := newTestBrowser(r, true)

	assert.Empty(t, b.ListItems(context.Background(), "f-ssh"))
}

func TestGetItem(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"get item db1": `{"id":"i1","name":"db1","folderId":"f-ssh","notes":"{}",
			"login":{"username":"admin","password":"hunter2","uris":[{"uri":"10.0.0.5"}]}}`,
		"get item empty": `{}`,
	}}
	b := newTestBrowser(r, true)

	item, ok := b.GetItem(context.Background(), "db1")
	require.True(t, ok)
	assert.Equal(t, "admin", item.Username())
	assert.Equal(t, "10.0.0.5", item.PrimaryURI())

	_, ok = b.GetItem(context.Background(), "empty")
	assert.False(t, ok)

	_, ok = b.GetItem(context.Background(), "missing")
	assert.False(t, ok)
}

func TestGetItemInFolder(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"get item db1":   `{"id":"i1","name":"db1","folderId":"f-ssh"}`,
		"get item other": `{"id":"i2","name":"other","folderId":"f-work"}`,
	}}
	b := newTestBrowser(r, true)
	ctx := context.Background()

	item, err := b.GetItemInFolder(ctx, "db1", "f-ssh")
	require.NoError(t, err)
	assert.Equal(t, "i1", item.ID)

	_, err = b.GetItemInFolder(ctx, "other", "f-ssh")
	assert.ErrorIs(t, err, ErrWrongFolder)

	_, err = b.GetItemInFolder(ctx, "missing", "f-ssh")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestItemAccessors(t *testing.T) {
	var nilItem *Item
	assert.Empty(t, nilItem.Username())
	assert.Empty(t, nilItem.PrimaryURI())
	assert.Empty(t, nilItem.NoteText())

	it := &Item{Notes: "rich", NotesPlain: "plain"}
	assert.Equal(t, "rich", it.NoteText())
	it.Notes = ""
	assert.Equal(t, "plain", it.NoteText())

	it.Login = &Login{Username: "u"}
	assert.Equal(t, "u", it.Username())
	assert.Empty(t, it.PrimaryURI())
}

func TestFolderItems_ChecksStatusOnce(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"list folders":                foldersJSON,
		"list items --folderid f-ssh": `[{"id":"1","name":"db","folderId":"f-ssh"}]`,
	}}
	session := &fakeSession{unlocked: true}
	b := NewBrowser(r, session, logging.Discard())

	items, err := b.FolderItems(context.Background(), "SSH")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "db", items[0].Name)
	assert.Equal(t, 1, session.checks)
	assert.Equal(t, []string{"list folders", "list items --folderid f-ssh"}, r.calls)
}

func TestFolderItems_Errors(t *testing.T) {
	ctx := context.Background()

	r := &fakeRunner{outputs: map[string]string{"list folders": foldersJSON}}
	_, err := newTestBrowser(r, false).FolderItems(ctx, "SSH")
	assert.ErrorIs(t, err, ErrNotUnlocked)
	assert.Empty(t, r.calls)

	_, err = newTestBrowser(r, true).FolderItems(ctx, "Missing")
	assert.ErrorIs(t, err, ErrNoFolder)

	broken := &fakeRunner{errs: map[string]error{"list folders": bwcli.ErrCommandFailed}}
	_, err = newTestBrowser(broken, true).FolderItems(ctx, "SSH")
	assert.ErrorIs(t, err, ErrNoFolder)
	assert.ErrorIs(t, err, bwcli.ErrCommandFailed)
}

func TestFolderItems_EmptyFolder(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"list folders":                foldersJSON,
		"list items --folderid f-ssh": `[]`,
	}}
	items, err := newTestBrowser(r, true).FolderItems(context.Background(), "SSH")
	require.NoError(t, err)
	assert.Empty(t, items)
}
