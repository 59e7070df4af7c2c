package ipc

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clipd/internal/clip"
	"clipd/internal/engine"
	"clipd/internal/history"
)

// fakeCore records calls and serves canned data.
type fakeCore struct {
	items       []engine.ViewModel
	folders     []clip.Folder
	pasteResult clip.DeliveryResult
	pasteErr    error
	pinned      []string
	deleted     []string
	cleared     bool
	encryption  bool
	enableErr   error
	lastFilter  history.Filter
}

func (f *fakeCore) ListItems(filter history.Filter) ([]engine.ViewModel, error) {
	f.lastFilter = filter
	return f.items, nil
}

func (f *fakeCore) PasteRequested(ctx context.Context, itemID string) (clip.DeliveryResult, error) {
	if f.pasteErr != nil {
		return clip.DeliveryFailed, f.pasteErr
	}
	return f.pasteResult, nil
}

func (f *fakeCore) PinToggled(itemID string) error {
	f.pinned = append(f.pinned, itemID)
	return nil
}

func (f *fakeCore) FavoriteToggled(itemID string) error { return nil }

func (f *fakeCore) FolderAssigned(itemID string, folderID *string) error { return nil }

func (f *fakeCore) DeleteItem(itemID string) error {
	f.deleted = append(f.deleted, itemID)
	return nil
}

func (f *fakeCore) ClearHistory() error {
	f.cleared = true
	return nil
}

func (f *fakeCore) Thumbnail(itemID string) ([]byte, error) {
	if itemID == "missing" {
		return nil, clip.ErrNotFound
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (f *fakeCore) Folders() ([]clip.Folder, error) { return f.folders, nil }

func (f *fakeCore) CreateFolder(name, colorTag string, parentID *string) (*clip.Folder, error) {
	folder := clip.Folder{ID: "f1", Name: name, ColorTag: colorTag, ParentID: parentID, CreatedAt: time.Now()}
	f.folders = append(f.folders, folder)
	return &folder, nil
}

func (f *fakeCore) RenameFolder(id, name, colorTag string) error { return nil }
func (f *fakeCore) DeleteFolder(id string) error                 { return nil }

func (f *fakeCore) EnableEncryption() <-chan error {
	out := make(chan error, 1)
	out <- f.enableErr
	if f.enableErr == nil {
		f.encryption = true
	}
	return out
}

func (f *fakeCore) DisableEncryption()      { f.encryption = false }
func (f *fakeCore) EncryptionEnabled() bool { return f.encryption }
func (f *fakeCore) ItemCount() (int, error) { return len(f.items), nil }

func startServer(t *testing.T, core *fakeCore) (*Server, *Client) {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "c.sock")
	handler := NewCommandHandler(core, "test", func() bool { return true })
	srv := NewServer(ServerConfig{SocketPath: socket, Version: "test"}, handler, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	client := NewClient(DefaultClientConfig(socket))
	require.NoError(t, client.Connect())
	t.Cleanup(func() { client.Close() })

	return srv, client
}

func TestHeaderRoundTrip(t *testing.T) {
	msg := NewMessage(MsgListItems, 7, []byte(`{"limit":5}`))

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, MsgListItems, got.Header.Type)
	require.Equal(t, uint32(7), got.Header.RequestID)
	require.Equal(t, msg.Payload, got.Payload)
}

func TestReadMessageRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, HeaderSize))

	_, err := ReadMessage(&buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "magic")
}

func TestStatusOverSocket(t *testing.T) {
	core := &fakeCore{items: []engine.ViewModel{{ID: "a"}, {ID: "b"}}}
	_, client := startServer(t, core)

	status, err := client.Status()
	require.NoError(t, err)
	require.Equal(t, "test", status.Version)
	require.Equal(t, 2, status.ItemCount)
	require.True(t, status.AccessGranted)
	require.False(t, status.EncryptionEnabled)
}

func TestListItemsCarriesFilter(t *testing.T) {
	core := &fakeCore{items: []engine.ViewModel{{ID: "x", Kind: "url", Preview: "https://go.dev"}}}
	_, client := startServer(t, core)

	pinned := true
	items, err := client.ListItems(&ListItemsRequest{
		Kinds:  []string{"url"},
		Pinned: &pinned,
		Query:  "go",
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "url", items[0].Kind)

	require.Equal(t, []clip.Kind{clip.KindURL}, core.lastFilter.Kinds)
	require.NotNil(t, core.lastFilter.Pinned)
	require.True(t, *core.lastFilter.Pinned)
	require.Equal(t, "go", core.lastFilter.Query)
	require.Equal(t, 10, core.lastFilter.Limit)
}

func TestListItemsRejectsUnknownKind(t *testing.T) {
	_, client := startServer(t, &fakeCore{})

	_, err := client.ListItems(&ListItemsRequest{Kinds: []string{"video"}})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, ErrInvalidRequest, remote.Code)
}

func TestPasteResultAndErrorMapping(t *testing.T) {
	core := &fakeCore{pasteResult: clip.DeliverySuccess}
	_, client := startServer(t, core)

	result, err := client.Paste("item-1")
	require.NoError(t, err)
	require.Equal(t, "success", result)

	core.pasteErr = clip.ErrNotFound
	_, err = client.Paste("gone")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, ErrNotFound, remote.Code)

	core.pasteErr = clip.ErrIntegrity
	_, err = client.Paste("corrupt")
	require.ErrorAs(t, err, &remote)
	require.Equal(t, ErrIntegrity, remote.Code)
}

func TestMutationCommands(t *testing.T) {
	core := &fakeCore{}
	_, client := startServer(t, core)

	require.NoError(t, client.TogglePin("p1"))
	require.NoError(t, client.DeleteItem("d1"))
	require.NoError(t, client.ClearHistory())

	require.Equal(t, []string{"p1"}, core.pinned)
	require.Equal(t, []string{"d1"}, core.deleted)
	require.True(t, core.cleared)
}

func TestFolderCommands(t *testing.T) {
	core := &fakeCore{}
	_, client := startServer(t, core)

	created, err := client.CreateFolder("Work", "blue", nil)
	require.NoError(t, err)
	require.Equal(t, "Work", created.Name)

	folders, err := client.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 1)
	require.Equal(t, created.ID, folders[0].ID)

	require.NoError(t, client.UpdateFolder(created.ID, "Personal", "red"))
	require.NoError(t, client.DeleteFolder(created.ID))
}

func TestEncryptionControl(t *testing.T) {
	core := &fakeCore{}
	_, client := startServer(t, core)

	resp, err := client.EnableEncryption()
	require.NoError(t, err)
	require.True(t, resp.Enabled)
	require.True(t, core.encryption)

	require.NoError(t, client.DisableEncryption())
	require.False(t, core.encryption)
}

func TestEncryptionEnableFailureSurfaces(t *testing.T) {
	core := &fakeCore{enableErr: errors.New("credential store unavailable")}
	_, client := startServer(t, core)

	resp, err := client.EnableEncryption()
	require.NoError(t, err)
	require.False(t, resp.Enabled)
	require.Contains(t, resp.Error, "credential store")
}

func TestThumbnailFetchAndMiss(t *testing.T) {
	_, client := startServer(t, &fakeCore{})

	png, err := client.Thumbnail("img-1")
	require.NoError(t, err)
	require.NotEmpty(t, png)

	_, err = client.Thumbnail("missing")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, ErrNotFound, remote.Code)
}

func TestEventStreamReachesSubscriber(t *testing.T) {
	srv, client := startServer(t, &fakeCore{})

	require.NoError(t, client.Subscribe())

	vm := engine.ViewModel{ID: "new-item", Kind: "text", Preview: "hello"}
	srv.Broadcast(engine.Event{Type: engine.EventItemAdded, Item: &vm})

	select {
	case ev := <-client.Events():
		require.Equal(t, engine.EventItemAdded, ev.Type)
		require.NotNil(t, ev.Item)
		require.Equal(t, "new-item", ev.Item.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived")
	}
}

func TestUnsubscribedClientGetsNoEvents(t *testing.T) {
	srv, client := startServer(t, &fakeCore{})

	srv.Broadcast(engine.Event{Type: engine.EventHistoryCleared})

	select {
	case ev := <-client.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
