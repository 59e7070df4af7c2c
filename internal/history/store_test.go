package history

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"clipd/internal/clip"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func textItem(id, text string, at time.Time) *clip.Item {
	p := clip.Payload{Text: text}
	return &clip.Item{
		ID:          id,
		Kind:        clip.KindText,
		ClearText:   text,
		Preview:     text,
		Fingerprint: p.Fingerprint(),
		CreatedAt:   at,
	}
}

func TestSaveAndGetItem(t *testing.T) {
	s := openTestStore(t, Options{})

	it := textItem("item-1", "hello", time.Now())
	it.SourceApp = "com.apple.Notes"
	if err := s.SaveItem(it); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}

	got, err := s.GetItem("item-1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.ClearText != "hello" || got.Kind != clip.KindText {
		t.Errorf("got %q kind %s", got.ClearText, got.Kind)
	}
	if got.SourceApp != "com.apple.Notes" {
		t.Errorf("SourceApp = %q", got.SourceApp)
	}
	if got.Encrypted() {
		t.Error("clear item reported encrypted")
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := openTestStore(t, Options{})
	if _, err := s.GetItem("missing"); !errors.Is(err, clip.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListMostRecentFirst(t *testing.T) {
	s := openTestStore(t, Options{})
	base := time.Now()

	for i := 0; i < 3; i++ {
		it := textItem(fmt.Sprintf("item-%d", i), fmt.Sprintf("text %d", i), base.Add(time.Duration(i)*time.Second))
		if err := s.SaveItem(it); err != nil {
			t.Fatalf("SaveItem failed: %v", err)
		}
	}

	items, err := s.ListItems(Filter{})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d", len(items))
	}
	if items[0].ID != "item-2" || items[2].ID != "item-0" {
		t.Errorf("order = %s, %s, %s", items[0].ID, items[1].ID, items[2].ID)
	}
}

func TestCapEvictsOldestUnpinned(t *testing.T) {
	s := openTestStore(t, Options{Cap: 5})
	base := time.Now().Add(-time.Hour)

	// One pinned item, older than everything else.
	pinned := textItem("pinned", "keep me", base)
	pinned.Pinned = true
	at := base
	pinned.PinnedAt = &at
	if err := s.SaveItem(pinned); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}

	// N+5 unpinned inserts against a cap of N=5.
	for i := 0; i < 10; i++ {
		it := textItem(fmt.Sprintf("item-%d", i), fmt.Sprintf("text %d", i), base.Add(time.Duration(i+1)*time.Minute))
		if err := s.SaveItem(it); err != nil {
			t.Fatalf("SaveItem failed: %v", err)
		}
	}

	items, err := s.ListItems(Filter{})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	// 5 unpinned survivors plus the exempt pinned item.
	if len(items) != 6 {
		t.Fatalf("len = %d, want 6", len(items))
	}

	byID := map[string]bool{}
	for _, it := range items {
		byID[it.ID] = true
	}
	if !byID["pinned"] {
		t.Error("pinned item was evicted")
	}
	// Exactly the 5 oldest unpinned items are gone.
	for i := 0; i < 5; i++ {
		if byID[fmt.Sprintf("item-%d", i)] {
			t.Errorf("item-%d should have been evicted", i)
		}
	}
	for i := 5; i < 10; i++ {
		if !byID[fmt.Sprintf("item-%d", i)] {
			t.Errorf("item-%d missing", i)
		}
	}
}

func TestPinFavoriteFilters(t *testing.T) {
	s := openTestStore(t, Options{})
	now := time.Now()

	a := textItem("a", "alpha", now)
	b := textItem("b", "beta", now.Add(time.Second))
	for _, it := range []*clip.Item{a, b} {
		if err := s.SaveItem(it); err != nil {
			t.Fatalf("SaveItem failed: %v", err)
		}
	}

	if err := s.SetPinned("a", true, now); err != nil {
		t.Fatalf("SetPinned failed: %v", err)
	}
	if err := s.SetFavorite("b", true); err != nil {
		t.Fatalf("SetFavorite failed: %v", err)
	}

	yes := true
	pinned, err := s.ListItems(Filter{Pinned: &yes})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(pinned) != 1 || pinned[0].ID != "a" {
		t.Errorf("pinned filter returned %d items", len(pinned))
	}
	if pinned[0].PinnedAt == nil {
		t.Error("PinnedAt not set")
	}

	fav, err := s.ListItems(Filter{Favorite: &yes})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(fav) != 1 || fav[0].ID != "b" {
		t.Errorf("favorite filter returned %d items", len(fav))
	}

	// Unpin clears pinned_at.
	if err := s.SetPinned("a", false, now); err != nil {
		t.Fatalf("SetPinned failed: %v", err)
	}
	got, _ := s.GetItem("a")
	if got.PinnedAt != nil {
		t.Error("PinnedAt survived unpin")
	}
}

func TestKindAndDateFilters(t *testing.T) {
	s := openTestStore(t, Options{})
	base := time.Now()

	old := textItem("old", "ancient", base.Add(-48*time.Hour))
	fresh := textItem("fresh", "https://x.com", base)
	fresh.Kind = clip.KindURL
	for _, it := range []*clip.Item{old, fresh} {
		if err := s.SaveItem(it); err != nil {
			t.Fatalf("SaveItem failed: %v", err)
		}
	}

	urls, err := s.ListItems(Filter{Kinds: []clip.Kind{clip.KindURL}})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(urls) != 1 || urls[0].ID != "fresh" {
		t.Errorf("kind filter returned %d items", len(urls))
	}

	from := base.Add(-time.Hour)
	recent, err := s.ListItems(Filter{From: &from})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "fresh" {
		t.Errorf("date filter returned %d items", len(recent))
	}
}

func TestSearchSubstringAndFuzzy(t *testing.T) {
	s := openTestStore(t, Options{})
	now := time.Now()
	for i, text := range []string{"deployment checklist", "grocery list", "deploy script"} {
		if err := s.SaveItem(textItem(fmt.Sprintf("i%d", i), text, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("SaveItem failed: %v", err)
		}
	}

	sub, err := s.ListItems(Filter{Query: "deploy"})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(sub) != 2 {
		t.Errorf("substring search returned %d items", len(sub))
	}

	fz, err := s.ListItems(Filter{Query: "dplymnt", Fuzzy: true})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(fz) != 1 || fz[0].Preview != "deployment checklist" {
		t.Errorf("fuzzy search returned %d items", len(fz))
	}
}

func TestFoldersCRUDAndDetach(t *testing.T) {
	s := openTestStore(t, Options{})
	now := time.Now()

	f := &clip.Folder{ID: "f1", Name: "Work", ColorTag: "blue", CreatedAt: now}
	if err := s.CreateFolder(f); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	it := textItem("item-1", "hello", now)
	if err := s.SaveItem(it); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}
	fid := "f1"
	if err := s.AssignFolder("item-1", &fid); err != nil {
		t.Fatalf("AssignFolder failed: %v", err)
	}

	inFolder, err := s.ListItems(Filter{FolderID: &fid})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(inFolder) != 1 {
		t.Fatalf("folder filter returned %d items", len(inFolder))
	}

	if err := s.UpdateFolder("f1", "Work Stuff", "red"); err != nil {
		t.Fatalf("UpdateFolder failed: %v", err)
	}
	got, err := s.GetFolder("f1")
	if err != nil {
		t.Fatalf("GetFolder failed: %v", err)
	}
	if got.Name != "Work Stuff" || got.ColorTag != "red" {
		t.Errorf("folder = %+v", got)
	}

	// Deleting the folder detaches, never deletes, its items.
	if err := s.DeleteFolder("f1"); err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}
	item, err := s.GetItem("item-1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.FolderID != nil {
		t.Error("item still references deleted folder")
	}
}

func TestAssignFolderValidatesTarget(t *testing.T) {
	s := openTestStore(t, Options{})
	if err := s.SaveItem(textItem("item-1", "x", time.Now())); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}
	bogus := "no-such-folder"
	if err := s.AssignFolder("item-1", &bogus); !errors.Is(err, clip.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFolderDepthBound(t *testing.T) {
	s := openTestStore(t, Options{})
	now := time.Now()

	var parent *string
	for i := 0; i < clip.MaxFolderDepth; i++ {
		id := fmt.Sprintf("f%d", i)
		err := s.CreateFolder(&clip.Folder{ID: id, Name: id, ParentID: parent, CreatedAt: now})
		if i < clip.MaxFolderDepth-1 {
			if err != nil {
				t.Fatalf("CreateFolder depth %d failed: %v", i, err)
			}
		} else if err == nil {
			t.Fatalf("folder at depth %d accepted; want rejection", i)
		}
		p := id
		parent = &p
	}
}

func TestClearAll(t *testing.T) {
	s := openTestStore(t, Options{})
	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.SaveItem(textItem(fmt.Sprintf("i%d", i), "x", now)); err != nil {
			t.Fatalf("SaveItem failed: %v", err)
		}
	}
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	n, err := s.CountItems()
	if err != nil {
		t.Fatalf("CountItems failed: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d after clear", n)
	}
}

func TestDuplicateIDFailsWithStorageError(t *testing.T) {
	s := openTestStore(t, Options{})
	it := textItem("dup", "x", time.Now())
	if err := s.SaveItem(it); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}
	if err := s.SaveItem(it); !errors.Is(err, clip.ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	// The failed insert rolled back: still exactly one row.
	n, _ := s.CountItems()
	if n != 1 {
		t.Errorf("count = %d", n)
	}
}

// xorDecrypter is a stand-in gateway: "decryption" is a byte flip, and
// any input starting with 0xff fails verification.
type xorDecrypter struct{}

func (xorDecrypter) Enabled() bool { return true }

func (xorDecrypter) Decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) > 0 && sealed[0] == 0xff {
		return nil, clip.ErrIntegrity
	}
	out := make([]byte, len(sealed))
	for i, b := range sealed {
		out[i] = b ^ 0x5a
	}
	return out, nil
}

func sealXOR(s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = s[i] ^ 0x5a
	}
	return out
}

func TestSealedPreviewOpenedForListAndSearch(t *testing.T) {
	s := openTestStore(t, Options{Decrypter: xorDecrypter{}})
	now := time.Now()

	enc := &clip.Item{
		ID:            "enc-1",
		Kind:          clip.KindText,
		CipherText:    []byte{1, 2, 3},
		CipherPreview: sealXOR("secret note"),
		Fingerprint:   clip.Payload{Text: "secret note"}.Fingerprint(),
		CreatedAt:     now,
	}
	if err := s.SaveItem(enc); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}

	items, err := s.ListItems(Filter{Query: "secret"})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 1 || items[0].Preview != "secret note" {
		t.Fatalf("sealed preview not opened: %+v", items)
	}
}

func TestCorruptPreviewMarksItemUnavailable(t *testing.T) {
	s := openTestStore(t, Options{Decrypter: xorDecrypter{}})

	bad := &clip.Item{
		ID:            "bad-1",
		Kind:          clip.KindText,
		CipherText:    []byte{1},
		CipherPreview: []byte{0xff, 0x00},
		Fingerprint:   "fp",
		CreatedAt:     time.Now(),
	}
	if err := s.SaveItem(bad); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}

	items, err := s.ListItems(Filter{})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 1 || !items[0].Unavailable {
		t.Fatalf("corrupt item not marked unavailable: %+v", items)
	}
}
