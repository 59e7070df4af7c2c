// Package history is the persistent, queryable store of classified
// (optionally encrypted) clipboard items and folders.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"clipd/internal/clip"
)

const schema = `
CREATE TABLE IF NOT EXISTS folders (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    color_tag   TEXT NOT NULL DEFAULT '',
    parent_id   TEXT REFERENCES folders(id) ON DELETE SET NULL,
    created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id              TEXT PRIMARY KEY,
    kind            TEXT NOT NULL,
    clear_text      TEXT,
    cipher_text     BLOB,
    clear_image     BLOB,
    cipher_image    BLOB,
    preview         TEXT,
    cipher_preview  BLOB,
    icon_key        TEXT NOT NULL DEFAULT '',
    fingerprint     TEXT NOT NULL,
    source_app      TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    pinned          INTEGER NOT NULL DEFAULT 0,
    pinned_at       INTEGER,
    favorite        INTEGER NOT NULL DEFAULT 0,
    folder_id       TEXT REFERENCES folders(id) ON DELETE SET NULL,
    unavailable     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at);
CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind, created_at);
CREATE INDEX IF NOT EXISTS idx_items_folder ON items(folder_id);
CREATE INDEX IF NOT EXISTS idx_items_fingerprint ON items(fingerprint);
`

// Decrypter is the subset of the encryption gateway the store needs to
// open sealed previews during search.
type Decrypter interface {
	Enabled() bool
	Decrypt(sealed []byte) ([]byte, error)
}

// Options configures a store.
type Options struct {
	// Cap is the history size limit; 0 disables eviction. Once an
	// insert pushes the unpinned count past Cap, the oldest unpinned
	// items are evicted.
	Cap int

	// Decrypter opens sealed previews for free-text search. May be nil
	// when encryption is never enabled.
	Decrypter Decrypter

	Logger *slog.Logger
}

// Store is the SQLite-backed history store. All writes happen on the
// caller's single serialized write context; the store itself adds
// transaction atomicity, not ordering.
type Store struct {
	db  *sql.DB
	cap int
	dec Decrypter
	log *slog.Logger
}

// Open opens or creates the history database at path.
func Open(path string, opts Options) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, cap: opts.Cap, dec: opts.Decrypter, log: log}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetCap changes the history size limit. Takes effect on the next save.
func (s *Store) SetCap(n int) {
	s.cap = n
}

// SaveItem inserts a new item and applies cap eviction in the same
// transaction. Failures roll back and surface as clip.ErrStorage.
func (s *Store) SaveItem(it *clip.Item) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", clip.ErrStorage, err)
	}
	defer tx.Rollback()

	var pinnedAt any
	if it.PinnedAt != nil {
		pinnedAt = it.PinnedAt.UnixNano()
	}
	_, err = tx.Exec(`
		INSERT INTO items (id, kind, clear_text, cipher_text, clear_image, cipher_image,
		                   preview, cipher_preview, icon_key, fingerprint, source_app,
		                   created_at, pinned, pinned_at, favorite, folder_id, unavailable)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Kind.String(), nullStr(it.ClearText), nullBytes(it.CipherText),
		nullBytes(it.ClearImage), nullBytes(it.CipherImage),
		nullStr(it.Preview), nullBytes(it.CipherPreview), it.IconKey,
		it.Fingerprint, it.SourceApp, it.CreatedAt.UnixNano(),
		boolInt(it.Pinned), pinnedAt, boolInt(it.Favorite), it.FolderID, boolInt(it.Unavailable),
	)
	if err != nil {
		return fmt.Errorf("%w: insert item: %v", clip.ErrStorage, err)
	}

	if evicted, err := s.evictOverCap(tx); err != nil {
		return err
	} else if len(evicted) > 0 {
		s.log.Debug("evicted over-cap items", "count", len(evicted))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", clip.ErrStorage, err)
	}
	return nil
}

// evictOverCap deletes the oldest unpinned items beyond the cap and
// returns their ids. Pinned items are exempt regardless of age.
func (s *Store) evictOverCap(tx *sql.Tx) ([]string, error) {
	if s.cap <= 0 {
		return nil, nil
	}

	rows, err := tx.Query(`
		SELECT id FROM items
		WHERE pinned = 0
		ORDER BY created_at DESC
		LIMIT -1 OFFSET ?`, s.cap)
	if err != nil {
		return nil, fmt.Errorf("%w: query over-cap: %v", clip.ErrStorage, err)
	}
	defer rows.Close()

	var victims []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan over-cap: %v", clip.ErrStorage, err)
		}
		victims = append(victims, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate over-cap: %v", clip.ErrStorage, err)
	}

	for _, id := range victims {
		if _, err := tx.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("%w: evict item: %v", clip.ErrStorage, err)
		}
	}
	return victims, nil
}

// GetItem retrieves one item by id.
func (s *Store) GetItem(id string) (*clip.Item, error) {
	row := s.db.QueryRow(itemSelect+` WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s", clip.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get item: %v", clip.ErrStorage, err)
	}
	return it, nil
}

// DeleteItem removes one item.
func (s *Store) DeleteItem(id string) error {
	return s.mutateItem(id, `DELETE FROM items WHERE id = ?`, id)
}

// SetPinned toggles the pin flag; pinnedAt is set iff pinned.
func (s *Store) SetPinned(id string, pinned bool, at time.Time) error {
	var pinnedAt any
	if pinned {
		pinnedAt = at.UnixNano()
	}
	return s.mutateItem(id,
		`UPDATE items SET pinned = ?, pinned_at = ? WHERE id = ?`,
		boolInt(pinned), pinnedAt, id)
}

// SetFavorite toggles the favorite flag.
func (s *Store) SetFavorite(id string, favorite bool) error {
	return s.mutateItem(id,
		`UPDATE items SET favorite = ? WHERE id = ?`, boolInt(favorite), id)
}

// MarkUnavailable flags an item whose ciphertext failed verification.
func (s *Store) MarkUnavailable(id string) error {
	return s.mutateItem(id, `UPDATE items SET unavailable = 1 WHERE id = ?`, id)
}

// AssignFolder moves an item into a folder, or detaches it when
// folderID is nil.
func (s *Store) AssignFolder(id string, folderID *string) error {
	if folderID != nil {
		if _, err := s.GetFolder(*folderID); err != nil {
			return err
		}
	}
	return s.mutateItem(id,
		`UPDATE items SET folder_id = ? WHERE id = ?`, folderID, id)
}

// ClearAll removes every item from the history.
func (s *Store) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM items`); err != nil {
		return fmt.Errorf("%w: clear history: %v", clip.ErrStorage, err)
	}
	return nil
}

// CountItems returns the number of stored items.
func (s *Store) CountItems() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count items: %v", clip.ErrStorage, err)
	}
	return n, nil
}

// mutateItem runs a single-row statement and maps zero affected rows to
// clip.ErrNotFound.
func (s *Store) mutateItem(id, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", clip.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", clip.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: item %s", clip.ErrNotFound, id)
	}
	return nil
}

const itemSelect = `
	SELECT id, kind, clear_text, cipher_text, clear_image, cipher_image,
	       preview, cipher_preview, icon_key, fingerprint, source_app,
	       created_at, pinned, pinned_at, favorite, folder_id, unavailable
	FROM items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*clip.Item, error) {
	var it clip.Item
	var kind string
	var clearText, preview, iconKey sql.NullString
	var createdAt int64
	var pinnedAt sql.NullInt64
	var pinned, favorite, unavailable int
	var folderID sql.NullString

	err := row.Scan(&it.ID, &kind, &clearText, &it.CipherText, &it.ClearImage,
		&it.CipherImage, &preview, &it.CipherPreview, &iconKey, &it.Fingerprint,
		&it.SourceApp, &createdAt, &pinned, &pinnedAt, &favorite, &folderID, &unavailable)
	if err != nil {
		return nil, err
	}

	if k, ok := clip.ParseKind(kind); ok {
		it.Kind = k
	}
	it.ClearText = clearText.String
	it.Preview = preview.String
	it.IconKey = iconKey.String
	it.CreatedAt = time.Unix(0, createdAt)
	it.Pinned = pinned != 0
	if pinnedAt.Valid {
		t := time.Unix(0, pinnedAt.Int64)
		it.PinnedAt = &t
	}
	it.Favorite = favorite != 0
	it.Unavailable = unavailable != 0
	if folderID.Valid {
		f := folderID.String
		it.FolderID = &f
	}
	return &it, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
