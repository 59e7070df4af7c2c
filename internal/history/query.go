package history

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"clipd/internal/clip"
)

// Filter narrows a ListItems query. Zero values mean "no constraint".
type Filter struct {
	Kinds    []clip.Kind
	From     *time.Time
	To       *time.Time
	Pinned   *bool
	Favorite *bool
	FolderID *string

	// Query is free-text search over preview text. Substring match by
	// default; Fuzzy switches to fuzzy ranking.
	Query string
	Fuzzy bool

	Limit int
}

// ListItems returns matching items, most recent first. When encryption
// is enabled, sealed previews are opened for text search and for the
// returned Preview fields; items whose previews fail to decrypt come
// back with Unavailable set instead of failing the whole query.
func (s *Store) ListItems(f Filter) ([]clip.Item, error) {
	query := itemSelect
	var conds []string
	var args []any

	if len(f.Kinds) > 0 {
		ph := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			ph[i] = "?"
			args = append(args, k.String())
		}
		conds = append(conds, "kind IN ("+strings.Join(ph, ", ")+")")
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UnixNano())
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UnixNano())
	}
	if f.Pinned != nil {
		conds = append(conds, "pinned = ?")
		args = append(args, boolInt(*f.Pinned))
	}
	if f.Favorite != nil {
		conds = append(conds, "favorite = ?")
		args = append(args, boolInt(*f.Favorite))
	}
	if f.FolderID != nil {
		conds = append(conds, "folder_id = ?")
		args = append(args, *f.FolderID)
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list items: %v", clip.ErrStorage, err)
	}
	defer rows.Close()

	var items []clip.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan item: %v", clip.ErrStorage, err)
		}
		s.openPreview(it)
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate items: %v", clip.ErrStorage, err)
	}

	if f.Query != "" {
		items = searchPreviews(items, f.Query, f.Fuzzy)
	}
	if f.Limit > 0 && len(items) > f.Limit {
		items = items[:f.Limit]
	}
	return items, nil
}

// openPreview materializes the preview of a sealed item.
func (s *Store) openPreview(it *clip.Item) {
	if it.Preview != "" || len(it.CipherPreview) == 0 || s.dec == nil || !s.dec.Enabled() {
		return
	}
	plain, err := s.dec.Decrypt(it.CipherPreview)
	if err != nil {
		s.log.Warn("preview failed integrity check", "item", it.ID)
		it.Unavailable = true
		return
	}
	it.Preview = string(plain)
}

// searchPreviews filters items by preview text. Fuzzy mode ranks with
// fuzzy matching; otherwise a case-insensitive substring test keeps the
// original recency order.
func searchPreviews(items []clip.Item, query string, useFuzzy bool) []clip.Item {
	if !useFuzzy {
		q := strings.ToLower(query)
		out := items[:0]
		for _, it := range items {
			if strings.Contains(strings.ToLower(it.Preview), q) {
				out = append(out, it)
			}
		}
		return out
	}

	previews := make([]string, len(items))
	for i, it := range items {
		previews[i] = it.Preview
	}
	matches := fuzzy.Find(query, previews)
	sort.Stable(matches)

	out := make([]clip.Item, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
	}
	return out
}

// CreateFolder inserts a folder after validating its nesting depth.
func (s *Store) CreateFolder(f *clip.Folder) error {
	if f.ParentID != nil {
		depth, err := s.folderDepth(*f.ParentID)
		if err != nil {
			return err
		}
		if depth+1 >= clip.MaxFolderDepth {
			return fmt.Errorf("%w: folder nesting exceeds depth %d", clip.ErrStorage, clip.MaxFolderDepth)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO folders (id, name, color_tag, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.ColorTag, f.ParentID, f.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: create folder: %v", clip.ErrStorage, err)
	}
	return nil
}

// UpdateFolder renames a folder and sets its color tag.
func (s *Store) UpdateFolder(id, name, colorTag string) error {
	res, err := s.db.Exec(`UPDATE folders SET name = ?, color_tag = ? WHERE id = ?`,
		name, colorTag, id)
	if err != nil {
		return fmt.Errorf("%w: update folder: %v", clip.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: folder %s", clip.ErrNotFound, id)
	}
	return nil
}

// DeleteFolder removes a folder. Items inside it are detached, not
// deleted; child folders lose their parent reference.
func (s *Store) DeleteFolder(id string) error {
	res, err := s.db.Exec(`DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete folder: %v", clip.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: folder %s", clip.ErrNotFound, id)
	}
	return nil
}

// GetFolder retrieves one folder by id.
func (s *Store) GetFolder(id string) (*clip.Folder, error) {
	f, err := scanFolder(s.db.QueryRow(
		`SELECT id, name, color_tag, parent_id, created_at FROM folders WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: folder %s", clip.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get folder: %v", clip.ErrStorage, err)
	}
	return f, nil
}

// ListFolders returns all folders ordered by creation time.
func (s *Store) ListFolders() ([]clip.Folder, error) {
	rows, err := s.db.Query(
		`SELECT id, name, color_tag, parent_id, created_at FROM folders ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list folders: %v", clip.ErrStorage, err)
	}
	defer rows.Close()

	var folders []clip.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan folder: %v", clip.ErrStorage, err)
		}
		folders = append(folders, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate folders: %v", clip.ErrStorage, err)
	}
	return folders, nil
}

// folderDepth counts ancestors of a folder (a root folder has depth 0).
func (s *Store) folderDepth(id string) (int, error) {
	depth := 0
	cur := id
	for depth <= clip.MaxFolderDepth {
		f, err := s.GetFolder(cur)
		if err != nil {
			return 0, err
		}
		if f.ParentID == nil {
			return depth, nil
		}
		cur = *f.ParentID
		depth++
	}
	return depth, nil
}

func scanFolder(row rowScanner) (*clip.Folder, error) {
	var f clip.Folder
	var parent *string
	var createdAt int64
	if err := row.Scan(&f.ID, &f.Name, &f.ColorTag, &parent, &createdAt); err != nil {
		return nil, err
	}
	f.ParentID = parent
	f.CreatedAt = time.Unix(0, createdAt)
	return &f, nil
}
