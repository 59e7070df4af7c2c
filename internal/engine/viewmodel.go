package engine

import (
	"time"

	"clipd/internal/clip"
)

// ViewModel is the flattened item representation handed to the UI
// layer. It never carries payload bodies; image bodies are fetched by
// thumbnail handle on demand.
type ViewModel struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Preview     string     `json:"preview"`
	IconKey     string     `json:"icon_key"`
	ThumbHandle string     `json:"thumb_handle,omitempty"`
	SourceApp   string     `json:"source_app,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Pinned      bool       `json:"pinned"`
	PinnedAt    *time.Time `json:"pinned_at,omitempty"`
	Favorite    bool       `json:"favorite"`
	FolderID    string     `json:"folder_id,omitempty"`
	FolderName  string     `json:"folder_name,omitempty"`
	Encrypted   bool       `json:"encrypted"`
	Unavailable bool       `json:"unavailable"`
}

// viewModel flattens an item. folders maps folder ids to names; a nil
// map triggers a single lookup for the item's own folder.
func (e *Engine) viewModel(it *clip.Item, folders map[string]string) ViewModel {
	vm := ViewModel{
		ID:          it.ID,
		Kind:        it.Kind.String(),
		Preview:     it.Preview,
		IconKey:     it.IconKey,
		SourceApp:   it.SourceApp,
		CreatedAt:   it.CreatedAt,
		Pinned:      it.Pinned,
		PinnedAt:    it.PinnedAt,
		Favorite:    it.Favorite,
		Encrypted:   it.Encrypted(),
		Unavailable: it.Unavailable,
	}
	if it.Kind == clip.KindImage {
		vm.ThumbHandle = it.ID
	}
	if it.FolderID != nil {
		vm.FolderID = *it.FolderID
		if folders != nil {
			vm.FolderName = folders[*it.FolderID]
		} else if f, err := e.store.GetFolder(*it.FolderID); err == nil {
			vm.FolderName = f.Name
		}
	}
	return vm
}
