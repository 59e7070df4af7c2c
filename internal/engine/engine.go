// Package engine wires the capture pipeline and exposes the command
// surface the UI layer drives: clipboard changes flow watcher →
// classifier → image pipeline → encryption gateway → history store,
// and paste requests flow back out through the delivery engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipd/internal/classify"
	"clipd/internal/clip"
	"clipd/internal/history"
	"clipd/internal/imaging"
	"clipd/internal/paste"
	"clipd/internal/vault"
	"clipd/internal/watcher"
)

// Engine owns the capture loop and routes user commands. All history
// writes from clipboard events happen on the engine's single run loop,
// so concurrent clipboard changes never race on the store.
type Engine struct {
	store   *history.Store
	gateway *vault.Gateway
	images  *imaging.Pipeline
	watch   *watcher.Watcher
	deliver *paste.Engine
	focus   paste.Focuser
	log     *slog.Logger

	events *broadcaster

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New assembles an engine from its injected collaborators.
func New(store *history.Store, gateway *vault.Gateway, images *imaging.Pipeline,
	watch *watcher.Watcher, deliver *paste.Engine, focus paste.Focuser, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:   store,
		gateway: gateway,
		images:  images,
		watch:   watch,
		deliver: deliver,
		focus:   focus,
		log:     log,
		events:  newBroadcaster(),
		done:    make(chan struct{}),
	}
}

// Start launches the capture loop and its collaborators.
func (e *Engine) Start() {
	e.watch.Start()
	e.deliver.Start()

	e.wg.Add(1)
	go e.run()
}

// Stop drains the capture loop and stops the collaborators.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.done) })
	e.watch.Stop()
	e.deliver.Stop()
	e.wg.Wait()
	e.events.close()
}

// Subscribe returns a channel of engine events. The UI layer consumes
// it instead of polling on a timer.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.events.subscribe()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case payload := <-e.watch.Events():
			e.ingest(payload)
		}
	}
}

// ingest turns one external clipboard change into a history item.
// Local failures (oversized image, storage error) are reported through
// the event stream, never fatal.
func (e *Engine) ingest(payload clip.Payload) {
	res := classify.Classify(payload)

	it := &clip.Item{
		ID:          uuid.NewString(),
		Kind:        res.Kind,
		IconKey:     res.IconKey,
		Fingerprint: payload.Fingerprint(),
		CreatedAt:   time.Now(),
	}
	if app, err := e.focus.Frontmost(); err == nil {
		it.SourceApp = app.Name
	}

	body := []byte(payload.Text)
	if payload.IsImage() {
		processed, err := e.images.Ingest(context.Background(), it.ID, payload.Image)
		if err != nil {
			if errors.Is(err, clip.ErrImageTooLarge) {
				e.log.Info("image payload rejected", "bytes", len(payload.Image))
			} else {
				e.log.Warn("image ingestion failed", "error", err)
			}
			e.events.publish(Event{Type: EventError, Error: err.Error()})
			return
		}
		body = processed.Full
	}

	if e.gateway.Enabled() {
		sealed, err := e.gateway.Encrypt(body)
		if err != nil {
			e.log.Error("payload encryption failed", "error", err)
			e.events.publish(Event{Type: EventError, Error: err.Error()})
			return
		}
		sealedPreview, err := e.gateway.Encrypt([]byte(res.Preview))
		if err != nil {
			e.log.Error("preview encryption failed", "error", err)
			e.events.publish(Event{Type: EventError, Error: err.Error()})
			return
		}
		if payload.IsImage() {
			it.CipherImage = sealed
		} else {
			it.CipherText = sealed
		}
		it.CipherPreview = sealedPreview
	} else {
		if payload.IsImage() {
			it.ClearImage = body
		} else {
			it.ClearText = payload.Text
		}
		it.Preview = res.Preview
	}

	if err := e.store.SaveItem(it); err != nil {
		// The in-memory change is dropped with the rollback; the UI
		// hears about it instead of a silent swallow.
		e.log.Error("history save failed", "error", err)
		e.events.publish(Event{Type: EventError, Error: err.Error()})
		return
	}

	e.log.Debug("captured clipboard item", "kind", it.Kind.String(), "id", it.ID)
	vm := e.viewModel(it, nil)
	e.events.publish(Event{Type: EventItemAdded, Item: &vm})
}

// PasteRequested delivers a stored item back into the last-focused
// application.
func (e *Engine) PasteRequested(ctx context.Context, itemID string) (clip.DeliveryResult, error) {
	it, err := e.store.GetItem(itemID)
	if err != nil {
		return clip.DeliveryFailed, err
	}

	payload, err := e.openPayload(it)
	if err != nil {
		if errors.Is(err, clip.ErrIntegrity) {
			if markErr := e.store.MarkUnavailable(it.ID); markErr != nil {
				e.log.Warn("cannot mark item unavailable", "error", markErr)
			}
			e.publishItemUpdate(it.ID)
		}
		return clip.DeliveryFailed, err
	}

	result := e.deliver.Deliver(ctx, payload)
	e.events.publish(Event{Type: EventDelivery, ItemID: itemID, Result: result.String()})
	return result, nil
}

// openPayload reconstructs the raw payload of an item, decrypting when
// it was written under encryption.
func (e *Engine) openPayload(it *clip.Item) (clip.Payload, error) {
	switch {
	case len(it.CipherImage) > 0:
		img, err := e.gateway.Decrypt(it.CipherImage)
		if err != nil {
			return clip.Payload{}, err
		}
		return clip.Payload{Image: img}, nil
	case len(it.CipherText) > 0:
		text, err := e.gateway.Decrypt(it.CipherText)
		if err != nil {
			return clip.Payload{}, err
		}
		return clip.Payload{Text: string(text)}, nil
	case len(it.ClearImage) > 0:
		return clip.Payload{Image: it.ClearImage}, nil
	default:
		return clip.Payload{Text: it.ClearText}, nil
	}
}

// PinToggled flips an item's pin state.
func (e *Engine) PinToggled(itemID string) error {
	it, err := e.store.GetItem(itemID)
	if err != nil {
		return err
	}
	if err := e.store.SetPinned(itemID, !it.Pinned, time.Now()); err != nil {
		return err
	}
	e.publishItemUpdate(itemID)
	return nil
}

// FavoriteToggled flips an item's favorite state.
func (e *Engine) FavoriteToggled(itemID string) error {
	it, err := e.store.GetItem(itemID)
	if err != nil {
		return err
	}
	if err := e.store.SetFavorite(itemID, !it.Favorite); err != nil {
		return err
	}
	e.publishItemUpdate(itemID)
	return nil
}

// FolderAssigned moves an item into a folder (nil detaches).
func (e *Engine) FolderAssigned(itemID string, folderID *string) error {
	if err := e.store.AssignFolder(itemID, folderID); err != nil {
		return err
	}
	e.publishItemUpdate(itemID)
	return nil
}

// DeleteItem removes a single item and drops its cached renditions.
func (e *Engine) DeleteItem(itemID string) error {
	if err := e.store.DeleteItem(itemID); err != nil {
		return err
	}
	e.images.Forget(itemID)
	e.events.publish(Event{Type: EventItemRemoved, ItemID: itemID})
	return nil
}

// ClearHistory removes all items.
func (e *Engine) ClearHistory() error {
	if err := e.store.ClearAll(); err != nil {
		return err
	}
	e.events.publish(Event{Type: EventHistoryCleared})
	return nil
}

// EnableEncryption activates at-rest encryption. The one-time key load
// may block on the credential store, so completion is signaled through
// the returned channel and the event stream rather than inline.
func (e *Engine) EnableEncryption() <-chan error {
	out := make(chan error, 1)
	go func() {
		err := e.gateway.Enable()
		if err != nil {
			e.log.Error("encryption enable failed", "error", err)
			e.events.publish(Event{Type: EventError, Error: err.Error()})
		} else {
			e.events.publish(Event{Type: EventEncryption, Enabled: true})
		}
		out <- err
	}()
	return out
}

// DisableEncryption deactivates at-rest encryption for future writes.
func (e *Engine) DisableEncryption() {
	e.gateway.Disable()
	e.events.publish(Event{Type: EventEncryption, Enabled: false})
}

// ListItems returns view-models for the UI layer, most recent first.
func (e *Engine) ListItems(f history.Filter) ([]ViewModel, error) {
	items, err := e.store.ListItems(f)
	if err != nil {
		return nil, err
	}

	folders := e.folderNames()
	vms := make([]ViewModel, 0, len(items))
	for i := range items {
		vms = append(vms, e.viewModel(&items[i], folders))
	}
	return vms, nil
}

// Folders returns all folders.
func (e *Engine) Folders() ([]clip.Folder, error) {
	return e.store.ListFolders()
}

// CreateFolder adds a folder.
func (e *Engine) CreateFolder(name, colorTag string, parentID *string) (*clip.Folder, error) {
	f := &clip.Folder{
		ID:        uuid.NewString(),
		Name:      name,
		ColorTag:  colorTag,
		ParentID:  parentID,
		CreatedAt: time.Now(),
	}
	if err := e.store.CreateFolder(f); err != nil {
		return nil, err
	}
	return f, nil
}

// RenameFolder updates a folder's name and color.
func (e *Engine) RenameFolder(id, name, colorTag string) error {
	return e.store.UpdateFolder(id, name, colorTag)
}

// DeleteFolder removes a folder, detaching its items.
func (e *Engine) DeleteFolder(id string) error {
	return e.store.DeleteFolder(id)
}

// Thumbnail returns the list thumbnail for an image item, regenerating
// it from the stored image on cache miss.
func (e *Engine) Thumbnail(itemID string) ([]byte, error) {
	if cached, ok := e.images.Cached(itemID); ok {
		return cached.Thumb, nil
	}

	it, err := e.store.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	if it.Kind != clip.KindImage {
		return nil, fmt.Errorf("%w: item %s has no thumbnail", clip.ErrNotFound, itemID)
	}

	payload, err := e.openPayload(it)
	if err != nil {
		return nil, err
	}
	processed, err := e.images.Ingest(context.Background(), itemID, payload.Image)
	if err != nil {
		return nil, err
	}
	return processed.Thumb, nil
}

// ItemCount reports the number of stored items.
func (e *Engine) ItemCount() (int, error) {
	return e.store.CountItems()
}

// EncryptionEnabled reports the gateway state.
func (e *Engine) EncryptionEnabled() bool {
	return e.gateway.Enabled()
}

func (e *Engine) publishItemUpdate(itemID string) {
	it, err := e.store.GetItem(itemID)
	if err != nil {
		return
	}
	vm := e.viewModel(it, nil)
	e.events.publish(Event{Type: EventItemUpdated, Item: &vm})
}

func (e *Engine) folderNames() map[string]string {
	names := make(map[string]string)
	folders, err := e.store.ListFolders()
	if err != nil {
		return names
	}
	for _, f := range folders {
		names[f.ID] = f.Name
	}
	return names
}
