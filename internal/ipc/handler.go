package ipc

import (
	"context"
	"errors"
	"time"

	"clipd/internal/clip"
	"clipd/internal/engine"
	"clipd/internal/history"
)

// Core is the command surface the handler drives. *engine.Engine
// satisfies it; tests substitute a double.
type Core interface {
	ListItems(f history.Filter) ([]engine.ViewModel, error)
	PasteRequested(ctx context.Context, itemID string) (clip.DeliveryResult, error)
	PinToggled(itemID string) error
	FavoriteToggled(itemID string) error
	FolderAssigned(itemID string, folderID *string) error
	DeleteItem(itemID string) error
	ClearHistory() error
	Thumbnail(itemID string) ([]byte, error)
	Folders() ([]clip.Folder, error)
	CreateFolder(name, colorTag string, parentID *string) (*clip.Folder, error)
	RenameFolder(id, name, colorTag string) error
	DeleteFolder(id string) error
	EnableEncryption() <-chan error
	DisableEncryption()
	EncryptionEnabled() bool
	ItemCount() (int, error)
}

// CommandHandler maps IPC messages onto engine commands.
type CommandHandler struct {
	core      Core
	version   string
	startedAt time.Time
	granted   func() bool
}

// NewCommandHandler creates a handler. granted reports the current OS
// permission state for the status surface; nil means always granted.
func NewCommandHandler(core Core, version string, granted func() bool) *CommandHandler {
	if granted == nil {
		granted = func() bool { return true }
	}
	return &CommandHandler{
		core:      core,
		version:   version,
		startedAt: time.Now(),
		granted:   granted,
	}
}

// HandleMessage implements Handler.
func (h *CommandHandler) HandleMessage(ctx context.Context, client *ClientConn, msg *Message) (*Message, error) {
	reqID := msg.Header.RequestID

	switch msg.Header.Type {
	case MsgStatusRequest:
		return h.handleStatus(reqID)
	case MsgListItems:
		return h.handleListItems(reqID, msg.Payload)
	case MsgPaste:
		return h.handlePaste(ctx, reqID, msg.Payload)
	case MsgSetPin:
		var req SetPinRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(reqID, ErrInvalidRequest, "invalid pin request"), nil
		}
		return h.ack(MsgSetPinResp, reqID, h.core.PinToggled(req.ItemID))
	case MsgSetFavorite:
		var req SetFavoriteRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(reqID, ErrInvalidRequest, "invalid favorite request"), nil
		}
		return h.ack(MsgSetFavoriteResp, reqID, h.core.FavoriteToggled(req.ItemID))
	case MsgAssignFolder:
		var req AssignFolderRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(reqID, ErrInvalidRequest, "invalid assign request"), nil
		}
		return h.ack(MsgAssignFolderResp, reqID, h.core.FolderAssigned(req.ItemID, req.FolderID))
	case MsgDeleteItem:
		var req DeleteItemRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(reqID, ErrInvalidRequest, "invalid delete request"), nil
		}
		return h.ack(MsgDeleteItemResp, reqID, h.core.DeleteItem(req.ItemID))
	case MsgClearHistory:
		return h.ack(MsgClearHistoryResp, reqID, h.core.ClearHistory())
	case MsgGetThumbnail:
		return h.handleThumbnail(reqID, msg.Payload)
	case MsgListFolders:
		return h.handleListFolders(reqID)
	case MsgCreateFolder:
		return h.handleCreateFolder(reqID, msg.Payload)
	case MsgUpdateFolder:
		var req UpdateFolderRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(reqID, ErrInvalidRequest, "invalid folder update"), nil
		}
		return h.ack(MsgUpdateFolderResp, reqID, h.core.RenameFolder(req.ID, req.Name, req.ColorTag))
	case MsgDeleteFolder:
		var req DeleteFolderRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(reqID, ErrInvalidRequest, "invalid folder delete"), nil
		}
		return h.ack(MsgDeleteFolderResp, reqID, h.core.DeleteFolder(req.ID))
	case MsgEncryptionEnable:
		return h.handleEncryptionEnable(ctx, reqID)
	case MsgEncryptionDisable:
		h.core.DisableEncryption()
		return NewResponse(MsgEncryptionDisableResp, reqID, &EncryptionResponse{Enabled: false})
	default:
		return NewErrorMessage(reqID, ErrInvalidRequest, "unknown message type"), nil
	}
}

func (h *CommandHandler) handleStatus(reqID uint32) (*Message, error) {
	count, err := h.core.ItemCount()
	if err != nil {
		return h.errorFor(reqID, err), nil
	}
	return NewResponse(MsgStatusResponse, reqID, &StatusResponse{
		Version:           h.version,
		StartedAt:         h.startedAt,
		ItemCount:         count,
		EncryptionEnabled: h.core.EncryptionEnabled(),
		AccessGranted:     h.granted(),
	})
}

func (h *CommandHandler) handleListItems(reqID uint32, payload []byte) (*Message, error) {
	var req ListItemsRequest
	if len(payload) > 0 {
		if err := Decode(payload, &req); err != nil {
			return NewErrorMessage(reqID, ErrInvalidRequest, "invalid list request"), nil
		}
	}

	filter := history.Filter{
		From:     req.From,
		To:       req.To,
		Pinned:   req.Pinned,
		Favorite: req.Favorite,
		FolderID: req.FolderID,
		Query:    req.Query,
		Fuzzy:    req.Fuzzy,
		Limit:    req.Limit,
	}
	for _, name := range req.Kinds {
		kind, ok := clip.ParseKind(name)
		if !ok {
			return NewErrorMessage(reqID, ErrInvalidRequest, "unknown kind: "+name), nil
		}
		filter.Kinds = append(filter.Kinds, kind)
	}

	items, err := h.core.ListItems(filter)
	if err != nil {
		return h.errorFor(reqID, err), nil
	}
	return NewResponse(MsgListItemsResp, reqID, &ListItemsResponse{Items: items})
}

func (h *CommandHandler) handlePaste(ctx context.Context, reqID uint32, payload []byte) (*Message, error) {
	var req PasteRequest
	if err := Decode(payload, &req); err != nil {
		return NewErrorMessage(reqID, ErrInvalidRequest, "invalid paste request"), nil
	}

	result, err := h.core.PasteRequested(ctx, req.ItemID)
	if err != nil {
		return h.errorFor(reqID, err), nil
	}
	return NewResponse(MsgPasteResp, reqID, &PasteResponse{Result: result.String()})
}

func (h *CommandHandler) handleThumbnail(reqID uint32, payload []byte) (*Message, error) {
	var req GetThumbnailRequest
	if err := Decode(payload, &req); err != nil {
		return NewErrorMessage(reqID, ErrInvalidRequest, "invalid thumbnail request"), nil
	}

	png, err := h.core.Thumbnail(req.ItemID)
	if err != nil {
		return h.errorFor(reqID, err), nil
	}
	return NewResponse(MsgGetThumbnailResp, reqID, &GetThumbnailResponse{PNG: png})
}

func (h *CommandHandler) handleListFolders(reqID uint32) (*Message, error) {
	folders, err := h.core.Folders()
	if err != nil {
		return h.errorFor(reqID, err), nil
	}

	resp := ListFoldersResponse{Folders: make([]FolderInfo, 0, len(folders))}
	for _, f := range folders {
		resp.Folders = append(resp.Folders, folderInfo(&f))
	}
	return NewResponse(MsgListFoldersResp, reqID, &resp)
}

func (h *CommandHandler) handleCreateFolder(reqID uint32, payload []byte) (*Message, error) {
	var req CreateFolderRequest
	if err := Decode(payload, &req); err != nil {
		return NewErrorMessage(reqID, ErrInvalidRequest, "invalid folder request"), nil
	}

	folder, err := h.core.CreateFolder(req.Name, req.ColorTag, req.ParentID)
	if err != nil {
		return h.errorFor(reqID, err), nil
	}
	return NewResponse(MsgCreateFolderResp, reqID, &CreateFolderResponse{Folder: folderInfo(folder)})
}

func (h *CommandHandler) handleEncryptionEnable(ctx context.Context, reqID uint32) (*Message, error) {
	// The key load may block on the credential store; bound the wait
	// by the request context rather than forever.
	select {
	case err := <-h.core.EnableEncryption():
		resp := &EncryptionResponse{Enabled: err == nil}
		if err != nil {
			resp.Error = err.Error()
		}
		return NewResponse(MsgEncryptionEnableResp, reqID, resp)
	case <-ctx.Done():
		return h.errorFor(reqID, ctx.Err()), nil
	}
}

func (h *CommandHandler) ack(msgType MessageType, reqID uint32, err error) (*Message, error) {
	if err != nil {
		return h.errorFor(reqID, err), nil
	}
	return NewResponse(msgType, reqID, &AckResponse{Success: true})
}

func (h *CommandHandler) errorFor(reqID uint32, err error) *Message {
	code := ErrInternalError
	switch {
	case errors.Is(err, clip.ErrNotFound):
		code = ErrNotFound
	case errors.Is(err, clip.ErrPermissionDenied):
		code = ErrPermissionDenied
	case errors.Is(err, clip.ErrIntegrity):
		code = ErrIntegrity
	case errors.Is(err, clip.ErrDeliveryFailed) || errors.Is(err, clip.ErrStorage):
		code = ErrInternalError
	}
	return NewErrorMessage(reqID, code, err.Error())
}

func folderInfo(f *clip.Folder) FolderInfo {
	return FolderInfo{
		ID:        f.ID,
		Name:      f.Name,
		ColorTag:  f.ColorTag,
		ParentID:  f.ParentID,
		CreatedAt: f.CreatedAt,
	}
}
