// Package ipc provides inter-process communication between the clipd
// daemon and client applications (CLI, GUI panels).
//
// The protocol is a length-framed binary envelope with JSON payloads:
// request/response for commands, plus event streaming for live history
// updates.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"clipd/internal/engine"
)

// Protocol version for compatibility checking.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x43495043 // "CIPC"
)

// MessageType identifies the type of IPC message.
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing         MessageType = 0x0001
	MsgPong         MessageType = 0x0002
	MsgHandshake    MessageType = 0x0003
	MsgHandshakeAck MessageType = 0x0004
	MsgError        MessageType = 0x0005
	MsgShutdown     MessageType = 0x0006

	// Status messages (0x01xx)
	MsgStatusRequest  MessageType = 0x0100
	MsgStatusResponse MessageType = 0x0101

	// History operations (0x02xx)
	MsgListItems        MessageType = 0x0200
	MsgListItemsResp    MessageType = 0x0201
	MsgPaste            MessageType = 0x0202
	MsgPasteResp        MessageType = 0x0203
	MsgSetPin           MessageType = 0x0204
	MsgSetPinResp       MessageType = 0x0205
	MsgSetFavorite      MessageType = 0x0206
	MsgSetFavoriteResp  MessageType = 0x0207
	MsgAssignFolder     MessageType = 0x0208
	MsgAssignFolderResp MessageType = 0x0209
	MsgDeleteItem       MessageType = 0x020a
	MsgDeleteItemResp   MessageType = 0x020b
	MsgClearHistory     MessageType = 0x020c
	MsgClearHistoryResp MessageType = 0x020d
	MsgGetThumbnail     MessageType = 0x020e
	MsgGetThumbnailResp MessageType = 0x020f

	// Folder operations (0x03xx)
	MsgListFolders      MessageType = 0x0300
	MsgListFoldersResp  MessageType = 0x0301
	MsgCreateFolder     MessageType = 0x0302
	MsgCreateFolderResp MessageType = 0x0303
	MsgUpdateFolder     MessageType = 0x0304
	MsgUpdateFolderResp MessageType = 0x0305
	MsgDeleteFolder     MessageType = 0x0306
	MsgDeleteFolderResp MessageType = 0x0307

	// Encryption control (0x04xx)
	MsgEncryptionEnable      MessageType = 0x0400
	MsgEncryptionEnableResp  MessageType = 0x0401
	MsgEncryptionDisable     MessageType = 0x0402
	MsgEncryptionDisableResp MessageType = 0x0403

	// Event streaming (0x05xx)
	MsgSubscribe       MessageType = 0x0500
	MsgSubscribeResp   MessageType = 0x0501
	MsgUnsubscribe     MessageType = 0x0502
	MsgUnsubscribeResp MessageType = 0x0503
	MsgEvent           MessageType = 0x0504
)

// Header is the fixed-size message header (16 bytes).
type Header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Type      MessageType
	RequestID uint32
	Length    uint32 // payload length, not including header
}

// HeaderSize is the size of the header in bytes.
const HeaderSize = 16

// MaxPayloadSize bounds a single message payload.
const MaxPayloadSize = 64 * 1024 * 1024

// Message wraps a header and payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a new message with the given type and payload.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write writes the header to a writer.
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads a header from a reader.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}
	return h, nil
}

// Write writes the message to a writer.
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads a complete message from a reader.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > MaxPayloadSize {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Request/response payloads.

// HandshakeRequest is sent by the client to initiate a connection.
type HandshakeRequest struct {
	ClientVersion   string `json:"client_version"`
	ClientName      string `json:"client_name"`
	ProtocolVersion uint8  `json:"protocol_version"`
}

// HandshakeResponse acknowledges a connection.
type HandshakeResponse struct {
	ServerVersion   string `json:"server_version"`
	ProtocolVersion uint8  `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}

// ErrorResponse is sent when an operation fails.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrUnknown          = 1
	ErrInvalidRequest   = 2
	ErrNotFound         = 3
	ErrPermissionDenied = 4
	ErrInternalError    = 5
	ErrIntegrity        = 6
)

// StatusResponse contains daemon status.
type StatusResponse struct {
	Version           string    `json:"version"`
	StartedAt         time.Time `json:"started_at"`
	ItemCount         int       `json:"item_count"`
	EncryptionEnabled bool      `json:"encryption_enabled"`
	AccessGranted     bool      `json:"access_granted"`
}

// ListItemsRequest carries the history query.
type ListItemsRequest struct {
	Kinds    []string   `json:"kinds,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Pinned   *bool      `json:"pinned,omitempty"`
	Favorite *bool      `json:"favorite,omitempty"`
	FolderID *string    `json:"folder_id,omitempty"`
	Query    string     `json:"query,omitempty"`
	Fuzzy    bool       `json:"fuzzy,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}

// ListItemsResponse contains the matching items.
type ListItemsResponse struct {
	Items []engine.ViewModel `json:"items"`
}

// PasteRequest asks the daemon to deliver a stored item.
type PasteRequest struct {
	ItemID string `json:"item_id"`
}

// PasteResponse reports the delivery outcome.
type PasteResponse struct {
	Result string `json:"result"`
}

// SetPinRequest toggles an item's pin state.
type SetPinRequest struct {
	ItemID string `json:"item_id"`
}

// SetFavoriteRequest toggles an item's favorite state.
type SetFavoriteRequest struct {
	ItemID string `json:"item_id"`
}

// AssignFolderRequest moves an item into a folder. A nil FolderID
// detaches it.
type AssignFolderRequest struct {
	ItemID   string  `json:"item_id"`
	FolderID *string `json:"folder_id,omitempty"`
}

// DeleteItemRequest removes a single item.
type DeleteItemRequest struct {
	ItemID string `json:"item_id"`
}

// GetThumbnailRequest fetches the list thumbnail for an image item.
type GetThumbnailRequest struct {
	ItemID string `json:"item_id"`
}

// GetThumbnailResponse carries encoded thumbnail bytes.
type GetThumbnailResponse struct {
	PNG []byte `json:"png"`
}

// FolderInfo is the wire form of a folder.
type FolderInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ColorTag  string    `json:"color_tag,omitempty"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFoldersResponse contains all folders.
type ListFoldersResponse struct {
	Folders []FolderInfo `json:"folders"`
}

// CreateFolderRequest adds a folder.
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ColorTag string  `json:"color_tag,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// CreateFolderResponse returns the created folder.
type CreateFolderResponse struct {
	Folder FolderInfo `json:"folder"`
}

// UpdateFolderRequest renames or recolors a folder.
type UpdateFolderRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ColorTag string `json:"color_tag,omitempty"`
}

// DeleteFolderRequest removes a folder, detaching its items.
type DeleteFolderRequest struct {
	ID string `json:"id"`
}

// EncryptionResponse reports the encryption state after a control
// request completes.
type EncryptionResponse struct {
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

// AckResponse is the generic success acknowledgement.
type AckResponse struct {
	Success bool `json:"success"`
}

// SubscribeResponse acknowledges an event subscription.
type SubscribeResponse struct {
	Success        bool   `json:"success"`
	SubscriptionID string `json:"subscription_id"`
}

// Encode encodes a payload to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes to a payload.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage creates an error message.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{Code: code, Message: message})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse creates a response message.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}
