package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"clipd/internal/engine"
)

// Common client errors.
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrConnectionLost   = errors.New("connection to daemon lost")
	ErrTimeout          = errors.New("request timeout")
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// RemoteError is a daemon-side failure surfaced through the protocol.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}

// ClientConfig configures the IPC client.
type ClientConfig struct {
	SocketPath     string
	ClientName     string
	ClientVersion  string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(socketPath string) ClientConfig {
	return ClientConfig{
		SocketPath:     socketPath,
		ClientName:     "clipctl",
		ClientVersion:  "1.0.0",
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Client communicates with the clipd daemon over its unix socket.
type Client struct {
	mu        sync.RWMutex
	conn      net.Conn
	cfg       ClientConfig
	sessionID string

	connected atomic.Bool
	nextReqID atomic.Uint32

	pending   map[uint32]chan *Message
	pendingMu sync.Mutex

	eventChan chan engine.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a new IPC client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:       cfg,
		pending:   make(map[uint32]chan *Message),
		eventChan: make(chan engine.Event, 100),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect establishes a connection and performs the handshake.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected.Load() {
		c.mu.Unlock()
		return nil
	}

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.Dial("unix", c.cfg.SocketPath)
	if err != nil {
		c.mu.Unlock()
		if os.IsNotExist(err) {
			return ErrDaemonNotRunning
		}
		return fmt.Errorf("connect: %w", err)
	}

	c.conn = conn
	c.connected.Store(true)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected.Store(false)
	c.mu.Unlock()

	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[uint32]chan *Message)
	c.pendingMu.Unlock()

	c.wg.Wait()
	return nil
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Events returns the channel of streamed daemon events. Subscribe must
// be called first.
func (c *Client) Events() <-chan engine.Event {
	return c.eventChan
}

func (c *Client) handshake() error {
	req := &HandshakeRequest{
		ClientVersion:   c.cfg.ClientVersion,
		ClientName:      c.cfg.ClientName,
		ProtocolVersion: ProtocolVersion,
	}

	resp, err := c.request(MsgHandshake, req)
	if err != nil {
		return err
	}
	if resp.Header.Type != MsgHandshakeAck {
		return fmt.Errorf("unexpected response type: %d", resp.Header.Type)
	}

	var ack HandshakeResponse
	if err := Decode(resp.Payload, &ack); err != nil {
		return err
	}

	c.mu.Lock()
	c.sessionID = ack.SessionID
	c.mu.Unlock()
	return nil
}

// request sends a request and waits for the correlated response.
func (c *Client) request(msgType MessageType, payload any) (*Message, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	var data []byte
	if payload != nil {
		var err error
		data, err = Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}

	reqID := c.nextReqID.Add(1)
	msg := NewMessage(msgType, reqID, data)

	respChan := make(chan *Message, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = respChan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := msg.Write(conn); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}

	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, ErrConnectionLost
		}
		if resp.Header.Type == MsgError {
			var remote ErrorResponse
			if err := Decode(resp.Payload, &remote); err != nil {
				return nil, fmt.Errorf("malformed error response: %w", err)
			}
			return nil, &RemoteError{Code: remote.Code, Message: remote.Message}
		}
		return resp, nil
	case <-time.After(c.cfg.RequestTimeout):
		return nil, ErrTimeout
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		msg, err := ReadMessage(conn)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.connected.Store(false)
			c.pendingMu.Lock()
			for _, ch := range c.pending {
				close(ch)
			}
			c.pending = make(map[uint32]chan *Message)
			c.pendingMu.Unlock()
			return
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg *Message) {
	switch msg.Header.Type {
	case MsgPing:
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			pong := NewMessage(MsgPong, msg.Header.RequestID, nil)
			pong.Write(conn)
		}
	case MsgPong:
		// keepalive response

	case MsgEvent:
		var event engine.Event
		if err := Decode(msg.Payload, &event); err == nil {
			select {
			case c.eventChan <- event:
			default:
			}
		}

	default:
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.Header.RequestID]
		if ok {
			delete(c.pending, msg.Header.RequestID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// Typed command helpers.

// Status fetches daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.request(MsgStatusRequest, nil)
	if err != nil {
		return nil, err
	}
	var status StatusResponse
	if err := Decode(resp.Payload, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListItems queries history.
func (c *Client) ListItems(req *ListItemsRequest) ([]engine.ViewModel, error) {
	resp, err := c.request(MsgListItems, req)
	if err != nil {
		return nil, err
	}
	var list ListItemsResponse
	if err := Decode(resp.Payload, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Paste delivers a stored item to the last-focused application.
func (c *Client) Paste(itemID string) (string, error) {
	resp, err := c.request(MsgPaste, &PasteRequest{ItemID: itemID})
	if err != nil {
		return "", err
	}
	var paste PasteResponse
	if err := Decode(resp.Payload, &paste); err != nil {
		return "", err
	}
	return paste.Result, nil
}

// TogglePin flips an item's pin state.
func (c *Client) TogglePin(itemID string) error {
	_, err := c.request(MsgSetPin, &SetPinRequest{ItemID: itemID})
	return err
}

// ToggleFavorite flips an item's favorite state.
func (c *Client) ToggleFavorite(itemID string) error {
	_, err := c.request(MsgSetFavorite, &SetFavoriteRequest{ItemID: itemID})
	return err
}

// AssignFolder moves an item into a folder (nil detaches).
func (c *Client) AssignFolder(itemID string, folderID *string) error {
	_, err := c.request(MsgAssignFolder, &AssignFolderRequest{ItemID: itemID, FolderID: folderID})
	return err
}

// DeleteItem removes one item.
func (c *Client) DeleteItem(itemID string) error {
	_, err := c.request(MsgDeleteItem, &DeleteItemRequest{ItemID: itemID})
	return err
}

// ClearHistory removes all items.
func (c *Client) ClearHistory() error {
	_, err := c.request(MsgClearHistory, nil)
	return err
}

// Thumbnail fetches an image item's thumbnail PNG.
func (c *Client) Thumbnail(itemID string) ([]byte, error) {
	resp, err := c.request(MsgGetThumbnail, &GetThumbnailRequest{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	var thumb GetThumbnailResponse
	if err := Decode(resp.Payload, &thumb); err != nil {
		return nil, err
	}
	return thumb.PNG, nil
}

// ListFolders fetches all folders.
func (c *Client) ListFolders() ([]FolderInfo, error) {
	resp, err := c.request(MsgListFolders, nil)
	if err != nil {
		return nil, err
	}
	var list ListFoldersResponse
	if err := Decode(resp.Payload, &list); err != nil {
		return nil, err
	}
	return list.Folders, nil
}

// CreateFolder adds a folder.
func (c *Client) CreateFolder(name, colorTag string, parentID *string) (*FolderInfo, error) {
	resp, err := c.request(MsgCreateFolder, &CreateFolderRequest{
		Name:     name,
		ColorTag: colorTag,
		ParentID: parentID,
	})
	if err != nil {
		return nil, err
	}
	var created CreateFolderResponse
	if err := Decode(resp.Payload, &created); err != nil {
		return nil, err
	}
	return &created.Folder, nil
}

// UpdateFolder renames or recolors a folder.
func (c *Client) UpdateFolder(id, name, colorTag string) error {
	_, err := c.request(MsgUpdateFolder, &UpdateFolderRequest{ID: id, Name: name, ColorTag: colorTag})
	return err
}

// DeleteFolder removes a folder.
func (c *Client) DeleteFolder(id string) error {
	_, err := c.request(MsgDeleteFolder, &DeleteFolderRequest{ID: id})
	return err
}

// EnableEncryption turns on at-rest encryption.
func (c *Client) EnableEncryption() (*EncryptionResponse, error) {
	resp, err := c.request(MsgEncryptionEnable, nil)
	if err != nil {
		return nil, err
	}
	var enc EncryptionResponse
	if err := Decode(resp.Payload, &enc); err != nil {
		return nil, err
	}
	return &enc, nil
}

// DisableEncryption turns off at-rest encryption for future writes.
func (c *Client) DisableEncryption() error {
	_, err := c.request(MsgEncryptionDisable, nil)
	return err
}

// Subscribe starts event streaming on this connection.
func (c *Client) Subscribe() error {
	_, err := c.request(MsgSubscribe, nil)
	return err
}

// Unsubscribe stops event streaming.
func (c *Client) Unsubscribe() error {
	_, err := c.request(MsgUnsubscribe, nil)
	return err
}
