package transport

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/parley-chat/parley/internal/bus"
	"github.com/parley-chat/parley/internal/presence"
	"github.com/parley-chat/parley/internal/status"
	"github.com/parley-chat/parley/internal/sync"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

// Client is the push-transport adapter. It reads JSON frames off a single
// websocket connection, publishes them as remote.* bus events, and carries
// invoke request/response calls correlated by frame id. Reconnect backoff is
// not owned here: callers redial, and the engine re-syncs presence on the
// remote.connected event.
type Client struct {
	url     string
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger

	conn    *websocket.Conn
	writeMu gosync.Mutex

	pendingMu gosync.Mutex
	pending   map[int64]chan frame
	nextID    int64
}

// NewClient creates a transport client for the given websocket URL.
func NewClient(url string, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:     url,
		bus:     b,
		machine: machine,
		logger:  logger,
		pending: make(map[int64]chan frame),
	}
}

// Connect dials the server and starts the read loop. The remote.connected
// event is published once the link is up so the engine can re-sync presence.
func (c *Client) Connect(ctx context.Context) error {
	_ = c.machine.Transition(status.Connecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		_ = c.machine.Transition(status.Error)
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn
	_ = c.machine.Transition(status.Syncing)

	c.logger.Info("transport connected", zap.String("url", c.url))
	go c.readLoop()

	c.bus.Emit(bus.KindRemoteConnected, nil)
	return nil
}

// Close tears down the connection. Pending invokes fail.
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Warn("transport disconnected", zap.Error(err))
			if c.machine.Current() != status.Error {
				_ = c.machine.Transition(status.Reconnecting)
			}
			c.failPending(err)
			c.bus.Emit(bus.KindRemoteDisconnected, nil)
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame decodes one wire frame and dispatches it. Malformed frames are
// dropped with a diagnostic; they never take the loop down.
func (c *Client) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	if f.Type == frameResult {
		c.resolvePending(f)
		return
	}

	if c.machine.Current() == status.Syncing {
		_ = c.machine.Transition(status.Ready)
	}

	switch f.Type {
	case frameMessageCreated:
		var p messageCreatedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed frame", zap.String("type", f.Type), zap.Error(err))
			return
		}
		c.bus.Emit(bus.KindRemoteMessageReceived, p.toEvent())
	case frameMessageEdited:
		var p messageEditedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed frame", zap.String("type", f.Type), zap.Error(err))
			return
		}
		c.bus.Emit(bus.KindRemoteMessageEdited, sync.MessageEdited{
			MsgID: p.MsgID, ConversationID: p.ConversationID, Content: p.Content,
		})
	case frameMessageDeleted:
		var p messageDeletedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed frame", zap.String("type", f.Type), zap.Error(err))
			return
		}
		c.bus.Emit(bus.KindRemoteMessageDeleted, sync.MessageDeleted{
			MsgID: p.MsgID, ConversationID: p.ConversationID,
		})
	case frameMessageRead:
		var p messageReadPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed frame", zap.String("type", f.Type), zap.Error(err))
			return
		}
		c.bus.Emit(bus.KindRemoteMessageRead, sync.MessageRead{
			MsgID: p.MsgID, ReaderName: p.ReaderName,
		})
	case frameTyping:
		var p typingPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed frame", zap.String("type", f.Type), zap.Error(err))
			return
		}
		c.bus.Emit(bus.KindRemoteTyping, sync.Typing{
			ConversationID: p.ConversationID, UserName: p.UserName, Active: p.Active,
		})
	case framePresenceOnline:
		var p presencePayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed frame", zap.String("type", f.Type), zap.Error(err))
			return
		}
		c.bus.Emit(bus.KindRemoteUserOnline, sync.UserOnline{UserID: p.UserID})
	case framePresenceOffline:
		var p presencePayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed frame", zap.String("type", f.Type), zap.Error(err))
			return
		}
		c.bus.Emit(bus.KindRemoteUserOffline, sync.UserOffline{UserID: p.UserID, LastActive: p.LastActive})
	default:
		c.logger.Warn("dropping frame of unknown type", zap.String("type", f.Type))
	}
}

// Invoke performs a request/response call into the transport. Faults are
// surfaced to the caller; no retry happens here.
func (c *Client) Invoke(ctx context.Context, method string, args any) (json.RawMessage, error) {
	ch := make(chan frame, 1)
	c.pendingMu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.writeFrame(frame{Type: frameInvoke, ID: id, Method: method, Args: args}); err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}

	select {
	case f := <-ch:
		if f.Error != "" {
			return nil, fmt.Errorf("invoke %s: %s", method, f.Error)
		}
		return f.Payload, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("invoke %s: %w", method, ctx.Err())
	}
}

func (c *Client) resolvePending(f frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.ID]
	delete(c.pending, f.ID)
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Warn("result frame without pending invoke", zap.Int64("id", f.ID))
		return
	}
	ch <- f
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- frame{Type: frameResult, ID: id, Error: err.Error()}
		delete(c.pending, id)
	}
}

func (c *Client) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(f)
}

// OnlineSnapshot fetches the full online-user snapshot. Called by the engine
// on remote.connected.
func (c *Client) OnlineSnapshot(ctx context.Context) ([]presence.Entry, error) {
	raw, err := c.Invoke(ctx, "presence.snapshot", nil)
	if err != nil {
		return nil, err
	}
	var payload []presencePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode presence snapshot: %w", err)
	}
	entries := make([]presence.Entry, 0, len(payload))
	for _, p := range payload {
		entries = append(entries, presence.Entry{UserID: p.UserID, LastActive: p.LastActive})
	}
	return entries, nil
}

// SendMessage delivers a local message and returns the server-assigned
// timestamp. msgID is client-assigned and stable across retries.
func (c *Client) SendMessage(ctx context.Context, msgID string, conversationID int64, content string) (int64, error) {
	raw, err := c.Invoke(ctx, "message.send", sendArgs{
		MsgID:          msgID,
		ConversationID: conversationID,
		Content:        content,
	})
	if err != nil {
		return 0, err
	}
	var res sendResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, fmt.Errorf("decode send result: %w", err)
	}
	return res.Timestamp, nil
}
