// internal/websocket/client.go
package websocket

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"rental-agents-service/internal/pkg/jwt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// ClientAuth is the identity taken from the access token at upgrade time.
type ClientAuth struct {
	IdentityID int64
	SessionID  string
	Roles      []string
	Device     string
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	identityID int64
	sessionID  string
	roles      []string
	device     string

	mu       sync.RWMutex
	channels map[ChannelType]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewClient builds a client following its own agent channel.
func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		identityID: auth.IdentityID,
		sessionID:  auth.SessionID,
		roles:      auth.Roles,
		device:     auth.Device,
		channels:   map[ChannelType]struct{}{ChannelAgent: {}},
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *Client) GetIdentityID() int64 { return c.identityID }

func (c *Client) isAdmin() bool {
	return slices.Contains(c.roles, jwt.RoleAdmin) || slices.Contains(c.roles, jwt.RoleSuperAdmin)
}

// Subscribe reports whether the channel was accepted. The system channel is
// for admins only.
func (c *Client) Subscribe(channel ChannelType) bool {
	if !channel.Valid() || (channel == ChannelSystem && !c.isAdmin()) {
		return false
	}
	c.mu.Lock()
	c.channels[channel] = struct{}{}
	c.mu.Unlock()
	return true
}

func (c *Client) Unsubscribe(channel ChannelType) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(channel ChannelType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// Channels lists subscriptions in sorted order.
func (c *Client) Channels() []ChannelType {
	c.mu.RLock()
	out := make([]ChannelType, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	c.mu.RUnlock()
	slices.Sort(out)
	return out
}

// ReadPump runs until the peer goes away or stops answering pings. It owns
// the read side of the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err == nil {
			c.handleMessage(raw)
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.hub.logger.Warn("websocket read failed",
				zap.Int64("identity_id", c.identityID),
				zap.String("session_id", c.sessionID),
				zap.Error(err),
			)
		}
		return
	}
}

// WritePump owns the write side: queued messages, keepalive pings and the
// close frame on shutdown.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case <-c.ctx.Done():
			_ = c.write(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			err = c.write(websocket.TextMessage, data)
		case <-ticker.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, payload)
}

func (c *Client) handleMessage(raw []byte) {
	msg, err := ParseMessage(raw)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	handled, err := c.hub.dispatch(c.ctx, c, msg)
	switch {
	case err != nil:
		c.SendError("handler_error", "Failed to process message", err.Error())
	case handled:
	case msg.Type == EventTypePing:
		c.SendMessage(NewMessage(EventTypePong, nil))
	case msg.Type == EventTypeSubscribe || msg.Type == EventTypeUnsubscribe:
		c.changeSubscriptions(msg)
	default:
		c.SendError("unknown_type", "Unsupported message type", string(msg.Type))
	}
}

// changeSubscriptions answers with the channels that actually changed.
func (c *Client) changeSubscriptions(msg *WSMessage) {
	var req SubscribeRequest
	if err := decodeData(msg.Data, &req); err != nil {
		c.SendError("invalid_subscribe", "Invalid subscribe request", err.Error())
		return
	}

	changed := make([]ChannelType, 0, len(req.Channels))
	for _, ch := range req.Channels {
		if msg.Type == EventTypeUnsubscribe {
			c.Unsubscribe(ch)
		} else if !c.Subscribe(ch) {
			continue
		}
		changed = append(changed, ch)
	}
	c.SendMessage(NewMessage(msg.Type, map[string]any{"channels": changed}))
}

// SendMessage queues a message. A client that cannot keep up is dropped.
func (c *Client) SendMessage(msg *WSMessage) {
	data, err := msg.ToJSON()
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket message",
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		c.hub.logger.Warn("websocket send buffer full, dropping client",
			zap.Int64("identity_id", c.identityID),
			zap.String("session_id", c.sessionID),
		)
		go c.leave()
	}
}

func (c *Client) SendError(code, message, details string) {
	c.SendMessage(NewMessage(EventTypeError, ErrorData{Code: code, Message: message, Details: details}))
}

// leave asks the hub to drop the client. It gives up once the client is
// closed, which also covers a hub that has stopped running.
func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.ctx.Done():
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(c.cancel)
}

func decodeData(data any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
