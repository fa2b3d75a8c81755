// internal/websocket/hub.go
package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/events"
	"rental-agents-service/internal/pkg/jwt"

	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrQueueFull    = errors.New("websocket broadcast queue is full")
)

const deliveryQueue = 256

// TokenVerifier validates access tokens presented on connect.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// delivery is one lifecycle event on its way out. Recipients receive it on
// the agent channel; admins following the system channel receive a copy of
// every delivery.
type delivery struct {
	recipients []int64
	msg        *WSMessage
}

// Hub owns the connection index. Only Run mutates it; readers take the lock.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*Client]struct{}

	Register   chan *Client
	unregister chan *Client
	deliveries chan delivery

	handlers map[EventType]MessageHandler
	verifier TokenVerifier
	logger   *zap.Logger
}

func NewHub(verifier TokenVerifier, logger *zap.Logger) *Hub {
	return &Hub{
		conns:      make(map[int64]map[*Client]struct{}),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan delivery, deliveryQueue),
		handlers:   make(map[EventType]MessageHandler),
		verifier:   verifier,
		logger:     logger,
	}
}

// AuthenticateClient turns a bearer token into the identity a client carries.
func (h *Hub) AuthenticateClient(token string) (*ClientAuth, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := h.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &ClientAuth{
		IdentityID: claims.IdentityID,
		SessionID:  claims.ID,
		Roles:      claims.Roles,
		Device:     claims.Device,
	}, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.Register:
			h.attach(c)
		case c := <-h.unregister:
			h.detach(c)
		case d := <-h.deliveries:
			h.deliver(d)
		}
	}
}

// Publish queues a committed domain event. It never blocks on a full queue.
func (h *Hub) Publish(ctx context.Context, e agent.Event) error {
	env := events.NewEnvelope(e, time.Now().UTC())
	d := delivery{
		recipients: env.Recipients,
		msg: &WSMessage{
			ID:        env.ID,
			Type:      EventType(env.Type),
			Data:      env.Payload,
			Timestamp: env.OccurredAt,
		},
	}

	select {
	case h.deliveries <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	set, ok := h.conns[c.identityID]
	if !ok {
		set = make(map[*Client]struct{})
		h.conns[c.identityID] = set
	}
	set[c] = struct{}{}
	count := h.countLocked()
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.Int64("identity_id", c.identityID),
		zap.String("session_id", c.sessionID),
		zap.String("device", c.device),
		zap.Int("connections", count),
	)

	c.SendMessage(NewMessage(EventTypeConnected, map[string]any{
		"identity_id": c.identityID,
		"roles":       c.roles,
		"channels":    c.Channels(),
	}))
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	set := h.conns[c.identityID]
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.identityID)
	}
	count := h.countLocked()
	h.mu.Unlock()

	c.Close()
	h.logger.Info("websocket client disconnected",
		zap.Int64("identity_id", c.identityID),
		zap.String("session_id", c.sessionID),
		zap.Int("connections", count),
	)
}

// deliver sends each message at most once per connection.
func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*Client]struct{})
	for _, id := range d.recipients {
		for c := range h.conns[id] {
			if _, done := sent[c]; !done && c.IsSubscribed(ChannelAgent) {
				c.SendMessage(d.msg)
				sent[c] = struct{}{}
			}
		}
	}
	for _, set := range h.conns {
		for c := range set {
			if _, done := sent[c]; done || !c.IsSubscribed(ChannelSystem) {
				continue
			}
			c.SendMessage(d.msg)
		}
	}
}

// IsUserConnected reports whether the identity has at least one live socket.
func (h *Hub) IsUserConnected(identityID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[identityID]) > 0
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.conns {
		for c := range set {
			c.Close()
		}
		delete(h.conns, id)
	}
}
