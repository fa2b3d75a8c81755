// internal/websocket/handler.go
package websocket

import (
	"context"
)

// MessageHandler serves client requests for one area of the API.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *WSMessage) error
	SupportedEvents() []EventType
}

// RegisterHandler must be called before Run. A later registration for the
// same event type replaces the earlier one.
func (h *Hub) RegisterHandler(mh MessageHandler) {
	for _, t := range mh.SupportedEvents() {
		h.handlers[t] = mh
	}
}

// dispatch reports whether a registered handler claimed the message.
func (h *Hub) dispatch(ctx context.Context, c *Client, msg *WSMessage) (bool, error) {
	mh, ok := h.handlers[msg.Type]
	if !ok {
		return false, nil
	}
	return true, mh.HandleMessage(ctx, c, msg)
}
