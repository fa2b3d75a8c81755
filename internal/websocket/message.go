// internal/websocket/message.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names a frame. Lifecycle pushes reuse the domain event type,
// e.g. "agent.verified".
type EventType string

const (
	EventTypePing      EventType = "ping"
	EventTypePong      EventType = "pong"
	EventTypeConnected EventType = "connected"
	EventTypeError     EventType = "error"

	EventTypeSubscribe      EventType = "subscribe"
	EventTypeUnsubscribe    EventType = "unsubscribe"
	EventTypeEligibilityGet EventType = "eligibility:get"
	EventTypeEligibility    EventType = "eligibility"
)

type WSMessage struct {
	ID        string    `json:"id,omitempty"`
	Type      EventType `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ChannelType string

const (
	// ChannelAgent carries the caller's own lifecycle events. Every client
	// starts on it.
	ChannelAgent  ChannelType = "agent"
	// ChannelSystem mirrors every lifecycle event for admin dashboards.
	ChannelSystem ChannelType = "system"
)

func (c ChannelType) Valid() bool {
	return c == ChannelAgent || c == ChannelSystem
}

type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewMessage(t EventType, data any) *WSMessage {
	return &WSMessage{
		ID:        ulid.Make().String(),
		Type:      t,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(raw []byte) (*WSMessage, error) {
	msg := new(WSMessage)
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
