// internal/events/publisher.go
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"rental-agents-service/internal/domain/agent"

	"github.com/oklog/ulid/v2"
)

// Publisher informs downstream notifiers of a committed state change.
// Publishing happens after the transaction; callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, e agent.Event) error
}

// Envelope is the wire format shared by every transport.
type Envelope struct {
	ID         string          `json:"id"`
	Type       agent.EventType `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Recipients []int64         `json:"recipients"`
	Payload    agent.Event     `json:"payload"`
}

func NewEnvelope(e agent.Event, now time.Time) Envelope {
	return Envelope{
		ID:         ulid.Make().String(),
		Type:       e.Type(),
		OccurredAt: now,
		Recipients: e.Recipients(),
		Payload:    e,
	}
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e agent.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, agent.Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []agent.Event
}

func (r *Recorder) Publish(_ context.Context, e agent.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []agent.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]agent.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(t agent.EventType) []agent.Event {
	var out []agent.Event
	for _, e := range r.Events() {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}
