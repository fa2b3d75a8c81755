// internal/websocket/handler/eligibility.go
package handler

import (
	"context"
	"fmt"

	xerrors "rental-agents-service/internal/pkg/errors"
	agentsvc "rental-agents-service/internal/service/agent"
	ws "rental-agents-service/internal/websocket"
)

type EligibilityChecker interface {
	Eligibility(ctx context.Context, userID int64) (*agentsvc.EligibilityResult, error)
}

// EligibilityHandler answers live "can I list now" queries so the listing
// form can refresh without polling the REST endpoint.
type EligibilityHandler struct {
	checker EligibilityChecker
}

func NewEligibilityHandler(checker EligibilityChecker) *EligibilityHandler {
	return &EligibilityHandler{checker: checker}
}

func (h *EligibilityHandler) SupportedEvents() []ws.EventType {
	return []ws.EventType{ws.EventTypeEligibilityGet}
}

func (h *EligibilityHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *ws.WSMessage) error {
	if msg.Type != ws.EventTypeEligibilityGet {
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}

	result, err := h.checker.Eligibility(ctx, client.GetIdentityID())
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		client.SendError("not_found", "agent profile not found", "")
		return nil
	case err != nil:
		return err
	}

	client.SendMessage(ws.NewMessage(ws.EventTypeEligibility, result))
	return nil
}
