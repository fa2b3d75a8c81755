// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"net/http"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/middleware"
	"rental-agents-service/internal/pkg/response"
	service "rental-agents-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// Status summarizes trial, free weeks and paid subscription for the caller
func (h *SubscriptionHandler) Status(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	summary, err := h.subscriptionService.Status(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to load subscription status", err)
		return
	}

	response.Success(c, http.StatusOK, summary.Label, summary)
}

// Activate records a paid subscription settled by billing
func (h *SubscriptionHandler) Activate(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	var req agent.ActivateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	a, err := h.subscriptionService.ActivateForUser(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, "failed to activate subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription activated", a.View())
}

// Renew extends the current paid plan by one billing cycle
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	var req agent.RenewSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	a, err := h.subscriptionService.Renew(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, "failed to renew subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription renewed", a.View())
}

// Cancel stops renewal. Access continues until the paid period ends.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	a, err := h.subscriptionService.Cancel(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to cancel subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription cancelled", a.View())
}
