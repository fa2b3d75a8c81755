// internal/handlers/referral/referral_handler.go
package referral

import (
	"net/http"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/middleware"
	"rental-agents-service/internal/pkg/response"
	service "rental-agents-service/internal/service/referral"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	referralService *service.ReferralService
}

func NewReferralHandler(referralService *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
	}
}

// Validate checks a code before signup. Public and rate limited.
func (h *ReferralHandler) Validate(c *gin.Context) {
	var q agent.ValidateReferralQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, "referral code is required", err)
		return
	}

	result, err := h.referralService.ValidateCode(c.Request.Context(), q.Code)
	if err != nil {
		response.FromError(c, "failed to validate referral code", err)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}

// Apply applies a referral code to the caller's existing profile
func (h *ReferralHandler) Apply(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	var req agent.ApplyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid referral code", err)
		return
	}

	grant, err := h.referralService.ApplyReferral(c.Request.Context(), userID, req.ReferralCode)
	if err != nil {
		response.FromError(c, "failed to apply referral code", err)
		return
	}

	response.Success(c, http.StatusOK, "referral code applied", gin.H{
		"referral_code": grant.Record.ReferralCodeUsed,
		"reward_weeks":  grant.Record.RewardWeeks,
		"profile":       grant.NewAgent.View(),
	})
}

// Stats returns the caller's referral totals and share link
func (h *ReferralHandler) Stats(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	stats, err := h.referralService.Stats(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to load referral stats", err)
		return
	}

	response.Success(c, http.StatusOK, "referral stats retrieved", stats)
}
