// internal/handlers/verification/verification_handler.go
package verification

import (
	"net/http"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/middleware"
	"rental-agents-service/internal/pkg/response"
	service "rental-agents-service/internal/service/verification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VerificationHandler struct {
	verificationService *service.VerificationService
	logger              *zap.Logger
}

func NewVerificationHandler(verificationService *service.VerificationService, logger *zap.Logger) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		logger:              logger,
	}
}

// Submit sends the caller's identity document for verification
func (h *VerificationHandler) Submit(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	var req agent.SubmitVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	view, err := h.verificationService.SubmitDocument(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, "failed to submit verification", err)
		return
	}

	message := "verification submitted for review"
	switch view.VerificationStatus {
	case agent.VerificationVerified:
		message = "identity verified successfully"
	case agent.VerificationRejected:
		message = "identity verification was rejected"
	}
	response.Success(c, http.StatusOK, message, view)
}

func (h *VerificationHandler) Status(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	view, err := h.verificationService.Status(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to load verification status", err)
		return
	}

	response.Success(c, http.StatusOK, "verification status retrieved", view)
}

// Webhook receives the provider's asynchronous verdict. Guarded by
// middleware.WebhookSecret.
func (h *VerificationHandler) Webhook(c *gin.Context) {
	var payload agent.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.ValidationError(c, "invalid webhook payload", err)
		return
	}

	if err := h.verificationService.HandleWebhook(c.Request.Context(), &payload); err != nil {
		h.logger.Warn("verification webhook not applied",
			zap.Int64("user_id", payload.UserID),
			zap.String("request_id", payload.RequestID),
			zap.String("status", payload.Status),
			zap.Error(err),
		)
		response.FromError(c, "failed to process webhook", err)
		return
	}

	response.Success(c, http.StatusOK, "webhook processed", nil)
}
