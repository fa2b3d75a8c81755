// internal/handlers/properties/property_handler.go
package properties

import (
	"net/http"

	"rental-agents-service/internal/middleware"
	"rental-agents-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PropertyHandler struct {
	logger *zap.Logger
}

func NewPropertyHandler(logger *zap.Logger) *PropertyHandler {
	return &PropertyHandler{logger: logger}
}

// Authorize is called by the listing workflow before a property is created.
// It runs behind middleware.ListingGate, so reaching it means the agent may list.
func (h *PropertyHandler) Authorize(c *gin.Context) {
	result, ok := middleware.GetEligibility(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "listing gate not applied", nil)
		return
	}

	h.logger.Info("listing authorized",
		zap.Int64("agent_id", result.AgentID),
		zap.String("reason", string(result.Reason)),
		zap.String("request_id", middleware.GetRequestID(c)),
	)

	response.Success(c, http.StatusOK, "listing authorized", result)
}
