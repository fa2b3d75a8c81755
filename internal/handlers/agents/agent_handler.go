// internal/handlers/agents/agent_handler.go
package agents

import (
	"net/http"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/middleware"
	"rental-agents-service/internal/pkg/response"
	service "rental-agents-service/internal/service/agent"

	"github.com/gin-gonic/gin"
)

type AgentHandler struct {
	agentService *service.AgentService
}

func NewAgentHandler(agentService *service.AgentService) *AgentHandler {
	return &AgentHandler{
		agentService: agentService,
	}
}

// Apply creates the caller's agent profile
func (h *AgentHandler) Apply(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	var req agent.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	a, err := h.agentService.Apply(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, "failed to create agent profile", err)
		return
	}

	response.Success(c, http.StatusCreated, "agent application submitted", a.View())
}

// Profile returns the caller's agent profile
func (h *AgentHandler) Profile(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	a, err := h.agentService.Profile(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to load agent profile", err)
		return
	}

	response.Success(c, http.StatusOK, "agent profile retrieved", a.View())
}

// Eligibility reports whether the caller may create a listing right now
func (h *AgentHandler) Eligibility(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	result, err := h.agentService.Eligibility(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to check listing eligibility", err)
		return
	}

	response.Success(c, http.StatusOK, result.Message, result)
}
