// internal/handlers/admin/agent_admin_handler.go
package admin

import (
	"net/http"
	"strconv"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/pkg/response"
	agentsvc "rental-agents-service/internal/service/agent"
	"rental-agents-service/internal/service/verification"

	"github.com/gin-gonic/gin"
)

type AgentAdminHandler struct {
	agentService        *agentsvc.AgentService
	verificationService *verification.VerificationService
}

func NewAgentAdminHandler(agentService *agentsvc.AgentService, verificationService *verification.VerificationService) *AgentAdminHandler {
	return &AgentAdminHandler{
		agentService:        agentService,
		verificationService: verificationService,
	}
}

// ListAgents returns the review queue, filtered by verification status
func (h *AgentAdminHandler) ListAgents(c *gin.Context) {
	var q agent.ListAgentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	accounts, err := h.agentService.ListByVerificationStatus(c.Request.Context(), q.Status, q.Limit)
	if err != nil {
		response.FromError(c, "failed to list agents", err)
		return
	}

	views := make([]*agent.ProfileView, 0, len(accounts))
	for i := range accounts {
		views = append(views, accounts[i].View())
	}
	response.Success(c, http.StatusOK, "agents retrieved", views)
}

func (h *AgentAdminHandler) GetAgent(c *gin.Context) {
	agentID, ok := parseAgentID(c)
	if !ok {
		return
	}

	a, err := h.agentService.Get(c.Request.Context(), agentID)
	if err != nil {
		response.FromError(c, "failed to load agent", err)
		return
	}

	response.Success(c, http.StatusOK, "agent retrieved", a.View())
}

// Verify approves an agent and starts the trial on first verification
func (h *AgentAdminHandler) Verify(c *gin.Context) {
	agentID, ok := parseAgentID(c)
	if !ok {
		return
	}

	a, err := h.verificationService.Approve(c.Request.Context(), agentID)
	if err != nil {
		response.FromError(c, "failed to verify agent", err)
		return
	}

	response.Success(c, http.StatusOK, "agent verified", a.View())
}

func (h *AgentAdminHandler) Reject(c *gin.Context) {
	agentID, ok := parseAgentID(c)
	if !ok {
		return
	}

	var req agent.RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ValidationError(c, "invalid request", err)
			return
		}
	}

	a, err := h.verificationService.Reject(c.Request.Context(), agentID, req.Reason)
	if err != nil {
		response.FromError(c, "failed to reject agent", err)
		return
	}

	response.Success(c, http.StatusOK, "agent rejected", a.View())
}

func parseAgentID(c *gin.Context) (int64, bool) {
	agentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || agentID <= 0 {
		response.ValidationError(c, "invalid agent ID", err)
		return 0, false
	}
	return agentID, true
}
