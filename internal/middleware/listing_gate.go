// internal/middleware/listing_gate.go
package middleware

import (
	"context"
	"net/http"

	xerrors "rental-agents-service/internal/pkg/errors"
	"rental-agents-service/internal/pkg/response"
	agentsvc "rental-agents-service/internal/service/agent"

	"github.com/gin-gonic/gin"
)

// EligibilityChecker answers whether a user may list right now.
type EligibilityChecker interface {
	Eligibility(ctx context.Context, userID int64) (*agentsvc.EligibilityResult, error)
}

// ListingGate stops requests from agents who may not create listings.
// MUST be used after Auth().
func ListingGate(checker EligibilityChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := MustGetIdentityID(c)

		result, err := checker.Eligibility(c.Request.Context(), userID)
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.Error(c, http.StatusForbidden, "agent profile not found", err)
			return
		}
		if err != nil {
			response.FromError(c, "failed to check listing eligibility", err)
			return
		}

		if !result.Allowed {
			response.Error(c, http.StatusForbidden, result.Message, nil, result)
			return
		}

		c.Set(ctxEligibility, result)
		c.Next()
	}
}

// GetEligibility returns the decision ListingGate stored for this request.
func GetEligibility(c *gin.Context) (*agentsvc.EligibilityResult, bool) {
	return value[*agentsvc.EligibilityResult](c, ctxEligibility)
}
