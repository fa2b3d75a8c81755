// internal/pkg/response/errors.go
package response

import (
	"errors"
	"net/http"

	xerrors "rental-agents-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

type errorCase struct {
	target  error
	status  int
	message string
}

// errorCases is checked in order; the first errors.Is match wins.
var errorCases = []errorCase{
	{xerrors.ErrNotFound, http.StatusNotFound, "agent profile not found"},
	{xerrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{xerrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	{xerrors.ErrInvalidInput, http.StatusBadRequest, "invalid request"},
	{xerrors.ErrBadRequest, http.StatusBadRequest, "invalid request"},
	{xerrors.ErrConflict, http.StatusConflict, "you already have an agent profile"},
	{xerrors.ErrDuplicateEntry, http.StatusConflict, "duplicate entry"},
	{xerrors.ErrRateLimited, http.StatusTooManyRequests, "too many requests"},
	{xerrors.ErrAlreadyVerified, http.StatusConflict, "agent is already verified"},
	{xerrors.ErrAlreadyReferred, http.StatusConflict, "you have already used a referral code"},
	{xerrors.ErrInvalidReferralCode, http.StatusBadRequest, "invalid or inactive referral code"},
	{xerrors.ErrSelfReferral, http.StatusBadRequest, "you cannot use your own referral code"},
	{xerrors.ErrNotVerified, http.StatusForbidden, "agent must be verified first"},
	{xerrors.ErrInvalidTransition, http.StatusConflict, "operation not allowed in the current state"},
	{xerrors.ErrConcurrentModification, http.StatusConflict, "account was updated concurrently, please retry"},
	{xerrors.ErrCodeGenerationExhausted, http.StatusServiceUnavailable, "could not allocate a referral code, please retry"},
	{xerrors.ErrReferralCodeTaken, http.StatusServiceUnavailable, "could not allocate a referral code, please retry"},
}

// MapError resolves err to an HTTP status and user-facing message. Unknown
// errors are 500 with fallback as the message.
func MapError(err error, fallback string) (int, string) {
	for _, ec := range errorCases {
		if errors.Is(err, ec.target) {
			return ec.status, ec.message
		}
	}
	return http.StatusInternalServerError, fallback
}

// FromError writes the envelope for err. Internal error text is not
// exposed on 500s.
func FromError(c *gin.Context, fallback string, err error) {
	status, message := MapError(err, fallback)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		Error(c, status, message, xerrors.ErrInternal)
		return
	}
	Error(c, status, message, err)
}
