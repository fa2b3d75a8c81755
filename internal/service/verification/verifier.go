// internal/service/verification/verifier.go
package verification

import (
	"context"
	"fmt"
	"strings"

	"rental-agents-service/internal/domain/agent"
	xerrors "rental-agents-service/internal/pkg/errors"
)

// IdentityVerifier is the external KYC provider.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, doc Document) (*Result, error)
}

type Document struct {
	UserID      int64
	IDType      agent.IDType
	IDNumber    string
	SelfieImage string
	FullName    string
	DateOfBirth string
}

// Result is the provider's verdict. Pending means the answer will arrive
// later through the webhook.
type Result struct {
	Approved  bool
	Pending   bool
	Reference string
	Reason    string
}

// ValidateDocument applies the per-document requirements before anything is
// sent to the provider.
func ValidateDocument(req *agent.SubmitVerificationRequest) error {
	if strings.TrimSpace(req.IDNumber) == "" {
		return fmt.Errorf("id_number is required: %w", xerrors.ErrInvalidInput)
	}

	switch req.IDType {
	case agent.IDTypeNIN, agent.IDTypeBVN:
		if req.SelfieImage == "" {
			return fmt.Errorf("selfie image is required for %s verification: %w", req.IDType, xerrors.ErrInvalidInput)
		}
	case agent.IDTypeDriversLicense:
		if strings.TrimSpace(req.FullName) == "" || req.DateOfBirth == "" {
			return fmt.Errorf("full name and date of birth are required for driver's license verification: %w", xerrors.ErrInvalidInput)
		}
	case agent.IDTypePassport:
	default:
		return fmt.Errorf("unsupported id type %q: %w", req.IDType, xerrors.ErrInvalidInput)
	}
	return nil
}

// MaskIDNumber hides the last four characters.
func MaskIDNumber(id string) string {
	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	return id[:len(id)-4] + "****"
}
