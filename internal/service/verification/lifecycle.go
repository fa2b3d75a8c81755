// internal/service/verification/lifecycle.go
package verification

import (
	"fmt"
	"time"

	"rental-agents-service/internal/domain/agent"
	xerrors "rental-agents-service/internal/pkg/errors"
)

// Transitions:
//
//	not_verified -> pending -> verified | rejected
//	rejected -> pending
//
// verified is terminal.

// MarkVerified moves the account into verified and, when the subscription has
// not started yet, opens the trial window. It mutates a only on success.
func MarkVerified(a *agent.Account, now time.Time, trialDuration time.Duration) error {
	if a.VerificationStatus == agent.VerificationVerified {
		return xerrors.ErrAlreadyVerified
	}
	if trialDuration <= 0 {
		return fmt.Errorf("trial duration must be positive: %w", xerrors.ErrInvalidInput)
	}

	a.VerificationStatus = agent.VerificationVerified
	a.VerifiedAt = agent.NullTime(now)

	if a.Subscription.Status == agent.SubscriptionPendingVerification {
		// Processor identifiers stay as they are.
		a.Subscription.Status = agent.SubscriptionTrial
		a.Subscription.Plan = agent.PlanTrial
		a.Subscription.TrialStartsAt = agent.NullTime(now)
		a.Subscription.TrialEndsAt = agent.NullTime(now.Add(trialDuration))
	}
	return nil
}

// MarkRejected is allowed only from pending and leaves the subscription alone.
func MarkRejected(a *agent.Account) error {
	if a.VerificationStatus != agent.VerificationPending {
		return transitionError(a.VerificationStatus, agent.VerificationRejected)
	}
	a.VerificationStatus = agent.VerificationRejected
	return nil
}

// Resubmit returns a rejected application to review.
func Resubmit(a *agent.Account) error {
	if a.VerificationStatus != agent.VerificationRejected {
		return transitionError(a.VerificationStatus, agent.VerificationPending)
	}
	a.VerificationStatus = agent.VerificationPending
	return nil
}

// Submit marks a not yet reviewed application as complete.
func Submit(a *agent.Account) error {
	if a.VerificationStatus != agent.VerificationNotVerified {
		return transitionError(a.VerificationStatus, agent.VerificationPending)
	}
	a.VerificationStatus = agent.VerificationPending
	return nil
}

func transitionError(from, to agent.VerificationStatus) error {
	return fmt.Errorf("%s -> %s: %w", from, to, xerrors.ErrInvalidTransition)
}
