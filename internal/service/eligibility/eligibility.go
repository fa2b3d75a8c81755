// Package eligibility decides whether an agent may publish a listing.
//
// CanList is the only place that rule lives. It is a pure projection over the
// account and the current time: no I/O, no mutation.
package eligibility

import (
	"fmt"
	"math"
	"time"

	"rental-agents-service/internal/domain/agent"
)

type Reason string

const (
	ReasonNotVerified          Reason = "not_verified"
	ReasonFreeReferralWeeks    Reason = "free_referral_weeks"
	ReasonActiveTrial          Reason = "active_trial"
	ReasonActiveSubscription   Reason = "active_subscription"
	ReasonGracePeriod          Reason = "grace_period"
	ReasonSubscriptionRequired Reason = "subscription_required"
)

// GracePeriod is measured from VerifiedAt and is fixed.
const GracePeriod = 7 * 24 * time.Hour

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

// CanList evaluates the eligibility sources in priority order; the first
// match wins. The order is a business decision and must not be rearranged.
func CanList(a *agent.Account, now time.Time) Decision {
	if a == nil || !a.IsVerified() {
		return Decision{Allowed: false, Reason: ReasonNotVerified}
	}

	if a.FreeListingWeeks > 0 {
		return Decision{Allowed: true, Reason: ReasonFreeReferralWeeks}
	}

	sub := a.Subscription
	if sub.Status == agent.SubscriptionTrial && sub.TrialStartsAt.Valid && sub.TrialEndsAt.Valid &&
		!now.Before(sub.TrialStartsAt.Time) && !now.After(sub.TrialEndsAt.Time) {
		return Decision{Allowed: true, Reason: ReasonActiveTrial}
	}

	if sub.Status == agent.SubscriptionActive && sub.CurrentPeriodEnd.Valid &&
		!now.After(sub.CurrentPeriodEnd.Time) {
		return Decision{Allowed: true, Reason: ReasonActiveSubscription}
	}

	if inGracePeriod(a, now) {
		return Decision{Allowed: true, Reason: ReasonGracePeriod}
	}

	return Decision{Allowed: false, Reason: ReasonSubscriptionRequired}
}

func inGracePeriod(a *agent.Account, now time.Time) bool {
	if !a.VerifiedAt.Valid {
		return false
	}
	return !now.After(a.VerifiedAt.Time.Add(GracePeriod))
}

var messages = map[Reason]string{
	ReasonNotVerified:          "Your agent account is not verified yet. Please complete verification to create listings.",
	ReasonFreeReferralWeeks:    "You are listing with free weeks earned from referrals.",
	ReasonActiveTrial:          "You are listing during your free trial.",
	ReasonActiveSubscription:   "Your subscription is active.",
	ReasonGracePeriod:          "You are within the grace period after verification.",
	ReasonSubscriptionRequired: "Your trial and free weeks have been used; please subscribe.",
}

// Message returns the user-facing explanation for a reason code.
func Message(r Reason) string {
	if m, ok := messages[r]; ok {
		return m
	}
	return "Listing is not available for your account."
}

// GracePeriodDaysRemaining counts whole days left in the grace window, zero
// once it has passed or when the agent was never verified.
func GracePeriodDaysRemaining(a *agent.Account, now time.Time) int {
	if a == nil || !a.VerifiedAt.Valid {
		return 0
	}
	return daysUntil(a.VerifiedAt.Time.Add(GracePeriod), now)
}

// Summary is the subscription status view shown to the agent.
type Summary struct {
	Decision
	Message            string                   `json:"message"`
	Label              string                   `json:"label"`
	SubscriptionStatus agent.SubscriptionStatus `json:"subscription_status"`
	Plan               agent.Plan               `json:"plan"`
	FreeListingWeeks   int                      `json:"free_listing_weeks"`
	TrialEndsAt        *time.Time               `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd   *time.Time               `json:"current_period_end,omitempty"`
	DaysRemaining      int                      `json:"days_remaining"`
}

// Summarize projects the decision into a display summary. DaysRemaining
// refers to whichever source granted access.
func Summarize(a *agent.Account, now time.Time) Summary {
	d := CanList(a, now)
	s := Summary{Decision: d, Message: Message(d.Reason)}
	if a == nil {
		s.Label = "Not Verified"
		return s
	}

	sub := a.Subscription
	s.SubscriptionStatus = sub.EffectiveStatus(now)
	s.Plan = sub.Plan
	s.FreeListingWeeks = a.FreeListingWeeks
	if sub.TrialEndsAt.Valid {
		t := sub.TrialEndsAt.Time
		s.TrialEndsAt = &t
	}
	if sub.CurrentPeriodEnd.Valid {
		t := sub.CurrentPeriodEnd.Time
		s.CurrentPeriodEnd = &t
	}

	switch d.Reason {
	case ReasonNotVerified:
		s.Label = "Not Verified"
	case ReasonFreeReferralWeeks:
		s.Label = fmt.Sprintf("Free Weeks: %d", a.FreeListingWeeks)
	case ReasonActiveTrial:
		s.DaysRemaining = daysUntil(sub.TrialEndsAt.Time, now)
		s.Label = fmt.Sprintf("Trial: %d days left", s.DaysRemaining)
	case ReasonActiveSubscription:
		s.DaysRemaining = daysUntil(sub.CurrentPeriodEnd.Time, now)
		s.Label = "Active Subscription"
	case ReasonGracePeriod:
		s.DaysRemaining = GracePeriodDaysRemaining(a, now)
		s.Label = fmt.Sprintf("Grace Period: %d days left", s.DaysRemaining)
	default:
		s.Label = "Subscription Required"
	}
	return s
}

func daysUntil(end, now time.Time) int {
	if !end.After(now) {
		return 0
	}
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}
