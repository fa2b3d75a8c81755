// internal/service/subscription/manager.go
package subscription

import (
	"fmt"
	"time"

	"rental-agents-service/internal/domain/agent"
	xerrors "rental-agents-service/internal/pkg/errors"
)

// Activate starts a paid period of periodLength from now. Trial fields and
// free weeks are left as they are.
func Activate(a *agent.Account, plan agent.Plan, periodLength time.Duration, now time.Time) error {
	if !a.IsVerified() {
		return xerrors.ErrNotVerified
	}
	if periodLength <= 0 {
		return fmt.Errorf("period length must be positive: %w", xerrors.ErrInvalidInput)
	}
	return activateUntil(a, plan, now.Add(periodLength))
}

func activateUntil(a *agent.Account, plan agent.Plan, end time.Time) error {
	if !a.IsVerified() {
		return xerrors.ErrNotVerified
	}
	if plan != agent.PlanBasic && plan != agent.PlanPremium {
		return fmt.Errorf("unknown plan %q: %w", plan, xerrors.ErrInvalidInput)
	}
	a.Subscription.Status = agent.SubscriptionActive
	a.Subscription.Plan = plan
	a.Subscription.CurrentPeriodEnd = agent.NullTime(end)
	a.Subscription.CancelledAt.Valid = false
	return nil
}

// Renew extends the paid period from whichever is later: now or the
// current period end.
func Renew(a *agent.Account, cycle agent.BillingCycle, now time.Time) error {
	if !a.IsVerified() {
		return xerrors.ErrNotVerified
	}
	sub := a.Subscription
	if sub.Plan != agent.PlanBasic && sub.Plan != agent.PlanPremium {
		return fmt.Errorf("no paid plan to renew: %w", xerrors.ErrInvalidTransition)
	}

	start := now
	if sub.CurrentPeriodEnd.Valid && sub.CurrentPeriodEnd.Time.After(now) {
		start = sub.CurrentPeriodEnd.Time
	}
	end, err := PeriodEnd(start, cycle)
	if err != nil {
		return err
	}
	return activateUntil(a, sub.Plan, end)
}

// Cancel ends the paid subscription immediately.
func Cancel(a *agent.Account, now time.Time) error {
	if a.Subscription.Status != agent.SubscriptionActive {
		return fmt.Errorf("%s subscription cannot be cancelled: %w", a.Subscription.Status, xerrors.ErrInvalidTransition)
	}
	a.Subscription.Status = agent.SubscriptionCancelled
	a.Subscription.CancelledAt = agent.NullTime(now)
	return nil
}

// PeriodEnd uses calendar arithmetic, so a monthly period started on the 31st
// follows time.AddDate normalization.
func PeriodEnd(start time.Time, cycle agent.BillingCycle) (time.Time, error) {
	switch cycle {
	case agent.BillingWeekly:
		return start.AddDate(0, 0, 7), nil
	case agent.BillingMonthly:
		return start.AddDate(0, 1, 0), nil
	case agent.BillingQuarterly:
		return start.AddDate(0, 3, 0), nil
	case agent.BillingYearly:
		return start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown billing cycle %q: %w", cycle, xerrors.ErrInvalidInput)
	}
}
