package subscription

import (
	"context"
	"testing"
	"time"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/events"
	"rental-agents-service/internal/pkg/clock"
	xerrors "rental-agents-service/internal/pkg/errors"
	"rental-agents-service/internal/repository/memory"
	"rental-agents-service/internal/service/eligibility"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var now = time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

func verified(at time.Time) *agent.Account {
	a := agent.NewAccount(1, agent.VerificationVerified)
	a.VerifiedAt = agent.NullTime(at)
	a.Subscription.Status = agent.SubscriptionTrial
	a.Subscription.TrialStartsAt = agent.NullTime(at)
	a.Subscription.TrialEndsAt = agent.NullTime(at.Add(14 * 24 * time.Hour))
	a.FreeListingWeeks = 2
	return a
}

func TestActivateRequiresVerified(t *testing.T) {
	for _, st := range []agent.VerificationStatus{agent.VerificationNotVerified, agent.VerificationPending, agent.VerificationRejected} {
		a := agent.NewAccount(1, st)
		err := Activate(a, agent.PlanBasic, 30*24*time.Hour, now)
		assert.ErrorIs(t, err, xerrors.ErrNotVerified, st)
		assert.Equal(t, agent.SubscriptionPendingVerification, a.Subscription.Status)
	}
}

func TestActivateKeepsTrialAndFreeWeeks(t *testing.T) {
	a := verified(now.Add(-3 * 24 * time.Hour))
	trialBefore := a.Subscription.TrialEndsAt

	require.NoError(t, Activate(a, agent.PlanPremium, 30*24*time.Hour, now))

	assert.Equal(t, agent.SubscriptionActive, a.Subscription.Status)
	assert.Equal(t, agent.PlanPremium, a.Subscription.Plan)
	assert.Equal(t, now.Add(30*24*time.Hour), a.Subscription.CurrentPeriodEnd.Time)
	assert.Equal(t, trialBefore, a.Subscription.TrialEndsAt)
	assert.Equal(t, 2, a.FreeListingWeeks)
}

func TestActivateRejectsBadInput(t *testing.T) {
	a := verified(now)
	assert.ErrorIs(t, Activate(a, agent.PlanTrial, time.Hour, now), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, Activate(a, agent.PlanBasic, 0, now), xerrors.ErrInvalidInput)
	assert.Equal(t, agent.SubscriptionTrial, a.Subscription.Status)
}

func TestPeriodEnd(t *testing.T) {
	tests := []struct {
		cycle agent.BillingCycle
		want  time.Time
	}{
		{agent.BillingWeekly, time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)},
		{agent.BillingMonthly, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
		{agent.BillingQuarterly, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)},
		{agent.BillingYearly, time.Date(2027, 1, 31, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.cycle), func(t *testing.T) {
			got, err := PeriodEnd(now, tt.cycle)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PeriodEnd(now, "daily")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestRenewExtendsFromLaterOfNowAndPeriodEnd(t *testing.T) {
	a := verified(now.Add(-60 * 24 * time.Hour))
	require.NoError(t, Activate(a, agent.PlanBasic, 10*24*time.Hour, now))

	require.NoError(t, Renew(a, agent.BillingWeekly, now))
	assert.Equal(t, now.Add(17*24*time.Hour), a.Subscription.CurrentPeriodEnd.Time)

	later := now.Add(40 * 24 * time.Hour)
	require.NoError(t, Renew(a, agent.BillingWeekly, later))
	assert.Equal(t, later.Add(7*24*time.Hour), a.Subscription.CurrentPeriodEnd.Time)
}

func TestRenewWithoutPaidPlan(t *testing.T) {
	a := verified(now)
	assert.ErrorIs(t, Renew(a, agent.BillingMonthly, now), xerrors.ErrInvalidTransition)
}

func TestCancel(t *testing.T) {
	a := verified(now)
	assert.ErrorIs(t, Cancel(a, now), xerrors.ErrInvalidTransition)

	require.NoError(t, Activate(a, agent.PlanBasic, 30*24*time.Hour, now))
	require.NoError(t, Cancel(a, now.Add(time.Hour)))
	assert.Equal(t, agent.SubscriptionCancelled, a.Subscription.Status)
	assert.Equal(t, now.Add(time.Hour), a.Subscription.CancelledAt.Time)

	require.NoError(t, Renew(a, agent.BillingMonthly, now.Add(2*time.Hour)))
	assert.Equal(t, agent.SubscriptionActive, a.Subscription.Status)
	assert.False(t, a.Subscription.CancelledAt.Valid)
}

func newService(t *testing.T, at *time.Time) (*SubscriptionService, *memory.Store, *events.Recorder) {
	t.Helper()
	clk := clock.Func(func() time.Time { return *at })
	store := memory.NewStore(clk)
	rec := &events.Recorder{}
	return NewSubscriptionService(store, rec, clk, nil, zaptest.NewLogger(t)), store, rec
}

func TestServiceLifecycle(t *testing.T) {
	at := now
	svc, store, rec := newService(t, &at)
	ctx := context.Background()

	a := verified(now.Add(-30 * 24 * time.Hour))
	a.FreeListingWeeks = 0
	require.NoError(t, store.Create(ctx, a))

	summary, err := svc.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, eligibility.ReasonSubscriptionRequired, summary.Reason)
	assert.Equal(t, agent.SubscriptionExpired, summary.SubscriptionStatus)

	got, err := svc.ActivateForUser(ctx, 1, &agent.ActivateSubscriptionRequest{
		Plan:                agent.PlanBasic,
		BillingCycle:        agent.BillingMonthly,
		ProcessorCustomerID: "cus_1",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), got.Subscription.CurrentPeriodEnd.Time)
	assert.Equal(t, "cus_1", got.Subscription.ProcessorCustomerID.String)
	assert.Len(t, rec.OfType(agent.EventSubscriptionActivated), 1)

	summary, err = svc.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, eligibility.Decision{Allowed: true, Reason: eligibility.ReasonActiveSubscription}, summary.Decision)

	at = now.Add(60 * 24 * time.Hour)
	summary, err = svc.Status(ctx, 1)
	require.NoError(t, err)
	assert.False(t, summary.Allowed)

	n, err := svc.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = svc.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err = svc.Renew(ctx, 1, &agent.RenewSubscriptionRequest{BillingCycle: agent.BillingWeekly})
	require.NoError(t, err)
	assert.Equal(t, at.Add(7*24*time.Hour), got.Subscription.CurrentPeriodEnd.Time)

	got, err = svc.Cancel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, agent.SubscriptionCancelled, got.Subscription.Status)
}

func TestServiceActivateUnverified(t *testing.T) {
	at := now
	svc, store, rec := newService(t, &at)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, agent.NewAccount(1, agent.VerificationPending)))

	_, err := svc.ActivateForUser(ctx, 1, &agent.ActivateSubscriptionRequest{Plan: agent.PlanBasic, BillingCycle: agent.BillingMonthly})

	assert.ErrorIs(t, err, xerrors.ErrNotVerified)
	assert.Empty(t, rec.Events())
}
