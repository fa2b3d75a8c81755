package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rental-agents-service/internal/domain/agent"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func verifiedAt(at time.Time) *agent.Account {
	a := agent.NewAccount(1, agent.VerificationVerified)
	a.VerifiedAt = agent.NullTime(at)
	return a
}

func withTrial(a *agent.Account, start time.Time, d time.Duration) *agent.Account {
	a.Subscription.Status = agent.SubscriptionTrial
	a.Subscription.TrialStartsAt = agent.NullTime(start)
	a.Subscription.TrialEndsAt = agent.NullTime(start.Add(d))
	return a
}

func TestCanListUnverifiedAlwaysDenied(t *testing.T) {
	for _, status := range []agent.VerificationStatus{
		agent.VerificationNotVerified,
		agent.VerificationPending,
		agent.VerificationRejected,
	} {
		t.Run(string(status), func(t *testing.T) {
			a := agent.NewAccount(1, status)
			a.FreeListingWeeks = 4
			a.VerifiedAt = agent.NullTime(t0)
			a.Subscription.Status = agent.SubscriptionActive
			a.Subscription.CurrentPeriodEnd = agent.NullTime(t0.Add(30 * 24 * time.Hour))

			assert.Equal(t, Decision{Allowed: false, Reason: ReasonNotVerified}, CanList(a, t0.Add(time.Hour)))
		})
	}
}

func TestCanListNilAccount(t *testing.T) {
	assert.Equal(t, ReasonNotVerified, CanList(nil, t0).Reason)
}

func TestCanListFreeWeeksWinEvenWhenEverythingExpired(t *testing.T) {
	a := withTrial(verifiedAt(t0), t0, 14*24*time.Hour)
	a.FreeListingWeeks = 1
	a.Subscription.Status = agent.SubscriptionExpired

	d := CanList(a, t0.Add(365*24*time.Hour))

	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonFreeReferralWeeks, d.Reason)
}

func TestCanListPriorityOrder(t *testing.T) {
	now := t0.Add(2 * 24 * time.Hour)

	tests := []struct {
		name    string
		account func() *agent.Account
		want    Decision
	}{
		{
			name:    "free weeks beat trial",
			account: func() *agent.Account { a := withTrial(verifiedAt(t0), t0, 14*24*time.Hour); a.FreeListingWeeks = 2; return a },
			want:    Decision{true, ReasonFreeReferralWeeks},
		},
		{
			name:    "trial beats grace",
			account: func() *agent.Account { return withTrial(verifiedAt(t0), t0, 14*24*time.Hour) },
			want:    Decision{true, ReasonActiveTrial},
		},
		{
			name: "subscription beats grace",
			account: func() *agent.Account {
				a := verifiedAt(t0)
				a.Subscription.Status = agent.SubscriptionActive
				a.Subscription.CurrentPeriodEnd = agent.NullTime(t0.Add(30 * 24 * time.Hour))
				return a
			},
			want: Decision{true, ReasonActiveSubscription},
		},
		{
			name:    "grace when nothing else",
			account: func() *agent.Account { return verifiedAt(t0) },
			want:    Decision{true, ReasonGracePeriod},
		},
		{
			name: "trial not started yet falls through",
			account: func() *agent.Account {
				return withTrial(verifiedAt(t0.Add(-30*24*time.Hour)), now.Add(time.Hour), 14*24*time.Hour)
			},
			want: Decision{false, ReasonSubscriptionRequired},
		},
		{
			name: "cancelled subscription falls through",
			account: func() *agent.Account {
				a := verifiedAt(t0.Add(-30 * 24 * time.Hour))
				a.Subscription.Status = agent.SubscriptionCancelled
				a.Subscription.CurrentPeriodEnd = agent.NullTime(now.Add(10 * 24 * time.Hour))
				return a
			},
			want: Decision{false, ReasonSubscriptionRequired},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanList(tt.account(), now))
		})
	}
}

func TestCanListActiveSubscriptionLazyExpiry(t *testing.T) {
	a := verifiedAt(t0.Add(-60 * 24 * time.Hour))
	end := t0.Add(10 * 24 * time.Hour)
	a.Subscription.Status = agent.SubscriptionActive
	a.Subscription.CurrentPeriodEnd = agent.NullTime(end)

	assert.Equal(t, ReasonActiveSubscription, CanList(a, end).Reason)
	assert.Equal(t, ReasonSubscriptionRequired, CanList(a, end.Add(time.Second)).Reason)
}

func TestCanListGracePeriodBoundary(t *testing.T) {
	a := verifiedAt(t0)

	assert.Equal(t, Decision{true, ReasonGracePeriod}, CanList(a, t0.Add(7*24*time.Hour)))
	assert.Equal(t, Decision{false, ReasonSubscriptionRequired}, CanList(a, t0.Add(7*24*time.Hour+time.Second)))
}

func TestCanListTrialScenario(t *testing.T) {
	a := withTrial(verifiedAt(t0), t0, 14*24*time.Hour)

	assert.Equal(t, Decision{true, ReasonActiveTrial}, CanList(a, t0.Add(10*24*time.Hour)))
	assert.Equal(t, Decision{false, ReasonSubscriptionRequired}, CanList(a, t0.Add(20*24*time.Hour)))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Your trial and free weeks have been used; please subscribe.", Message(ReasonSubscriptionRequired))
	assert.NotEmpty(t, Message(Reason("unknown")))
}

func TestSummarize(t *testing.T) {
	a := withTrial(verifiedAt(t0), t0, 14*24*time.Hour)

	s := Summarize(a, t0.Add(4*24*time.Hour))
	assert.True(t, s.Allowed)
	assert.Equal(t, "Trial: 10 days left", s.Label)
	assert.Equal(t, 10, s.DaysRemaining)
	assert.Equal(t, agent.SubscriptionTrial, s.SubscriptionStatus)

	s = Summarize(a, t0.Add(20*24*time.Hour))
	assert.False(t, s.Allowed)
	assert.Equal(t, "Subscription Required", s.Label)
	assert.Equal(t, agent.SubscriptionExpired, s.SubscriptionStatus)
}

func TestGracePeriodDaysRemaining(t *testing.T) {
	a := verifiedAt(t0)

	assert.Equal(t, 7, GracePeriodDaysRemaining(a, t0))
	assert.Equal(t, 1, GracePeriodDaysRemaining(a, t0.Add(6*24*time.Hour+time.Hour)))
	assert.Equal(t, 0, GracePeriodDaysRemaining(a, t0.Add(8*24*time.Hour)))
	assert.Equal(t, 0, GracePeriodDaysRemaining(agent.NewAccount(2, agent.VerificationPending), t0))
}
