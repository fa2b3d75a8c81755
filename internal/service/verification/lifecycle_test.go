package verification

import (
	"database/sql"
	"testing"
	"time"

	"rental-agents-service/internal/domain/agent"
	xerrors "rental-agents-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const trial = 14 * 24 * time.Hour

func TestMarkVerifiedStartsTrial(t *testing.T) {
	a := agent.NewAccount(1, agent.VerificationPending)
	a.Subscription.ProcessorCustomerID = sql.NullString{String: "cus_123", Valid: true}

	require.NoError(t, MarkVerified(a, t0, trial))

	assert.Equal(t, agent.VerificationVerified, a.VerificationStatus)
	assert.Equal(t, t0, a.VerifiedAt.Time)
	assert.Equal(t, agent.SubscriptionTrial, a.Subscription.Status)
	assert.Equal(t, agent.PlanTrial, a.Subscription.Plan)
	assert.Equal(t, t0, a.Subscription.TrialStartsAt.Time)
	assert.Equal(t, t0.Add(trial), a.Subscription.TrialEndsAt.Time)
	assert.True(t, a.Subscription.TrialEndsAt.Time.After(a.Subscription.TrialStartsAt.Time))
	assert.Equal(t, "cus_123", a.Subscription.ProcessorCustomerID.String)
}

func TestMarkVerifiedTwiceFailsAndLeavesStateUnchanged(t *testing.T) {
	a := agent.NewAccount(1, agent.VerificationPending)
	require.NoError(t, MarkVerified(a, t0, trial))
	before := *a

	err := MarkVerified(a, t0.Add(48*time.Hour), trial)

	assert.ErrorIs(t, err, xerrors.ErrAlreadyVerified)
	assert.Equal(t, before, *a)
}

func TestMarkVerifiedDoesNotRestartStartedSubscription(t *testing.T) {
	a := agent.NewAccount(1, agent.VerificationNotVerified)
	a.Subscription.Status = agent.SubscriptionActive
	a.Subscription.Plan = agent.PlanBasic
	a.Subscription.CurrentPeriodEnd = agent.NullTime(t0.Add(30 * 24 * time.Hour))

	require.NoError(t, MarkVerified(a, t0, trial))

	assert.Equal(t, agent.SubscriptionActive, a.Subscription.Status)
	assert.Equal(t, agent.PlanBasic, a.Subscription.Plan)
	assert.False(t, a.Subscription.TrialStartsAt.Valid)
}

func TestMarkVerifiedRejectsNonPositiveTrial(t *testing.T) {
	a := agent.NewAccount(1, agent.VerificationPending)

	err := MarkVerified(a, t0, 0)

	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Equal(t, agent.VerificationPending, a.VerificationStatus)
	assert.False(t, a.VerifiedAt.Valid)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    agent.VerificationStatus
		apply   func(*agent.Account) error
		want    agent.VerificationStatus
		wantErr error
	}{
		{"reject pending", agent.VerificationPending, MarkRejected, agent.VerificationRejected, nil},
		{"reject not verified", agent.VerificationNotVerified, MarkRejected, agent.VerificationNotVerified, xerrors.ErrInvalidTransition},
		{"reject verified", agent.VerificationVerified, MarkRejected, agent.VerificationVerified, xerrors.ErrInvalidTransition},
		{"resubmit rejected", agent.VerificationRejected, Resubmit, agent.VerificationPending, nil},
		{"resubmit pending", agent.VerificationPending, Resubmit, agent.VerificationPending, xerrors.ErrInvalidTransition},
		{"resubmit verified", agent.VerificationVerified, Resubmit, agent.VerificationVerified, xerrors.ErrInvalidTransition},
		{"submit not verified", agent.VerificationNotVerified, Submit, agent.VerificationPending, nil},
		{"submit rejected", agent.VerificationRejected, Submit, agent.VerificationRejected, xerrors.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := agent.NewAccount(1, tt.from)
			err := tt.apply(a)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, a.VerificationStatus)
			assert.Equal(t, agent.SubscriptionPendingVerification, a.Subscription.Status)
		})
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name string
		req  agent.SubmitVerificationRequest
		ok   bool
	}{
		{"nin with selfie", agent.SubmitVerificationRequest{IDType: agent.IDTypeNIN, IDNumber: "12345678901", SelfieImage: "data:image/png;base64,AA=="}, true},
		{"nin without selfie", agent.SubmitVerificationRequest{IDType: agent.IDTypeNIN, IDNumber: "12345678901"}, false},
		{"bvn without selfie", agent.SubmitVerificationRequest{IDType: agent.IDTypeBVN, IDNumber: "22222222222"}, false},
		{"license complete", agent.SubmitVerificationRequest{IDType: agent.IDTypeDriversLicense, IDNumber: "ABC12345", FullName: "Ada Obi", DateOfBirth: "1990-01-01"}, true},
		{"license without dob", agent.SubmitVerificationRequest{IDType: agent.IDTypeDriversLicense, IDNumber: "ABC12345", FullName: "Ada Obi"}, false},
		{"passport", agent.SubmitVerificationRequest{IDType: agent.IDTypePassport, IDNumber: "A1234567"}, true},
		{"blank id number", agent.SubmitVerificationRequest{IDType: agent.IDTypePassport, IDNumber: "  "}, false},
		{"unknown type", agent.SubmitVerificationRequest{IDType: "voter_card", IDNumber: "1234"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(&tt.req)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
			}
		})
	}
}

func TestMaskIDNumber(t *testing.T) {
	assert.Equal(t, "1234567****", MaskIDNumber("12345678901"))
	assert.Equal(t, "***", MaskIDNumber("123"))
}
