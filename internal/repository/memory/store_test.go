package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/pkg/clock"
	xerrors "rental-agents-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newAccount(t *testing.T, s *Store, userID int64, code string) *agent.Account {
	t.Helper()
	a := agent.NewAccount(userID, agent.VerificationPending)
	a.ReferralCode = code
	require.NoError(t, s.Create(context.Background(), a))
	return a
}

func TestCreateAssignsIdentityAndEnforcesUniqueness(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	ctx := context.Background()

	a := newAccount(t, s, 10, "REFAAAA1111")
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(1), a.Version)
	assert.Equal(t, now, a.CreatedAt)

	err := s.Create(ctx, &agent.Account{UserID: 10, ReferralCode: "REFBBBB2222"})
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	err = s.Create(ctx, &agent.Account{UserID: 11, ReferralCode: "REFAAAA1111"})
	assert.ErrorIs(t, err, xerrors.ErrReferralCodeTaken)
}

func TestLoadReturnsCopies(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	ctx := context.Background()
	a := newAccount(t, s, 10, "REFAAAA1111")

	loaded, err := s.Load(ctx, a.ID)
	require.NoError(t, err)
	loaded.FreeListingWeeks = 99

	again, err := s.Load(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.FreeListingWeeks)
}

func TestSaveVersionCheck(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	ctx := context.Background()
	a := newAccount(t, s, 10, "REFAAAA1111")

	first, _ := s.Load(ctx, a.ID)
	second, _ := s.Load(ctx, a.ID)

	first.TotalReferrals = 1
	require.NoError(t, s.Save(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.TotalReferrals = 5
	assert.ErrorIs(t, s.Save(ctx, second), xerrors.ErrConcurrentModification)

	stored, _ := s.Load(ctx, a.ID)
	assert.Equal(t, 1, stored.TotalReferrals)
}

func TestFindByReferralCode(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	ctx := context.Background()
	newAccount(t, s, 10, "REFAAAA1111")

	got, err := s.FindByReferralCode(ctx, "REFAAAA1111")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.UserID)

	_, err = s.FindByReferralCode(ctx, "REFZZZZ9999")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	exists, err := s.ReferralCodeExists(ctx, "REFZZZZ9999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	ctx := context.Background()
	a := newAccount(t, s, 10, "REFAAAA1111")
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, repo agent.Repository) error {
		acc, err := repo.Load(ctx, a.ID)
		if err != nil {
			return err
		}
		acc.FreeListingWeeks = 3
		if err := repo.Save(ctx, acc); err != nil {
			return err
		}
		if err := repo.CreateReferralRecord(ctx, &agent.ReferralRecord{ID: "r1", NewAgentID: 2}); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	stored, _ := s.Load(ctx, a.ID)
	assert.Equal(t, 0, stored.FreeListingWeeks)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, 0, s.RecordCount())
}

func TestWithinTxRetriesConcurrentModification(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	calls := 0

	err := s.WithinTx(context.Background(), func(context.Context, agent.Repository) error {
		calls++
		if calls < agent.MaxTxAttempts {
			return xerrors.ErrConcurrentModification
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, agent.MaxTxAttempts, calls)
}

func TestWithinTxGivesUpAfterMaxAttempts(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	calls := 0

	err := s.WithinTx(context.Background(), func(context.Context, agent.Repository) error {
		calls++
		return xerrors.ErrConcurrentModification
	})

	assert.ErrorIs(t, err, xerrors.ErrConcurrentModification)
	assert.Equal(t, agent.MaxTxAttempts, calls)
}

func TestCreateReferralRecordOnePerNewAgent(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	ctx := context.Background()

	require.NoError(t, s.CreateReferralRecord(ctx, &agent.ReferralRecord{ID: "r1", ReferringAgentID: 1, NewAgentID: 2}))
	err := s.CreateReferralRecord(ctx, &agent.ReferralRecord{ID: "r2", ReferringAgentID: 3, NewAgentID: 2})
	assert.ErrorIs(t, err, xerrors.ErrAlreadyReferred)

	recs, err := s.ListReferralRecords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, now, recs[0].CreatedAt)
}

func TestListMissingReferralCode(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	newAccount(t, s, 10, "")
	newAccount(t, s, 11, "REFAAAA1111")
	newAccount(t, s, 12, "")
	newAccount(t, s, 13, "")

	got, err := s.ListMissingReferralCode(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(10), got[0].UserID)
	assert.Equal(t, int64(12), got[1].UserID)
}

func TestExpireLapsedIsIdempotent(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	ctx := context.Background()

	lapsed := newAccount(t, s, 10, "REFAAAA1111")
	lapsed.Subscription.Status = agent.SubscriptionActive
	lapsed.Subscription.CurrentPeriodEnd = agent.NullTime(now.Add(-time.Hour))
	require.NoError(t, s.Save(ctx, lapsed))

	current := newAccount(t, s, 11, "REFBBBB2222")
	current.Subscription.Status = agent.SubscriptionTrial
	current.Subscription.TrialStartsAt = agent.NullTime(now.Add(-24 * time.Hour))
	current.Subscription.TrialEndsAt = agent.NullTime(now.Add(24 * time.Hour))
	require.NoError(t, s.Save(ctx, current))

	n, err := s.ExpireLapsed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.ExpireLapsed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, _ := s.Load(ctx, lapsed.ID)
	assert.Equal(t, agent.SubscriptionExpired, got.Subscription.Status)
	got, _ = s.Load(ctx, current.ID)
	assert.Equal(t, agent.SubscriptionTrial, got.Subscription.Status)
}

func TestListByVerificationStatus(t *testing.T) {
	s := NewStore(clock.Fixed(now))
	ctx := context.Background()
	newAccount(t, s, 1, "REFAAAA1111")
	newAccount(t, s, 2, "REFBBBB2222")
	v := agent.NewAccount(3, agent.VerificationVerified)
	require.NoError(t, s.Create(ctx, v))

	pending, err := s.ListByVerificationStatus(ctx, []agent.VerificationStatus{agent.VerificationPending}, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(1), pending[0].UserID)

	all, err := s.ListByVerificationStatus(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
