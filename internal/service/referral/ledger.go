// internal/service/referral/ledger.go
package referral

import (
	"context"
	"fmt"
	"time"

	"rental-agents-service/internal/domain/agent"
	xerrors "rental-agents-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

// Grant is the outcome of a successful referral.
type Grant struct {
	Referrer *agent.Account
	NewAgent *agent.Account
	Record   *agent.ReferralRecord
}

// resolveReferrer runs the checks shared by both referral paths. A new agent
// that has no ID yet is matched against the referrer by user.
func resolveReferrer(ctx context.Context, repo agent.Repository, newAgent *agent.Account, code string) (*agent.Account, error) {
	if newAgent.HasBeenReferred() {
		return nil, xerrors.ErrAlreadyReferred
	}
	if !IsWellFormed(code) {
		return nil, xerrors.ErrInvalidReferralCode
	}

	referrer, err := repo.FindByReferralCode(ctx, code)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.ErrInvalidReferralCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}

	if referrer.UserID == newAgent.UserID || (newAgent.ID != 0 && referrer.ID == newAgent.ID) {
		return nil, xerrors.ErrSelfReferral
	}
	if !referrer.IsVerified() {
		return nil, xerrors.ErrInvalidReferralCode
	}
	return referrer, nil
}

// reward credits the referrer and writes the ledger record. newAgent must be
// persisted already.
func reward(ctx context.Context, repo agent.Repository, referrer, newAgent *agent.Account, code string, now time.Time) (*agent.ReferralRecord, error) {
	referrer.FreeListingWeeks += agent.ReferralRewardWeeks
	referrer.TotalReferrals++
	if err := repo.Save(ctx, referrer); err != nil {
		return nil, err
	}

	rec := &agent.ReferralRecord{
		ID:               ulid.Make().String(),
		ReferringAgentID: referrer.ID,
		NewAgentID:       newAgent.ID,
		ReferralCodeUsed: code,
		RewardWeeks:      agent.ReferralRewardWeeks,
		CreatedAt:        now,
	}
	if err := repo.CreateReferralRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// applyExisting applies code to an account that already exists. All writes go
// through repo and must share one transaction.
func applyExisting(ctx context.Context, repo agent.Repository, newAgent *agent.Account, code string, now time.Time) (*Grant, error) {
	referrer, err := resolveReferrer(ctx, repo, newAgent, code)
	if err != nil {
		return nil, err
	}

	newAgent.ReferredByCode = agent.NullString(code)
	if err := repo.Save(ctx, newAgent); err != nil {
		return nil, err
	}

	rec, err := reward(ctx, repo, referrer, newAgent, code, now)
	if err != nil {
		return nil, err
	}
	return &Grant{Referrer: referrer, NewAgent: newAgent, Record: rec}, nil
}

// GrantSignupReferral is the onboarding variant: it creates newAccount with
// ReferredByCode set and rewards the referrer inside the caller's transaction.
func GrantSignupReferral(ctx context.Context, repo agent.Repository, newAccount *agent.Account, code string, now time.Time) (*Grant, error) {
	if newAccount.ID != 0 {
		return nil, fmt.Errorf("signup referral on a persisted account: %w", xerrors.ErrInvalidInput)
	}

	referrer, err := resolveReferrer(ctx, repo, newAccount, code)
	if err != nil {
		return nil, err
	}

	newAccount.ReferredByCode = agent.NullString(code)
	if err := repo.Create(ctx, newAccount); err != nil {
		return nil, err
	}

	rec, err := reward(ctx, repo, referrer, newAccount, code, now)
	if err != nil {
		return nil, err
	}
	return &Grant{Referrer: referrer, NewAgent: newAccount, Record: rec}, nil
}
