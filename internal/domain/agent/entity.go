// internal/domain/agent/entity.go
package agent

import (
	"database/sql"
	"time"
)

type VerificationStatus string

const (
	VerificationNotVerified VerificationStatus = "not_verified"
	VerificationPending     VerificationStatus = "pending"
	VerificationVerified    VerificationStatus = "verified"
	VerificationRejected    VerificationStatus = "rejected"
)

type SubscriptionStatus string

const (
	SubscriptionPendingVerification SubscriptionStatus = "pending_verification"
	SubscriptionTrial               SubscriptionStatus = "trial"
	SubscriptionActive              SubscriptionStatus = "active"
	SubscriptionExpired             SubscriptionStatus = "expired"
	SubscriptionCancelled           SubscriptionStatus = "cancelled"
)

type Plan string

const (
	PlanTrial   Plan = "trial"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// DefaultTrialDuration is the free trial granted on first verification.
// Overridable with TRIAL_DURATION. Older product copy also promised six
// months; 14 days stands until product settles it.
const DefaultTrialDuration = 14 * 24 * time.Hour

// ReferralRewardWeeks is credited to the referring agent per successful referral.
const ReferralRewardWeeks = 1

type Subscription struct {
	Status           SubscriptionStatus `json:"status" db:"subscription_status"`
	Plan             Plan               `json:"plan" db:"subscription_plan"`
	TrialStartsAt    sql.NullTime       `json:"trial_starts_at,omitempty" db:"trial_starts_at"`
	TrialEndsAt      sql.NullTime       `json:"trial_ends_at,omitempty" db:"trial_ends_at"`
	CurrentPeriodEnd sql.NullTime       `json:"current_period_end,omitempty" db:"current_period_end"`
	CancelledAt      sql.NullTime       `json:"cancelled_at,omitempty" db:"cancelled_at"`

	// Payment processor identifiers, owned by billing. Preserved across transitions.
	ProcessorCustomerID     sql.NullString `json:"-" db:"processor_customer_id"`
	ProcessorSubscriptionID sql.NullString `json:"-" db:"processor_subscription_id"`
}

// Account is the agent aggregate. Only the verification, referral and
// subscription services mutate the fields below the profile block.
type Account struct {
	ID     int64 `json:"id" db:"id"`
	UserID int64 `json:"user_id" db:"user_id"`

	// Profile
	Bio            sql.NullString `json:"bio,omitempty" db:"bio"`
	Address        string         `json:"address" db:"address"`
	WhatsappNumber string         `json:"whatsapp_number" db:"whatsapp_number"`

	// Verification
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	VerifiedAt         sql.NullTime       `json:"verified_at,omitempty" db:"verified_at"`

	// Referral
	ReferralCode     string         `json:"referral_code" db:"referral_code"`
	ReferredByCode   sql.NullString `json:"referred_by_code,omitempty" db:"referred_by_code"`
	FreeListingWeeks int            `json:"free_listing_weeks" db:"free_listing_weeks"`
	TotalReferrals   int            `json:"total_referrals" db:"total_referrals"`

	Subscription Subscription `json:"subscription"`

	// Optimistic concurrency token, bumped on every save.
	Version int64 `json:"-" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewAccount returns an account in its initial state: awaiting verification
// with no trial started.
func NewAccount(userID int64, status VerificationStatus) *Account {
	return &Account{
		UserID:             userID,
		VerificationStatus: status,
		Subscription: Subscription{
			Status: SubscriptionPendingVerification,
			Plan:   PlanTrial,
		},
	}
}

func (a *Account) IsVerified() bool {
	return a.VerificationStatus == VerificationVerified
}

func (a *Account) HasBeenReferred() bool {
	return a.ReferredByCode.Valid && a.ReferredByCode.String != ""
}

// EffectiveStatus applies lazy expiry: an active subscription whose period has
// ended reads as expired, as does a trial past its end.
func (s Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	switch s.Status {
	case SubscriptionActive:
		if !s.CurrentPeriodEnd.Valid || now.After(s.CurrentPeriodEnd.Time) {
			return SubscriptionExpired
		}
	case SubscriptionTrial:
		if !s.TrialEndsAt.Valid || now.After(s.TrialEndsAt.Time) {
			return SubscriptionExpired
		}
	}
	return s.Status
}

// ReferralRecord is written once per successful referral and never updated.
type ReferralRecord struct {
	ID               string    `json:"id" db:"id"`
	ReferringAgentID int64     `json:"referring_agent_id" db:"referring_agent_id"`
	NewAgentID       int64     `json:"new_agent_id" db:"new_agent_id"`
	ReferralCodeUsed string    `json:"referral_code_used" db:"referral_code_used"`
	RewardWeeks      int       `json:"reward_weeks" db:"reward_weeks"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

func NullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
