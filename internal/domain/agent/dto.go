// internal/domain/agent/dto.go
package agent

import (
	"database/sql"
	"time"
)

type ApplyRequest struct {
	Bio            string `json:"bio" binding:"max=2000"`
	Address        string `json:"address" binding:"required,max=500"`
	WhatsappNumber string `json:"whatsapp_number" binding:"required,min=7,max=20"`
	ReferralCode   string `json:"referral_code" binding:"omitempty,len=11,startswith=REF,alphanum"`
	// DocumentsUploaded marks that ID documents already went to storage, which
	// puts the application straight into review.
	DocumentsUploaded bool `json:"documents_uploaded"`
}

type ApplyReferralRequest struct {
	ReferralCode string `json:"referral_code" binding:"required,len=11,startswith=REF,alphanum"`
}

// ValidateReferralQuery only requires presence; a malformed code is answered
// with valid=false rather than a 400.
type ValidateReferralQuery struct {
	Code string `form:"code" binding:"required,max=32"`
}

type ListAgentsQuery struct {
	Status []VerificationStatus `form:"status" binding:"dive,oneof=not_verified pending verified rejected"`
	Limit  int                  `form:"limit" binding:"omitempty,min=1,max=200"`
}

type ReferralStats struct {
	ReferralCode     string           `json:"referral_code"`
	TotalReferrals   int              `json:"total_referrals"`
	FreeListingWeeks int              `json:"free_listing_weeks"`
	ReferralLink     string           `json:"referral_link"`
	Referrals        []ReferralRecord `json:"referrals"`
}

type BillingCycle string

const (
	BillingWeekly    BillingCycle = "weekly"
	BillingMonthly   BillingCycle = "monthly"
	BillingQuarterly BillingCycle = "quarterly"
	BillingYearly    BillingCycle = "yearly"
)

type ActivateSubscriptionRequest struct {
	Plan                    Plan         `json:"plan" binding:"required,oneof=basic premium"`
	BillingCycle            BillingCycle `json:"billing_cycle" binding:"required,oneof=weekly monthly quarterly yearly"`
	ProcessorCustomerID     string       `json:"processor_customer_id" binding:"max=255"`
	ProcessorSubscriptionID string       `json:"processor_subscription_id" binding:"max=255"`
}

type RenewSubscriptionRequest struct {
	BillingCycle BillingCycle `json:"billing_cycle" binding:"required,oneof=weekly monthly quarterly yearly"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type IDType string

const (
	IDTypeNIN            IDType = "nin"
	IDTypeBVN            IDType = "bvn"
	IDTypeDriversLicense IDType = "drivers_license"
	IDTypePassport       IDType = "passport"
)

type SubmitVerificationRequest struct {
	IDType      IDType `json:"id_type" binding:"required,oneof=nin bvn drivers_license passport"`
	IDNumber    string `json:"id_number" binding:"required,min=4,max=32"`
	SelfieImage string `json:"selfie_image"` // base64 data URI
	FullName    string `json:"full_name" binding:"max=255"`
	DateOfBirth string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
}

// WebhookPayload is the identity provider's asynchronous verdict.
type WebhookPayload struct {
	UserID    int64  `json:"user_id" binding:"required,min=1"`
	RequestID string `json:"request_id"`
	Status    string `json:"status" binding:"required"`
}

type VerificationStatusView struct {
	AgentID            int64              `json:"agent_id"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
}

type ReferralValidation struct {
	Code    string `json:"code"`
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ProfileView is the JSON shape of an account returned to clients.
type ProfileView struct {
	ID                 int64              `json:"id"`
	UserID             int64              `json:"user_id"`
	Bio                string             `json:"bio,omitempty"`
	Address            string             `json:"address"`
	WhatsappNumber     string             `json:"whatsapp_number"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	ReferralCode       string             `json:"referral_code"`
	ReferredByCode     string             `json:"referred_by_code,omitempty"`
	FreeListingWeeks   int                `json:"free_listing_weeks"`
	TotalReferrals     int                `json:"total_referrals"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan   Plan               `json:"subscription_plan"`
	TrialStartsAt      *time.Time         `json:"trial_starts_at,omitempty"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// View projects the account for clients. SubscriptionStatus is the stored
// status; callers wanting lazy expiry use Subscription.EffectiveStatus.
func (a *Account) View() *ProfileView {
	sub := a.Subscription
	return &ProfileView{
		ID:                 a.ID,
		UserID:             a.UserID,
		Bio:                a.Bio.String,
		Address:            a.Address,
		WhatsappNumber:     a.WhatsappNumber,
		VerificationStatus: a.VerificationStatus,
		VerifiedAt:         timePtr(a.VerifiedAt),
		ReferralCode:       a.ReferralCode,
		ReferredByCode:     a.ReferredByCode.String,
		FreeListingWeeks:   a.FreeListingWeeks,
		TotalReferrals:     a.TotalReferrals,
		SubscriptionStatus: sub.Status,
		SubscriptionPlan:   sub.Plan,
		TrialStartsAt:      timePtr(sub.TrialStartsAt),
		TrialEndsAt:        timePtr(sub.TrialEndsAt),
		CurrentPeriodEnd:   timePtr(sub.CurrentPeriodEnd),
		CancelledAt:        timePtr(sub.CancelledAt),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
