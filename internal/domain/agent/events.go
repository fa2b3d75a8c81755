// internal/domain/agent/events.go
package agent

import "time"

type EventType string

const (
	EventAgentVerified         EventType = "agent.verified"
	EventAgentRejected         EventType = "agent.rejected"
	EventReferralApplied       EventType = "agent.referral_applied"
	EventSubscriptionActivated EventType = "agent.subscription_activated"
)

// Event is a domain event informed to notifiers after a commit.
type Event interface {
	Type() EventType
	// Recipients lists the user identities the event concerns.
	Recipients() []int64
}

type AgentVerified struct {
	AgentID     int64      `json:"agent_id"`
	UserID      int64      `json:"user_id"`
	VerifiedAt  time.Time  `json:"verified_at"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
}

func (AgentVerified) Type() EventType       { return EventAgentVerified }
func (e AgentVerified) Recipients() []int64 { return []int64{e.UserID} }

type AgentRejected struct {
	AgentID    int64     `json:"agent_id"`
	UserID     int64     `json:"user_id"`
	RejectedAt time.Time `json:"rejected_at"`
}

func (AgentRejected) Type() EventType       { return EventAgentRejected }
func (e AgentRejected) Recipients() []int64 { return []int64{e.UserID} }

type ReferralApplied struct {
	ReferringAgentID int64     `json:"referring_agent_id"`
	ReferringUserID  int64     `json:"referring_user_id"`
	NewAgentID       int64     `json:"new_agent_id"`
	NewUserID        int64     `json:"new_user_id"`
	ReferralCode     string    `json:"referral_code"`
	RewardWeeks      int       `json:"reward_weeks"`
	AppliedAt        time.Time `json:"applied_at"`
}

func (ReferralApplied) Type() EventType { return EventReferralApplied }
func (e ReferralApplied) Recipients() []int64 {
	return []int64{e.ReferringUserID, e.NewUserID}
}

type SubscriptionActivated struct {
	AgentID          int64     `json:"agent_id"`
	UserID           int64     `json:"user_id"`
	Plan             Plan      `json:"plan"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`
}

func (SubscriptionActivated) Type() EventType       { return EventSubscriptionActivated }
func (e SubscriptionActivated) Recipients() []int64 { return []int64{e.UserID} }
