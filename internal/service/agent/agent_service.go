// internal/service/agent/agent_service.go
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/pkg/clock"
	xerrors "rental-agents-service/internal/pkg/errors"
	"rental-agents-service/internal/pkg/metrics"
	"rental-agents-service/internal/service/eligibility"
	"rental-agents-service/internal/service/referral"

	"go.uber.org/zap"
)

// MaxListLimit caps admin listings.
const MaxListLimit = 200

// EligibilityResult is what the listing workflow receives.
type EligibilityResult struct {
	AgentID int64 `json:"agent_id"`
	eligibility.Decision
	Message string `json:"message"`
}

type AgentService struct {
	store        agent.Store
	referrals    *referral.ReferralService
	clock        clock.Clock
	metrics      *metrics.Metrics
	codeAttempts int
	logger       *zap.Logger
}

func NewAgentService(
	store agent.Store,
	referrals *referral.ReferralService,
	clk clock.Clock,
	m *metrics.Metrics,
	codeAttempts int,
	logger *zap.Logger,
) *AgentService {
	if clk == nil {
		clk = clock.System{}
	}
	if codeAttempts <= 0 {
		codeAttempts = referral.DefaultCodeAttempts
	}
	return &AgentService{
		store:        store,
		referrals:    referrals,
		clock:        clk,
		metrics:      m,
		codeAttempts: codeAttempts,
		logger:       logger,
	}
}

// Apply creates the caller's agent account with a fresh referral code and,
// when a referral code is supplied, rewards the referrer in the same
// transaction. An invalid referral code fails the whole application.
func (s *AgentService) Apply(ctx context.Context, userID int64, req *agent.ApplyRequest) (*agent.Account, error) {
	refCode := strings.ToUpper(strings.TrimSpace(req.ReferralCode))

	status := agent.VerificationNotVerified
	if req.DocumentsUploaded {
		status = agent.VerificationPending
	}

	var (
		created *agent.Account
		grant   *referral.Grant
		err     error
	)
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		err = s.store.WithinTx(ctx, func(ctx context.Context, repo agent.Repository) error {
			if _, err := repo.LoadByUserID(ctx, userID); err == nil {
				return fmt.Errorf("agent profile already exists: %w", xerrors.ErrConflict)
			} else if !xerrors.Is(err, xerrors.ErrNotFound) {
				return err
			}

			a := agent.NewAccount(userID, status)
			a.Bio = agent.NullString(strings.TrimSpace(req.Bio))
			a.Address = strings.TrimSpace(req.Address)
			a.WhatsappNumber = strings.TrimSpace(req.WhatsappNumber)

			code, err := s.referrals.NewCode(ctx, repo)
			if err != nil {
				return err
			}
			a.ReferralCode = code

			if refCode == "" {
				if err := repo.Create(ctx, a); err != nil {
					return err
				}
				created, grant = a, nil
				return nil
			}

			g, err := referral.GrantSignupReferral(ctx, repo, a, refCode, s.clock.Now())
			if err != nil {
				return err
			}
			created, grant = a, g
			return nil
		})
		if !xerrors.Is(err, xerrors.ErrReferralCodeTaken) {
			break
		}
		s.logger.Warn("referral code collision on create, retrying",
			zap.Int64("user_id", userID),
			zap.Int("attempt", attempt+1),
		)
	}
	if xerrors.Is(err, xerrors.ErrReferralCodeTaken) {
		return nil, xerrors.ErrCodeGenerationExhausted
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("agent application created",
		zap.Int64("agent_id", created.ID),
		zap.Int64("user_id", userID),
		zap.String("verification_status", string(created.VerificationStatus)),
		zap.Bool("referred", grant != nil),
	)
	if grant != nil {
		s.metrics.Referral("signup")
		s.referrals.PublishGrant(ctx, grant)
	}

	return created, nil
}

func (s *AgentService) Profile(ctx context.Context, userID int64) (*agent.Account, error) {
	return s.store.LoadByUserID(ctx, userID)
}

func (s *AgentService) Get(ctx context.Context, agentID int64) (*agent.Account, error) {
	return s.store.Load(ctx, agentID)
}

// Eligibility answers whether the caller may create a listing now.
func (s *AgentService) Eligibility(ctx context.Context, userID int64) (*EligibilityResult, error) {
	a, err := s.store.LoadByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.decide(a, s.clock.Now()), nil
}

// EligibilityAt evaluates a specific agent at a given instant.
func (s *AgentService) EligibilityAt(ctx context.Context, agentID int64, at time.Time) (*EligibilityResult, error) {
	a, err := s.store.Load(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return s.decide(a, at), nil
}

func (s *AgentService) decide(a *agent.Account, at time.Time) *EligibilityResult {
	d := eligibility.CanList(a, at)
	s.metrics.Eligibility(string(d.Reason), d.Allowed)
	if !d.Allowed {
		s.logger.Debug("listing denied",
			zap.Int64("agent_id", a.ID),
			zap.String("reason", string(d.Reason)),
		)
	}
	return &EligibilityResult{AgentID: a.ID, Decision: d, Message: eligibility.Message(d.Reason)}
}

// ListByVerificationStatus backs the admin review queue.
func (s *AgentService) ListByVerificationStatus(ctx context.Context, statuses []agent.VerificationStatus, limit int) ([]agent.Account, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	accounts, err := s.store.ListByVerificationStatus(ctx, statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return accounts, nil
}
