// internal/service/verification/service.go
package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/events"
	"rental-agents-service/internal/pkg/clock"
	xerrors "rental-agents-service/internal/pkg/errors"
	"rental-agents-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

type VerificationService struct {
	store         agent.Store
	verifier      IdentityVerifier
	publisher     events.Publisher
	clock         clock.Clock
	trialDuration time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

func NewVerificationService(
	store agent.Store,
	verifier IdentityVerifier,
	publisher events.Publisher,
	clk clock.Clock,
	trialDuration time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *VerificationService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if trialDuration <= 0 {
		trialDuration = agent.DefaultTrialDuration
	}
	return &VerificationService{
		store:         store,
		verifier:      verifier,
		publisher:     publisher,
		clock:         clk,
		trialDuration: trialDuration,
		metrics:       m,
		logger:        logger,
	}
}

type loader func(ctx context.Context, repo agent.Repository) (*agent.Account, error)

func byID(id int64) loader {
	return func(ctx context.Context, repo agent.Repository) (*agent.Account, error) {
		return repo.Load(ctx, id)
	}
}

func byUserID(userID int64) loader {
	return func(ctx context.Context, repo agent.Repository) (*agent.Account, error) {
		return repo.LoadByUserID(ctx, userID)
	}
}

// transition loads, mutates and saves one account in a single transaction.
func (s *VerificationService) transition(ctx context.Context, load loader, apply func(a *agent.Account, now time.Time) error) (*agent.Account, error) {
	var out *agent.Account
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo agent.Repository) error {
		a, err := load(ctx, repo)
		if err != nil {
			return err
		}
		if err := apply(a, s.clock.Now()); err != nil {
			return err
		}
		if err := repo.Save(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// Approve verifies an agent and starts the trial when applicable.
func (s *VerificationService) Approve(ctx context.Context, agentID int64) (*agent.Account, error) {
	return s.approve(ctx, byID(agentID))
}

func (s *VerificationService) approve(ctx context.Context, load loader) (*agent.Account, error) {
	a, err := s.transition(ctx, load, func(a *agent.Account, now time.Time) error {
		return MarkVerified(a, now, s.trialDuration)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Verification("verified")
	s.logger.Info("agent verified",
		zap.Int64("agent_id", a.ID),
		zap.Int64("user_id", a.UserID),
		zap.String("subscription_status", string(a.Subscription.Status)),
	)

	evt := agent.AgentVerified{AgentID: a.ID, UserID: a.UserID, VerifiedAt: a.VerifiedAt.Time}
	if a.Subscription.TrialEndsAt.Valid {
		t := a.Subscription.TrialEndsAt.Time
		evt.TrialEndsAt = &t
	}
	s.publish(ctx, evt)

	return a, nil
}

// Reject rejects a pending application.
func (s *VerificationService) Reject(ctx context.Context, agentID int64, reason string) (*agent.Account, error) {
	return s.reject(ctx, byID(agentID), reason)
}

func (s *VerificationService) reject(ctx context.Context, load loader, reason string) (*agent.Account, error) {
	var rejectedAt time.Time
	a, err := s.transition(ctx, load, func(a *agent.Account, now time.Time) error {
		rejectedAt = now
		return MarkRejected(a)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Verification("rejected")
	s.logger.Info("agent verification rejected",
		zap.Int64("agent_id", a.ID),
		zap.String("reason", reason),
	)
	s.publish(ctx, agent.AgentRejected{AgentID: a.ID, UserID: a.UserID, RejectedAt: rejectedAt})

	return a, nil
}

// Resubmit puts a rejected application back into review.
func (s *VerificationService) Resubmit(ctx context.Context, userID int64) (*agent.Account, error) {
	a, err := s.transition(ctx, byUserID(userID), func(a *agent.Account, _ time.Time) error {
		return Resubmit(a)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Verification("resubmitted")
	return a, nil
}

// SubmitDocument moves the caller's application into review and asks the
// provider for a verdict. An asynchronous verdict leaves the account pending
// until the webhook arrives.
func (s *VerificationService) SubmitDocument(ctx context.Context, userID int64, req *agent.SubmitVerificationRequest) (*agent.VerificationStatusView, error) {
	if err := ValidateDocument(req); err != nil {
		return nil, err
	}

	a, err := s.transition(ctx, byUserID(userID), func(a *agent.Account, _ time.Time) error {
		switch a.VerificationStatus {
		case agent.VerificationVerified:
			return xerrors.ErrAlreadyVerified
		case agent.VerificationRejected:
			return Resubmit(a)
		case agent.VerificationNotVerified:
			return Submit(a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := s.verifier.VerifyIdentity(ctx, Document{
		UserID:      userID,
		IDType:      req.IDType,
		IDNumber:    req.IDNumber,
		SelfieImage: req.SelfieImage,
		FullName:    req.FullName,
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		s.logger.Error("identity verification request failed",
			zap.Int64("agent_id", a.ID),
			zap.String("id_type", string(req.IDType)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("identity verification failed: %w", err)
	}

	s.logger.Info("identity verification result",
		zap.Int64("agent_id", a.ID),
		zap.String("id_type", string(req.IDType)),
		zap.String("id_number", MaskIDNumber(req.IDNumber)),
		zap.Bool("approved", result.Approved),
		zap.Bool("pending", result.Pending),
		zap.String("reference", result.Reference),
	)

	switch {
	case result.Pending:
	case result.Approved:
		if a, err = s.approve(ctx, byID(a.ID)); err != nil {
			return nil, err
		}
	default:
		if a, err = s.reject(ctx, byID(a.ID), result.Reason); err != nil {
			return nil, err
		}
	}

	return statusView(a), nil
}

// HandleWebhook applies the provider's asynchronous verdict. Redelivery of an
// approval for an already verified agent is acknowledged without change.
func (s *VerificationService) HandleWebhook(ctx context.Context, payload *agent.WebhookPayload) error {
	status := strings.ToLower(strings.TrimSpace(payload.Status))

	var err error
	switch status {
	case "approved", "completed", "verified":
		_, err = s.approve(ctx, byUserID(payload.UserID))
		if xerrors.Is(err, xerrors.ErrAlreadyVerified) {
			s.logger.Info("duplicate verification webhook ignored",
				zap.Int64("user_id", payload.UserID),
				zap.String("request_id", payload.RequestID),
			)
			return nil
		}
	case "pending", "processing":
		return nil
	default:
		_, err = s.reject(ctx, byUserID(payload.UserID), "provider status: "+status)
	}
	return err
}

// Status returns the caller's current verification view.
func (s *VerificationService) Status(ctx context.Context, userID int64) (*agent.VerificationStatusView, error) {
	a, err := s.store.LoadByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusView(a), nil
}

func (s *VerificationService) publish(ctx context.Context, e agent.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event", string(e.Type())),
			zap.Error(err),
		)
	}
}

func statusView(a *agent.Account) *agent.VerificationStatusView {
	v := &agent.VerificationStatusView{
		AgentID:            a.ID,
		VerificationStatus: a.VerificationStatus,
		SubscriptionStatus: a.Subscription.Status,
	}
	if a.VerifiedAt.Valid {
		t := a.VerifiedAt.Time
		v.VerifiedAt = &t
	}
	return v
}
