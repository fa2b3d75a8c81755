// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"fmt"
	"time"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/events"
	"rental-agents-service/internal/pkg/clock"
	"rental-agents-service/internal/pkg/metrics"
	"rental-agents-service/internal/service/eligibility"

	"go.uber.org/zap"
)

type SubscriptionService struct {
	store     agent.Store
	publisher events.Publisher
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewSubscriptionService(
	store agent.Store,
	publisher events.Publisher,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SubscriptionService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &SubscriptionService{
		store:     store,
		publisher: publisher,
		clock:     clk,
		metrics:   m,
		logger:    logger,
	}
}

func (s *SubscriptionService) update(ctx context.Context, userID int64, apply func(a *agent.Account, now time.Time) error) (*agent.Account, error) {
	var out *agent.Account
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo agent.Repository) error {
		a, err := repo.LoadByUserID(ctx, userID)
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

// ActivateForUser records a paid subscription for the caller. Payment itself
// is settled by billing before this is called.
func (s *SubscriptionService) ActivateForUser(ctx context.Context, userID int64, req *agent.ActivateSubscriptionRequest) (*agent.Account, error) {
	a, err := s.update(ctx, userID, func(a *agent.Account, now time.Time) error {
		end, err := PeriodEnd(now, req.BillingCycle)
		if err != nil {
			return err
		}
		if err := Activate(a, req.Plan, end.Sub(now), now); err != nil {
			return err
		}
		if req.ProcessorCustomerID != "" {
			a.Subscription.ProcessorCustomerID = agent.NullString(req.ProcessorCustomerID)
		}
		if req.ProcessorSubscriptionID != "" {
			a.Subscription.ProcessorSubscriptionID = agent.NullString(req.ProcessorSubscriptionID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Subscription(string(a.Subscription.Plan), "activate")
	s.logger.Info("subscription activated",
		zap.Int64("agent_id", a.ID),
		zap.String("plan", string(a.Subscription.Plan)),
		zap.String("billing_cycle", string(req.BillingCycle)),
		zap.Time("current_period_end", a.Subscription.CurrentPeriodEnd.Time),
	)
	s.publishActivated(ctx, a)

	return a, nil
}

func (s *SubscriptionService) Renew(ctx context.Context, userID int64, req *agent.RenewSubscriptionRequest) (*agent.Account, error) {
	a, err := s.update(ctx, userID, func(a *agent.Account, now time.Time) error {
		return Renew(a, req.BillingCycle, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Subscription(string(a.Subscription.Plan), "renew")
	s.logger.Info("subscription renewed",
		zap.Int64("agent_id", a.ID),
		zap.String("billing_cycle", string(req.BillingCycle)),
		zap.Time("current_period_end", a.Subscription.CurrentPeriodEnd.Time),
	)
	s.publishActivated(ctx, a)

	return a, nil
}

func (s *SubscriptionService) Cancel(ctx context.Context, userID int64) (*agent.Account, error) {
	a, err := s.update(ctx, userID, func(a *agent.Account, now time.Time) error {
		return Cancel(a, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription cancelled", zap.Int64("agent_id", a.ID))
	return a, nil
}

// Status summarizes the caller's current access.
func (s *SubscriptionService) Status(ctx context.Context, userID int64) (*eligibility.Summary, error) {
	a, err := s.store.LoadByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := eligibility.Summarize(a, s.clock.Now())
	return &summary, nil
}

// ExpireLapsed restamps lapsed trials and subscriptions as expired. Reads
// already treat them as expired, so running it is optional and repeatable.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireLapsed(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}

	s.metrics.Expired(n)
	s.logger.Info("lapsed subscriptions expired", zap.Int64("count", n))
	return n, nil
}

func (s *SubscriptionService) publishActivated(ctx context.Context, a *agent.Account) {
	evt := agent.SubscriptionActivated{
		AgentID:          a.ID,
		UserID:           a.UserID,
		Plan:             a.Subscription.Plan,
		CurrentPeriodEnd: a.Subscription.CurrentPeriodEnd.Time,
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event", string(evt.Type())),
			zap.Error(err),
		)
	}
}
