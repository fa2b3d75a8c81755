// internal/service/referral/referral_service.go
package referral

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/events"
	"rental-agents-service/internal/pkg/clock"
	xerrors "rental-agents-service/internal/pkg/errors"
	"rental-agents-service/internal/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// backfillWorkers bounds concurrent code assignments within a batch.
const backfillWorkers = 4

type Config struct {
	FrontendURL  string
	CodeAttempts int
}

type ReferralService struct {
	store     agent.Store
	publisher events.Publisher
	clock     clock.Clock
	metrics   *metrics.Metrics
	cfg       Config
	logger    *zap.Logger

	newCode func() (string, error)
}

func NewReferralService(
	store agent.Store,
	publisher events.Publisher,
	clk clock.Clock,
	m *metrics.Metrics,
	cfg Config,
	logger *zap.Logger,
) *ReferralService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = DefaultCodeAttempts
	}
	return &ReferralService{
		store:     store,
		publisher: publisher,
		clock:     clk,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
		newCode:   GenerateCode,
	}
}

// NewCode returns a referral code not yet present in repo.
func (s *ReferralService) NewCode(ctx context.Context, repo agent.Repository) (string, error) {
	return uniqueCode(ctx, repo, s.newCode, s.cfg.CodeAttempts)
}

// ApplyReferral applies code for the agent owned by userID. Concurrent
// duplicates resolve to exactly one success; the rest see ErrAlreadyReferred.
func (s *ReferralService) ApplyReferral(ctx context.Context, userID int64, code string) (*Grant, error) {
	code = normalize(code)

	var grant *Grant
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo agent.Repository) error {
		newAgent, err := repo.LoadByUserID(ctx, userID)
		if err != nil {
			return err
		}
		grant, err = applyExisting(ctx, repo, newAgent, code, s.clock.Now())
		return err
	})
	if err != nil {
		s.metrics.Referral(resultLabel(err))
		return nil, err
	}

	s.metrics.Referral("applied")
	s.logger.Info("referral applied",
		zap.Int64("referring_agent_id", grant.Referrer.ID),
		zap.Int64("new_agent_id", grant.NewAgent.ID),
		zap.String("referral_code", code),
		zap.Int("referrer_free_weeks", grant.Referrer.FreeListingWeeks),
	)
	s.PublishGrant(ctx, grant)

	return grant, nil
}

// PublishGrant emits ReferralApplied for a committed grant.
func (s *ReferralService) PublishGrant(ctx context.Context, g *Grant) {
	if g == nil {
		return
	}
	evt := agent.ReferralApplied{
		ReferringAgentID: g.Referrer.ID,
		ReferringUserID:  g.Referrer.UserID,
		NewAgentID:       g.NewAgent.ID,
		NewUserID:        g.NewAgent.UserID,
		ReferralCode:     g.Record.ReferralCodeUsed,
		RewardWeeks:      g.Record.RewardWeeks,
		AppliedAt:        g.Record.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event", string(evt.Type())),
			zap.Error(err),
		)
	}
}

// Stats returns the caller's referral totals and share link.
func (s *ReferralService) Stats(ctx context.Context, userID int64) (*agent.ReferralStats, error) {
	a, err := s.store.LoadByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListReferralRecords(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}

	return &agent.ReferralStats{
		ReferralCode:     a.ReferralCode,
		TotalReferrals:   a.TotalReferrals,
		FreeListingWeeks: a.FreeListingWeeks,
		ReferralLink:     s.Link(a.ReferralCode),
		Referrals:        records,
	}, nil
}

func (s *ReferralService) Link(code string) string {
	if code == "" {
		return ""
	}
	return fmt.Sprintf("%s/register?ref=%s", strings.TrimRight(s.cfg.FrontendURL, "/"), code)
}

// ValidateCode reports whether code can currently grant a reward.
func (s *ReferralService) ValidateCode(ctx context.Context, code string) (*agent.ReferralValidation, error) {
	code = normalize(code)
	out := &agent.ReferralValidation{Code: code}

	if !IsWellFormed(code) {
		out.Message = "Invalid referral code format"
		return out, nil
	}

	referrer, err := s.store.FindByReferralCode(ctx, code)
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		out.Message = "Referral code not found"
		return out, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	case !referrer.IsVerified():
		out.Message = "Referral code belongs to an agent who is not verified yet"
		return out, nil
	}

	out.Valid = true
	out.Message = "Referral code is valid"
	return out, nil
}

// BackfillReferralCodes assigns codes to accounts created without one and
// returns how many were updated.
func (s *ReferralService) BackfillReferralCodes(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	total := 0
	for {
		batch, err := s.store.ListMissingReferralCode(ctx, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list accounts: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		var updated atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(backfillWorkers)
		for _, a := range batch {
			id := a.ID
			g.Go(func() error {
				ok, err := s.assignCode(gctx, id)
				if err != nil {
					return fmt.Errorf("agent %d: %w", id, err)
				}
				if ok {
					updated.Add(1)
				}
				return nil
			})
		}
		err = g.Wait()
		total += int(updated.Load())
		if err != nil {
			return total, err
		}

		if updated.Load() == 0 {
			return total, nil
		}
	}
}

func (s *ReferralService) assignCode(ctx context.Context, agentID int64) (bool, error) {
	var assigned bool
	for attempt := 0; attempt < s.cfg.CodeAttempts; attempt++ {
		err := s.store.WithinTx(ctx, func(ctx context.Context, repo agent.Repository) error {
			a, err := repo.Load(ctx, agentID)
			if err != nil {
				return err
			}
			if a.ReferralCode != "" {
				return nil
			}
			code, err := s.NewCode(ctx, repo)
			if err != nil {
				return err
			}
			a.ReferralCode = code
			if err := repo.Save(ctx, a); err != nil {
				return err
			}
			assigned = true
			s.logger.Info("referral code assigned", zap.Int64("agent_id", a.ID), zap.String("referral_code", code))
			return nil
		})
		if !xerrors.Is(err, xerrors.ErrReferralCodeTaken) {
			return assigned, err
		}
	}
	return false, xerrors.ErrCodeGenerationExhausted
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func resultLabel(err error) string {
	switch {
	case xerrors.Is(err, xerrors.ErrAlreadyReferred):
		return "already_referred"
	case xerrors.Is(err, xerrors.ErrInvalidReferralCode):
		return "invalid_code"
	case xerrors.Is(err, xerrors.ErrSelfReferral):
		return "self_referral"
	default:
		return "error"
	}
}
