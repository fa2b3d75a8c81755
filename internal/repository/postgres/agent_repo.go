// internal/repository/postgres/agent_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rental-agents-service/internal/domain/agent"
	xerrors "rental-agents-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const agentColumns = `
	id, user_id, bio, address, whatsapp_number,
	verification_status, verified_at,
	referral_code, referred_by_code, free_listing_weeks, total_referrals,
	subscription_status, subscription_plan, trial_starts_at, trial_ends_at,
	current_period_end, cancelled_at, processor_customer_id, processor_subscription_id,
	version, created_at, updated_at
`

// AgentRepository implements agent.Repository on a pool or a transaction.
// Inside a transaction, reads by id and user id take row locks.
type AgentRepository struct {
	q         querier
	forUpdate bool
}

// AgentStore adds WithinTx on top of the pooled repository.
type AgentStore struct {
	*AgentRepository
	pool beginner
}

var _ agent.Store = (*AgentStore)(nil)

func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return newAgentStore(pool)
}

func newAgentStore(p beginner) *AgentStore {
	return &AgentStore{AgentRepository: &AgentRepository{q: p}, pool: p}
}

// WithinTx runs fn in a transaction, retrying on version conflicts,
// deadlocks and serialization failures.
func (s *AgentStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo agent.Repository) error) error {
	var err error
	for attempt := 1; attempt <= agent.MaxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !xerrors.Is(err, xerrors.ErrConcurrentModification) {
			return err
		}
	}
	return err
}

func (s *AgentStore) runTx(ctx context.Context, fn func(ctx context.Context, repo agent.Repository) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, &AgentRepository{q: tx, forUpdate: true}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

func (r *AgentRepository) lockClause() string {
	if r.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

// Load retrieves an agent by ID
func (r *AgentRepository) Load(ctx context.Context, id int64) (*agent.Account, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1` + r.lockClause()
	return r.scanOne(ctx, "failed to load agent", query, id)
}

// LoadByUserID retrieves the agent owned by a user
func (r *AgentRepository) LoadByUserID(ctx context.Context, userID int64) (*agent.Account, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE user_id = $1` + r.lockClause()
	return r.scanOne(ctx, "failed to load agent by user", query, userID)
}

// FindByReferralCode locks the referrer as well, so concurrent referrals to
// the same agent serialize on its row.
func (r *AgentRepository) FindByReferralCode(ctx context.Context, code string) (*agent.Account, error) {
	if code == "" {
		return nil, xerrors.ErrNotFound
	}
	query := `SELECT ` + agentColumns + ` FROM agents WHERE referral_code = $1` + r.lockClause()
	return r.scanOne(ctx, "failed to find agent by referral code", query, code)
}

func (r *AgentRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM agents WHERE referral_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return exists, nil
}

// Create inserts a new agent
func (r *AgentRepository) Create(ctx context.Context, a *agent.Account) error {
	query := `
		INSERT INTO agents (
			user_id, bio, address, whatsapp_number,
			verification_status, verified_at,
			referral_code, referred_by_code, free_listing_weeks, total_referrals,
			subscription_status, subscription_plan, trial_starts_at, trial_ends_at,
			current_period_end, cancelled_at, processor_customer_id, processor_subscription_id,
			version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1)
		RETURNING id, version, created_at, updated_at
	`

	sub := a.Subscription
	err := r.q.QueryRow(
		ctx, query,
		a.UserID, a.Bio, a.Address, a.WhatsappNumber,
		string(a.VerificationStatus), a.VerifiedAt,
		nullableCode(a.ReferralCode), a.ReferredByCode, a.FreeListingWeeks, a.TotalReferrals,
		string(sub.Status), string(sub.Plan), sub.TrialStartsAt, sub.TrialEndsAt,
		sub.CurrentPeriodEnd, sub.CancelledAt, sub.ProcessorCustomerID, sub.ProcessorSubscriptionID,
	).Scan(&a.ID, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", mapError(err))
	}

	return nil
}

// Save performs a version-checked update of every mutable column.
func (r *AgentRepository) Save(ctx context.Context, a *agent.Account) error {
	query := `
		UPDATE agents SET
			bio = $1, address = $2, whatsapp_number = $3,
			verification_status = $4, verified_at = $5,
			referral_code = $6, referred_by_code = $7, free_listing_weeks = $8, total_referrals = $9,
			subscription_status = $10, subscription_plan = $11, trial_starts_at = $12, trial_ends_at = $13,
			current_period_end = $14, cancelled_at = $15,
			processor_customer_id = $16, processor_subscription_id = $17,
			version = version + 1, updated_at = NOW()
		WHERE id = $18 AND version = $19
		RETURNING version, updated_at
	`

	sub := a.Subscription
	var (
		version   int64
		updatedAt time.Time
	)
	err := r.q.QueryRow(
		ctx, query,
		a.Bio, a.Address, a.WhatsappNumber,
		string(a.VerificationStatus), a.VerifiedAt,
		nullableCode(a.ReferralCode), a.ReferredByCode, a.FreeListingWeeks, a.TotalReferrals,
		string(sub.Status), string(sub.Plan), sub.TrialStartsAt, sub.TrialEndsAt,
		sub.CurrentPeriodEnd, sub.CancelledAt,
		sub.ProcessorCustomerID, sub.ProcessorSubscriptionID,
		a.ID, a.Version,
	).Scan(&version, &updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		if _, loadErr := (&AgentRepository{q: r.q}).Load(ctx, a.ID); xerrors.Is(loadErr, xerrors.ErrNotFound) {
			return xerrors.ErrNotFound
		}
		return xerrors.ErrConcurrentModification
	}
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", mapError(err))
	}

	a.Version = version
	a.UpdatedAt = updatedAt
	return nil
}

// CreateReferralRecord inserts the immutable referral audit row
func (r *AgentRepository) CreateReferralRecord(ctx context.Context, rec *agent.ReferralRecord) error {
	query := `
		INSERT INTO referral_records (id, referring_agent_id, new_agent_id, referral_code_used, reward_weeks, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING created_at
	`

	var createdAt *time.Time
	if !rec.CreatedAt.IsZero() {
		createdAt = &rec.CreatedAt
	}

	err := r.q.QueryRow(
		ctx, query,
		rec.ID, rec.ReferringAgentID, rec.NewAgentID, rec.ReferralCodeUsed, rec.RewardWeeks, createdAt,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create referral record: %w", mapError(err))
	}

	return nil
}

// ListReferralRecords returns a referrer's records, newest first
func (r *AgentRepository) ListReferralRecords(ctx context.Context, referringAgentID int64) ([]agent.ReferralRecord, error) {
	query := `
		SELECT id, referring_agent_id, new_agent_id, referral_code_used, reward_weeks, created_at
		FROM referral_records
		WHERE referring_agent_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.q.Query(ctx, query, referringAgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referral records: %w", err)
	}
	defer rows.Close()

	records := []agent.ReferralRecord{}
	for rows.Next() {
		var rec agent.ReferralRecord
		if err := rows.Scan(
			&rec.ID, &rec.ReferringAgentID, &rec.NewAgentID, &rec.ReferralCodeUsed, &rec.RewardWeeks, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan referral record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListByVerificationStatus backs the admin review queue
func (r *AgentRepository) ListByVerificationStatus(ctx context.Context, statuses []agent.VerificationStatus, limit int) ([]agent.Account, error) {
	if limit <= 0 {
		limit = 100
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE cardinality($1::text[]) = 0 OR verification_status = ANY($1::text[])
		ORDER BY id
		LIMIT $2
	`
	return r.scanMany(ctx, "failed to list agents by status", query, pq.Array(names), limit)
}

// ListMissingReferralCode finds legacy rows created before codes were assigned
func (r *AgentRepository) ListMissingReferralCode(ctx context.Context, limit int) ([]agent.Account, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE referral_code IS NULL OR referral_code = ''
		ORDER BY id
		LIMIT $1
	`
	return r.scanMany(ctx, "failed to list agents without referral code", query, limit)
}

// ExpireLapsed restamps trials and paid periods that have ended. Running it
// twice changes nothing the second time.
func (r *AgentRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE agents SET
			subscription_status = $1,
			version = version + 1,
			updated_at = NOW()
		WHERE subscription_status = ANY($2)
		  AND (
			(subscription_status = $3 AND (current_period_end IS NULL OR current_period_end < $5)) OR
			(subscription_status = $4 AND (trial_ends_at IS NULL OR trial_ends_at < $5))
		  )
	`

	tag, err := r.q.Exec(
		ctx, query,
		string(agent.SubscriptionExpired),
		pq.Array([]string{string(agent.SubscriptionActive), string(agent.SubscriptionTrial)}),
		string(agent.SubscriptionActive),
		string(agent.SubscriptionTrial),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", mapError(err))
	}

	return tag.RowsAffected(), nil
}

func (r *AgentRepository) scanOne(ctx context.Context, op, query string, args ...any) (*agent.Account, error) {
	a, err := scanAccount(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return a, nil
}

func (r *AgentRepository) scanMany(ctx context.Context, op, query string, args ...any) ([]agent.Account, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	accounts := []agent.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		accounts = append(accounts, *a)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*agent.Account, error) {
	var (
		a                             agent.Account
		verification, subStatus, plan string
		referralCode                  sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.Bio, &a.Address, &a.WhatsappNumber,
		&verification, &a.VerifiedAt,
		&referralCode, &a.ReferredByCode, &a.FreeListingWeeks, &a.TotalReferrals,
		&subStatus, &plan, &a.Subscription.TrialStartsAt, &a.Subscription.TrialEndsAt,
		&a.Subscription.CurrentPeriodEnd, &a.Subscription.CancelledAt,
		&a.Subscription.ProcessorCustomerID, &a.Subscription.ProcessorSubscriptionID,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.VerificationStatus = agent.VerificationStatus(verification)
	a.Subscription.Status = agent.SubscriptionStatus(subStatus)
	a.Subscription.Plan = agent.Plan(plan)
	a.ReferralCode = referralCode.String
	return &a, nil
}

// nullableCode stores an unassigned code as NULL so the unique constraint
// only applies to real codes.
func nullableCode(code string) *string {
	if code == "" {
		return nil
	}
	return &code
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// mapError turns constraint and contention failures into domain sentinels.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "agents_referral_code_key":
			return xerrors.ErrReferralCodeTaken
		case "agents_user_id_key":
			return xerrors.ErrConflict
		case "referral_records_new_agent_id_key":
			return xerrors.ErrAlreadyReferred
		}
		return fmt.Errorf("%w: %s", xerrors.ErrDuplicateEntry, pgErr.ConstraintName)
	case pgSerializationFailure, pgDeadlockDetected:
		return xerrors.ErrConcurrentModification
	}
	return err
}
