// internal/domain/agent/repository.go
package agent

import (
	"context"
	"time"
)

// Repository is the account store. Inside a transaction Load and LoadByUserID
// lock the row until commit.
type Repository interface {
	Load(ctx context.Context, id int64) (*Account, error)
	LoadByUserID(ctx context.Context, userID int64) (*Account, error)
	// FindByReferralCode returns xerrors.ErrNotFound when no account owns the code.
	FindByReferralCode(ctx context.Context, code string) (*Account, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)

	// Create assigns ID, Version and timestamps. A referral code collision
	// returns xerrors.ErrReferralCodeTaken, a second account for the same
	// user returns xerrors.ErrConflict.
	Create(ctx context.Context, a *Account) error
	// Save writes the account if its Version is still current and bumps it;
	// otherwise it returns xerrors.ErrConcurrentModification.
	Save(ctx context.Context, a *Account) error

	// CreateReferralRecord returns xerrors.ErrAlreadyReferred when the new
	// agent already has a record.
	CreateReferralRecord(ctx context.Context, r *ReferralRecord) error
	ListReferralRecords(ctx context.Context, referringAgentID int64) ([]ReferralRecord, error)

	// ListByVerificationStatus returns accounts in any of the given states,
	// oldest first. An empty status list matches every account.
	ListByVerificationStatus(ctx context.Context, statuses []VerificationStatus, limit int) ([]Account, error)

	// Maintenance
	ListMissingReferralCode(ctx context.Context, limit int) ([]Account, error)
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// Transactor runs fn as one atomic unit. Implementations retry fn on
// xerrors.ErrConcurrentModification a bounded number of times.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Store is what services depend on: plain reads plus transactional writes.
type Store interface {
	Repository
	Transactor
}

// MaxTxAttempts bounds optimistic retries of a unit of work.
const MaxTxAttempts = 3
