// Package memory is an in-process agent store for development and tests.
// Transactions are serialized by a single mutex and roll back by snapshot.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/pkg/clock"
	xerrors "rental-agents-service/internal/pkg/errors"
)

type Store struct {
	mu    sync.Mutex
	clock clock.Clock
	state *state
}

var _ agent.Store = (*Store)(nil)

func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{clock: clk, state: newState()}
}

// WithinTx holds the store lock for the whole unit of work.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo agent.Repository) error) error {
	var err error
	for attempt := 1; attempt <= agent.MaxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !xerrors.Is(err, xerrors.ErrConcurrentModification) {
			return err
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, repo agent.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.state.clone()
	if err := fn(ctx, &txRepo{st: s.state, now: s.clock.Now}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) repo() *txRepo {
	return &txRepo{st: s.state, now: s.clock.Now}
}

func (s *Store) Load(ctx context.Context, id int64) (*agent.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().Load(ctx, id)
}

func (s *Store) LoadByUserID(ctx context.Context, userID int64) (*agent.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().LoadByUserID(ctx, userID)
}

func (s *Store) FindByReferralCode(ctx context.Context, code string) (*agent.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().FindByReferralCode(ctx, code)
}

func (s *Store) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().ReferralCodeExists(ctx, code)
}

func (s *Store) Create(ctx context.Context, a *agent.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().Create(ctx, a)
}

func (s *Store) Save(ctx context.Context, a *agent.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().Save(ctx, a)
}

func (s *Store) CreateReferralRecord(ctx context.Context, r *agent.ReferralRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().CreateReferralRecord(ctx, r)
}

func (s *Store) ListReferralRecords(ctx context.Context, referringAgentID int64) ([]agent.ReferralRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().ListReferralRecords(ctx, referringAgentID)
}

func (s *Store) ListByVerificationStatus(ctx context.Context, statuses []agent.VerificationStatus, limit int) ([]agent.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().ListByVerificationStatus(ctx, statuses, limit)
}

func (s *Store) ListMissingReferralCode(ctx context.Context, limit int) ([]agent.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().ListMissingReferralCode(ctx, limit)
}

func (s *Store) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().ExpireLapsed(ctx, now)
}

// RecordCount returns the number of referral records, for assertions.
func (s *Store) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.records)
}

type state struct {
	nextID   int64
	accounts map[int64]agent.Account
	records  []agent.ReferralRecord
}

func newState() *state {
	return &state{accounts: make(map[int64]agent.Account)}
}

// clone is a deep copy: Account holds only value fields.
func (st *state) clone() *state {
	c := &state{
		nextID:   st.nextID,
		accounts: make(map[int64]agent.Account, len(st.accounts)),
		records:  make([]agent.ReferralRecord, len(st.records)),
	}
	for id, a := range st.accounts {
		c.accounts[id] = a
	}
	copy(c.records, st.records)
	return c
}

// txRepo operates on state without locking; the caller holds the store lock.
type txRepo struct {
	st  *state
	now func() time.Time
}

func (r *txRepo) Load(_ context.Context, id int64) (*agent.Account, error) {
	a, ok := r.st.accounts[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &a, nil
}

func (r *txRepo) LoadByUserID(_ context.Context, userID int64) (*agent.Account, error) {
	for _, a := range r.st.accounts {
		if a.UserID == userID {
			return &a, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *txRepo) FindByReferralCode(_ context.Context, code string) (*agent.Account, error) {
	if code == "" {
		return nil, xerrors.ErrNotFound
	}
	for _, a := range r.st.accounts {
		if a.ReferralCode == code {
			return &a, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *txRepo) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.FindByReferralCode(ctx, code)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *txRepo) Create(_ context.Context, a *agent.Account) error {
	for _, existing := range r.st.accounts {
		if existing.UserID == a.UserID {
			return xerrors.ErrConflict
		}
		if a.ReferralCode != "" && existing.ReferralCode == a.ReferralCode {
			return xerrors.ErrReferralCodeTaken
		}
	}

	now := r.now()
	r.st.nextID++
	a.ID = r.st.nextID
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now
	r.st.accounts[a.ID] = *a
	return nil
}

func (r *txRepo) Save(_ context.Context, a *agent.Account) error {
	stored, ok := r.st.accounts[a.ID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if stored.Version != a.Version {
		return xerrors.ErrConcurrentModification
	}
	if a.ReferralCode != stored.ReferralCode && a.ReferralCode != "" {
		for id, other := range r.st.accounts {
			if id != a.ID && other.ReferralCode == a.ReferralCode {
				return xerrors.ErrReferralCodeTaken
			}
		}
	}

	a.Version++
	a.UpdatedAt = r.now()
	r.st.accounts[a.ID] = *a
	return nil
}

func (r *txRepo) CreateReferralRecord(_ context.Context, rec *agent.ReferralRecord) error {
	for _, existing := range r.st.records {
		if existing.NewAgentID == rec.NewAgentID {
			return xerrors.ErrAlreadyReferred
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	r.st.records = append(r.st.records, *rec)
	return nil
}

func (r *txRepo) ListReferralRecords(_ context.Context, referringAgentID int64) ([]agent.ReferralRecord, error) {
	out := []agent.ReferralRecord{}
	for _, rec := range r.st.records {
		if rec.ReferringAgentID == referringAgentID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *txRepo) ListByVerificationStatus(_ context.Context, statuses []agent.VerificationStatus, limit int) ([]agent.Account, error) {
	want := make(map[agent.VerificationStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	out := []agent.Account{}
	for _, a := range r.st.accounts {
		if len(want) == 0 || want[a.VerificationStatus] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *txRepo) ListMissingReferralCode(_ context.Context, limit int) ([]agent.Account, error) {
	var out []agent.Account
	for _, a := range r.st.accounts {
		if a.ReferralCode == "" {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *txRepo) ExpireLapsed(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, a := range r.st.accounts {
		sub := a.Subscription
		if sub.Status != agent.SubscriptionActive && sub.Status != agent.SubscriptionTrial {
			continue
		}
		if sub.EffectiveStatus(now) != agent.SubscriptionExpired {
			continue
		}
		a.Subscription.Status = agent.SubscriptionExpired
		a.Version++
		a.UpdatedAt = r.now()
		r.st.accounts[id] = a
		n++
	}
	return n, nil
}
