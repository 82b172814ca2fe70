// Package memory is an in-process ledger used in dev mode and tests.
// State is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
)

var (
	_ repository.PaymentRepository     = (*paymentRepo)(nil)
	_ repository.AccessGrantRepository = (*grantRepo)(nil)
	_ repository.RateLimitRepository   = (*rateLimitRepo)(nil)
	_ repository.AuditRepository       = (*auditRepo)(nil)
	_ repository.TransactionManager    = (*txManager)(nil)
)

type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serialises WithTx callbacks

	payments map[string]*model.Payment
	grants   map[int64]*model.AccessGrant
	limits   map[int64]model.RateLimitState
	audit    []*model.AuditEvent
	seq      int64 // insertion order, breaks created_at ties
	order    map[string]int64
}

func New() *Store {
	return &Store{
		payments: make(map[string]*model.Payment),
		grants:   make(map[int64]*model.AccessGrant),
		limits:   make(map[int64]model.RateLimitState),
		audit:    make([]*model.AuditEvent, 0),
		order:    make(map[string]int64),
	}
}

func (s *Store) Payments() *paymentRepo { return &paymentRepo{s} }
func (s *Store) Grants() *grantRepo { return &grantRepo{s} }
func (s *Store) RateLimits() *rateLimitRepo { return &rateLimitRepo{s} }
func (s *Store) Audit() *auditRepo { return &auditRepo{s} }
func (s *Store) TxManager() *txManager { return &txManager{s} }
func (s *Store) Close() {}

// -----------------------------
// Transactions
// -----------------------------

type txManager struct{ s *Store }

// WithTx runs fn under an exclusive lock. There is no rollback: repositories
// in this package do not fail halfway through a callback.
func (m *txManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, repository.NoTX)
}

// -----------------------------
// Payments
// -----------------------------

type paymentRepo struct{ s *Store }

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		cp.ApprovedAt = &t
	}
	return &cp
}

func (r *paymentRepo) Insert(_ context.Context, _ repository.Tx, p *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.payments[p.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.s.seq++
	r.s.order[p.ID] = r.s.seq
	r.s.payments[p.ID] = clonePayment(p)
	return nil
}

func (r *paymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if p, ok := r.s.payments[id]; ok {
		return clonePayment(p), nil
	}
	return nil, domain.ErrNotFound
}

func (r *paymentRepo) byUser(userID int64) []*model.Payment {
	out := make([]*model.Payment, 0)
	for _, p := range r.s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	// newest first
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.order[out[i].ID] > r.s.order[out[j].ID]
	})
	return out
}

func (r *paymentRepo) FindLatestByUser(_ context.Context, _ repository.Tx, userID int64) (*model.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	list := r.byUser(userID)
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return clonePayment(list[0]), nil
}

func (r *paymentRepo) FindLiveByUser(_ context.Context, _ repository.Tx, userID int64, now time.Time) (*model.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.byUser(userID) {
		if p.IsLive(now) {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *paymentRepo) ListOpen(_ context.Context, _ repository.Tx, limit int) ([]*model.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Payment, 0)
	for _, p := range r.s.payments {
		if !p.Status.IsTerminal() {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.s.order[out[i].ID] < r.s.order[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *paymentRepo) CompareAndSetStatus(_ context.Context, _ repository.Tx, id string, from, to model.PaymentStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payments[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = at
	if to == model.PaymentStatusApproved && p.ApprovedAt == nil {
		t := at
		p.ApprovedAt = &t
	}
	return true, nil
}

// -----------------------------
// Access grants
// -----------------------------

type grantRepo struct{ s *Store }

func (r *grantRepo) Grant(_ context.Context, _ repository.Tx, g *model.AccessGrant) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.grants[g.UserID]; exists {
		return false, nil
	}
	cp := *g
	r.s.grants[g.UserID] = &cp
	return true, nil
}

func (r *grantRepo) HasAccess(_ context.Context, _ repository.Tx, userID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.grants[userID]
	return ok, nil
}

func (r *grantRepo) FindByUser(_ context.Context, _ repository.Tx, userID int64) (*model.AccessGrant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.grants[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

// -----------------------------
// Rate limits
// -----------------------------

type rateLimitRepo struct{ s *Store }

func (r *rateLimitRepo) Get(_ context.Context, _ repository.Tx, userID int64) (model.RateLimitState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.limits[userID]
	if !ok {
		return model.RateLimitState{UserID: userID}, nil
	}
	return st, nil
}

func (r *rateLimitRepo) Touch(_ context.Context, _ repository.Tx, userID int64, action model.RateAction, ts int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.limits[userID]
	st.UserID = userID
	switch action {
	case model.ActionCreate:
		st.LastCreateTS = ts
	case model.ActionVerify:
		st.LastVerifyTS = ts
	default:
		return domain.ErrInvalidArgument
	}
	r.s.limits[userID] = st
	return nil
}

// -----------------------------
// Audit
// -----------------------------

type auditRepo struct{ s *Store }

func (r *auditRepo) Append(_ context.Context, _ repository.Tx, e *model.AuditEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *e
	r.s.audit = append(r.s.audit, &cp)
	return nil
}

func (r *auditRepo) ListByPayment(_ context.Context, _ repository.Tx, paymentID string) ([]*model.AuditEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.AuditEvent, 0)
	for _, e := range r.s.audit {
		if e.PaymentID == paymentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListByUser returns the newest events first.
func (r *auditRepo) ListByUser(_ context.Context, _ repository.Tx, userID int64, limit int) ([]*model.AuditEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.AuditEvent, 0)
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		if e := r.s.audit[i]; e.UserID == userID {
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
