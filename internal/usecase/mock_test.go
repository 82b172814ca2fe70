//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/db/memory"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// t0 is the origin of every scenario timeline; at(n) is t0 + n seconds.
var t0 = time.Unix(1_700_000_000, 0)

func at(sec int64) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t0 + sec.
func (c *fakeClock) Set(sec int64) {
	c.mu.Lock()
	c.now = at(sec)
	c.mu.Unlock()
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	seq      int
	statuses map[string]model.PaymentStatus

	CreateChargeFunc func(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResult, error)
	FetchStatusFunc  func(ctx context.Context, id string) (adapter.StatusResult, error)

	CreateCalls int
	FetchCalls  int
	Requests    []adapter.ChargeRequest
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{statuses: make(map[string]model.PaymentStatus)}
}

func (m *MockPaymentGateway) Name() string { return "mock" }

// SetStatus scripts the provider-side status returned by FetchStatus.
func (m *MockPaymentGateway) SetStatus(id string, s model.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = s
}

func (m *MockPaymentGateway) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResult, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.Requests = append(m.Requests, req)
	m.seq++
	n := m.seq
	m.mu.Unlock()

	if m.CreateChargeFunc != nil {
		return m.CreateChargeFunc(ctx, req)
	}
	img := "iVBORw0KGgo="
	return adapter.ChargeResult{
		PaymentID:    fmt.Sprintf("mp-%d", n),
		Status:       model.PaymentStatusPending,
		DisplayCode:  fmt.Sprintf("00020126pix-%d", n),
		DisplayImage: &img,
	}, nil
}

func (m *MockPaymentGateway) FetchStatus(ctx context.Context, id string) (adapter.StatusResult, error) {
	m.mu.Lock()
	m.FetchCalls++
	st, ok := m.statuses[id]
	m.mu.Unlock()

	if m.FetchStatusFunc != nil {
		return m.FetchStatusFunc(ctx, id)
	}
	if !ok {
		st = model.PaymentStatusPending
	}
	return adapter.StatusResult{Status: st}, nil
}

func (m *MockPaymentGateway) Calls() (create, fetch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls, m.FetchCalls
}

// ---- Mock Notifier ----

type MockNotifier struct {
	mu       sync.Mutex
	Notified []int64

	NotifyFunc func(ctx context.Context, userID int64) error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) NotifyAccessGranted(ctx context.Context, userID int64) error {
	if m.NotifyFunc != nil {
		if err := m.NotifyFunc(ctx, userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified = append(m.Notified, userID)
	return nil
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Notified)
}

// ---- Mock PromptGenerator ----

type MockPromptGenerator struct {
	GenerateFunc func(ctx context.Context, topic string) (string, error)
	Topics       []string
}

var _ adapter.PromptGenerator = (*MockPromptGenerator)(nil)

func (m *MockPromptGenerator) Name() string { return "mock" }

func (m *MockPromptGenerator) Generate(ctx context.Context, topic string) (string, error) {
	m.Topics = append(m.Topics, topic)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, topic)
	}
	return "Você é um especialista em " + topic, nil
}

// =============================
// Repositories
// =============================

// ---- Mock SessionRepository ----

type MockSessionRepo struct {
	mu    sync.Mutex
	store map[int64]model.Session

	SaveFunc func(ctx context.Context, s *model.Session) error
}

var _ repository.SessionRepository = (*MockSessionRepo)(nil)

func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{store: make(map[int64]model.Session)}
}

func (m *MockSessionRepo) Get(ctx context.Context, userID int64) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[userID]
	if !ok {
		return &model.Session{UserID: userID}, nil
	}
	return &s, nil
}

func (m *MockSessionRepo) Save(ctx context.Context, s *model.Session) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.UserID] = *s
	return nil
}

func (m *MockSessionRepo) Clear(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, userID)
	return nil
}

// ---- Racing PaymentRepository ----

// racingPaymentRepo lets a test run a competing writer right before a
// compare-and-set, so the CAS observes a status that changed after the read.
type racingPaymentRepo struct {
	repository.PaymentRepository
	mu       sync.Mutex
	beforeCA func()
}

func (r *racingPaymentRepo) CompareAndSetStatus(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentStatus, ts time.Time) (bool, error) {
	r.mu.Lock()
	hook := r.beforeCA
	r.beforeCA = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return r.PaymentRepository.CompareAndSetStatus(ctx, tx, id, from, to, ts)
}

// ---- Static catalog ----

type staticCatalog []model.Prompt

func (c staticCatalog) List() []model.Prompt { return c }

func (c staticCatalog) Get(slug string) (model.Prompt, bool) {
	for _, p := range c {
		if p.Slug == slug {
			return p, true
		}
	}
	return model.Prompt{}, false
}

// =============================
// Harness
// =============================

const (
	testAdminID   int64 = 1
	testUserID    int64 = 42
	testUserEmail       = "comprador@example.com"
)

type harness struct {
	store    *memory.Store
	payments repository.PaymentRepository
	gateway  *MockPaymentGateway
	notifier *MockNotifier
	sessions *MockSessionRepo
	clock    *fakeClock
	limiter  usecase.RateLimiter
	recon    usecase.ReconcilerUseCase
	access   usecase.AccessUseCase
}

type harnessOpt func(h *harness)

func withPayments(wrap func(repository.PaymentRepository) repository.PaymentRepository) harnessOpt {
	return func(h *harness) { h.payments = wrap(h.payments) }
}

func newHarness(opts ...harnessOpt) *harness {
	store := memory.New()
	h := &harness{
		store:    store,
		payments: store.Payments(),
		gateway:  NewMockPaymentGateway(),
		notifier: &MockNotifier{},
		sessions: NewMockSessionRepo(),
		clock:    newFakeClock(),
	}
	for _, o := range opts {
		o(h)
	}
	log := newTestLogger()
	h.limiter = usecase.NewRateLimiter(store.RateLimits(), 60*time.Second, 10*time.Second, log)
	h.recon = usecase.NewReconcilerUseCase(h.payments, store.Grants(), store.Audit(), store.TxManager(), h.gateway, h.limiter, h.notifier, h.clock, log)
	h.access = usecase.NewAccessUseCase(
		h.payments, store.Grants(), store.Audit(), h.sessions, store.TxManager(), h.gateway, h.limiter, h.notifier,
		usecase.NewStaticAdminPolicy([]int64{testAdminID}), h.clock,
		usecase.ChargeSettings{Amount: 590, Currency: "BRL", Description: "Acesso Prompts Premium", TTL: 900 * time.Second},
		log,
	)
	return h
}

// withContact stores the payer e-mail for user directly in the session repo.
func (h *harness) withContact(userID int64) *harness {
	_ = h.sessions.Save(context.Background(), &model.Session{UserID: userID, Email: testUserEmail})
	return h
}

// createCharge runs RequestAccess at t0+sec and expects a new charge.
func (h *harness) createCharge(sec int64, userID int64) (*model.Payment, error) {
	h.clock.Set(sec)
	out, err := h.access.RequestAccess(context.Background(), userID)
	if err != nil {
		return nil, err
	}
	if out.Kind != usecase.OutcomeCreated {
		return nil, fmt.Errorf("%w: expected created outcome, got %s", domain.ErrOperationFailed, out.Kind)
	}
	return out.Payment, nil
}

func (h *harness) stored(id string) *model.Payment {
	p, err := h.store.Payments().FindByID(context.Background(), nil, id)
	if err != nil {
		panic(err)
	}
	return p
}

func (h *harness) auditKinds(paymentID string) []string {
	evs, _ := h.store.Audit().ListByPayment(context.Background(), nil, paymentID)
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind)
	}
	return out
}

func countKind(kinds []string, kind string) int {
	n := 0
	for _, k := range kinds {
		if k == kind {
			n++
		}
	}
	return n
}
