//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/worker"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockReconciler struct {
	mu          sync.Mutex
	RefreshFunc func(ctx context.Context, id string) (usecase.ReconcileResult, error)
	refreshed   []string
	expired     []string
}

func (m *mockReconciler) Refresh(ctx context.Context, id string, source model.ObservationSource) (usecase.ReconcileResult, error) {
	m.mu.Lock()
	m.refreshed = append(m.refreshed, id+"/"+string(source))
	m.mu.Unlock()
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, id)
	}
	return usecase.ReconcileResult{Outcome: usecase.ReconcileNoop, Payment: &model.Payment{ID: id, Status: model.PaymentStatusPending}}, nil
}

func (m *mockReconciler) ExpireStale(ctx context.Context, id string) (usecase.ReconcileResult, error) {
	m.mu.Lock()
	m.expired = append(m.expired, id)
	m.mu.Unlock()
	return usecase.ReconcileResult{Outcome: usecase.ReconcileApplied}, nil
}

type mockOpen struct {
	payments []*model.Payment
	err      error
}

func (m mockOpen) ListOpen(ctx context.Context, tx repository.Tx, limit int) ([]*model.Payment, error) {
	return m.payments, m.err
}

func open(id string, age, ttl time.Duration) *model.Payment {
	created := t0.Add(-age)
	return &model.Payment{ID: id, UserID: 1, Status: model.PaymentStatusPending, CreatedAt: created, ExpiresAt: created.Add(ttl)}
}

func newSweeper(t *testing.T, rec *mockReconciler, payments mockOpen) *PaymentSweeper {
	t.Helper()
	l := zerolog.New(io.Discard)
	pool := worker.NewPool(2, &l)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})
	clock := adapter.ClockFunc(func() time.Time { return t0 })
	return NewPaymentSweeper(rec, payments, pool, clock, SweeperOptions{StaleAfter: 2 * time.Minute}, &l)
}

func TestPaymentSweeper_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("should leave fresh payments to the webhook", func(t *testing.T) {
		rec := &mockReconciler{}
		s := newSweeper(t, rec, mockOpen{payments: []*model.Payment{open("fresh", time.Minute, 15*time.Minute)}})

		st, err := s.Sweep(ctx)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if st.Scanned != 1 || len(rec.refreshed) != 0 || len(rec.expired) != 0 {
			t.Errorf("expected no action, got %+v refreshed=%v expired=%v", st, rec.refreshed, rec.expired)
		}
	})

	t.Run("should re-fetch stale payments with the sweep source", func(t *testing.T) {
		rec := &mockReconciler{}
		s := newSweeper(t, rec, mockOpen{payments: []*model.Payment{open("stale", 5*time.Minute, 15*time.Minute)}})

		st, _ := s.Sweep(ctx)

		if st.Refreshed != 1 || len(rec.refreshed) != 1 || rec.refreshed[0] != "stale/sweep" {
			t.Errorf("expected one sweep refresh, got %+v %v", st, rec.refreshed)
		}
		if len(rec.expired) != 0 {
			t.Errorf("expected no expiry before the deadline, got %v", rec.expired)
		}
	})

	t.Run("should expire past-deadline payments still pending at the provider", func(t *testing.T) {
		rec := &mockReconciler{}
		s := newSweeper(t, rec, mockOpen{payments: []*model.Payment{open("late", 20*time.Minute, 15*time.Minute)}})

		st, _ := s.Sweep(ctx)

		if st.Expired != 1 || len(rec.expired) != 1 || rec.expired[0] != "late" {
			t.Errorf("expected one expiry, got %+v %v", st, rec.expired)
		}
	})

	t.Run("should not expire a payment the provider approved late", func(t *testing.T) {
		rec := &mockReconciler{RefreshFunc: func(ctx context.Context, id string) (usecase.ReconcileResult, error) {
			return usecase.ReconcileResult{Outcome: usecase.ReconcileApplied, Granted: true, Payment: &model.Payment{ID: id, Status: model.PaymentStatusApproved}}, nil
		}}
		s := newSweeper(t, rec, mockOpen{payments: []*model.Payment{open("late", 20*time.Minute, 15*time.Minute)}})

		st, _ := s.Sweep(ctx)

		if len(rec.expired) != 0 || st.Expired != 0 {
			t.Errorf("expected no expiry, got %v", rec.expired)
		}
	})

	t.Run("should expire locally when the provider is unreachable", func(t *testing.T) {
		rec := &mockReconciler{RefreshFunc: func(ctx context.Context, id string) (usecase.ReconcileResult, error) {
			return usecase.ReconcileResult{}, domain.NewGatewayError("fetch_status", 0, errors.New("timeout"))
		}}
		s := newSweeper(t, rec, mockOpen{payments: []*model.Payment{
			open("late", 20*time.Minute, 15*time.Minute),
			open("stale", 5*time.Minute, 15*time.Minute),
		}})

		st, err := s.Sweep(ctx)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if st.Errors != 2 || st.Expired != 1 || len(rec.expired) != 1 {
			t.Errorf("unexpected stats %+v expired=%v", st, rec.expired)
		}
	})

	t.Run("should surface a ledger failure", func(t *testing.T) {
		boom := errors.New("db down")
		s := newSweeper(t, &mockReconciler{}, mockOpen{err: boom})

		if _, err := s.Sweep(ctx); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("should return when the pool shuts down with tasks still queued", func(t *testing.T) {
		// --- Arrange ---
		l := zerolog.New(io.Discard)
		pool := worker.NewPool(1, &l)
		poolCtx, cancel := context.WithCancel(context.Background())
		pool.Start(poolCtx)

		started := make(chan struct{}, 3)
		rec := &mockReconciler{RefreshFunc: func(ctx context.Context, id string) (usecase.ReconcileResult, error) {
			started <- struct{}{}
			<-ctx.Done()
			return usecase.ReconcileResult{}, ctx.Err()
		}}
		payments := mockOpen{payments: []*model.Payment{
			open("a", 5*time.Minute, 15*time.Minute),
			open("b", 5*time.Minute, 15*time.Minute),
			open("c", 5*time.Minute, 15*time.Minute),
		}}
		clock := adapter.ClockFunc(func() time.Time { return t0 })
		s := NewPaymentSweeper(rec, payments, pool, clock, SweeperOptions{StaleAfter: 2 * time.Minute}, &l)

		// --- Act ---
		type result struct {
			st  SweepStats
			err error
		}
		done := make(chan result, 1)
		go func() {
			st, err := s.Sweep(ctx)
			done <- result{st, err}
		}()
		<-started
		cancel()
		pool.Stop()

		// --- Assert ---
		select {
		case r := <-done:
			if r.err == nil && r.st.Errors != 3 {
				t.Errorf("expected ErrPoolStopped or every task to fail, got %+v", r.st)
			}
			if r.err != nil && !errors.Is(r.err, worker.ErrPoolStopped) {
				t.Errorf("expected ErrPoolStopped, got %v", r.err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("expected Sweep to return after the pool stopped")
		}
	})
}
