package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/worker"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

// SweepReconciler is the part of usecase.ReconcilerUseCase the sweeper drives.
type SweepReconciler interface {
	Refresh(ctx context.Context, paymentID string, source model.ObservationSource) (usecase.ReconcileResult, error)
	ExpireStale(ctx context.Context, paymentID string) (usecase.ReconcileResult, error)
}

// OpenPayments lists non-terminal payments, oldest first.
type OpenPayments interface {
	ListOpen(ctx context.Context, tx repository.Tx, limit int) ([]*model.Payment, error)
}

type SweeperOptions struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// SweepStats counts what one pass did.
type SweepStats struct {
	Scanned   int
	Refreshed int
	Expired   int
	Errors    int
}

// PaymentSweeper settles open payments nobody asked about: it re-fetches
// charges whose webhook never arrived and expires charges past their deadline.
type PaymentSweeper struct {
	rec      SweepReconciler
	payments OpenPayments
	pool     *worker.Pool
	clock    adapter.Clock
	opts     SweeperOptions
	log      *zerolog.Logger
}

func NewPaymentSweeper(rec SweepReconciler, payments OpenPayments, pool *worker.Pool, clock adapter.Clock, opts SweeperOptions, logger *zerolog.Logger) *PaymentSweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	l := logger.With().Str("component", "PaymentSweeper").Logger()
	return &PaymentSweeper{rec: rec, payments: payments, pool: pool, clock: clock, opts: opts, log: &l}
}

func (s *PaymentSweeper) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.opts.Interval).Msg("starting payment sweeper")
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("stopping payment sweeper")
			return ctx.Err()
		case <-ticker.C:
			st, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if st.Refreshed+st.Expired+st.Errors > 0 {
				s.log.Info().
					Int("scanned", st.Scanned).
					Int("refreshed", st.Refreshed).
					Int("expired", st.Expired).
					Int("errors", st.Errors).
					Msg("sweep done")
			}
		}
	}
}

// Sweep runs one pass and waits for every submitted task. If the pool shuts
// down first, tasks it dropped are not waited for.
func (s *PaymentSweeper) Sweep(ctx context.Context) (SweepStats, error) {
	open, err := s.payments.ListOpen(ctx, repository.NoTX, s.opts.BatchSize)
	if err != nil {
		return SweepStats{}, err
	}
	now := s.clock.Now()

	var (
		mu sync.Mutex
		st = SweepStats{Scanned: len(open)}
		wg sync.WaitGroup
	)
	count := func(f func(*SweepStats)) {
		mu.Lock()
		f(&st)
		mu.Unlock()
	}

	// each task releases wg exactly once, whether it ran or the pool dropped it
	var (
		submitErr error
		releases  []func()
	)
	for _, p := range open {
		p := p
		past := p.PastDeadline(now)
		if !past && now.Sub(p.CreatedAt) < s.opts.StaleAfter {
			continue
		}
		var once sync.Once
		release := func() { once.Do(wg.Done) }
		wg.Add(1)
		err := s.pool.Submit(ctx, func(ctx context.Context) error {
			defer release()
			return s.settle(ctx, p, past, count)
		})
		if err != nil {
			release()
			submitErr = err
			break
		}
		releases = append(releases, release)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-s.pool.Done():
		s.log.Warn().Msg("worker pool stopped during sweep")
		for _, release := range releases {
			release()
		}
		<-finished
		if submitErr == nil {
			submitErr = worker.ErrPoolStopped
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return st, submitErr
}

// settle asks the provider first so a late approval is never lost, and
// expires locally only what is still open after that.
func (s *PaymentSweeper) settle(ctx context.Context, p *model.Payment, past bool, count func(func(*SweepStats))) error {
	l := s.log.With().Str("payment_id", p.ID).Int64("tg_id", p.UserID).Logger()

	res, err := s.rec.Refresh(ctx, p.ID, model.SourceSweep)
	if err != nil {
		metrics.IncSweeperAction("error")
		count(func(st *SweepStats) { st.Errors++ })
		l.Warn().Err(err).Msg("sweep refresh failed")
	} else {
		metrics.IncSweeperAction("refresh")
		count(func(st *SweepStats) { st.Refreshed++ })
	}
	if !past {
		return nil
	}
	if err == nil && (res.Payment == nil || res.Payment.Status.IsTerminal()) {
		return nil
	}

	exp, err := s.rec.ExpireStale(ctx, p.ID)
	if err != nil {
		metrics.IncSweeperAction("error")
		count(func(st *SweepStats) { st.Errors++ })
		return err
	}
	if exp.Outcome != usecase.ReconcileApplied {
		return nil
	}
	metrics.IncSweeperAction("expire")
	count(func(st *SweepStats) { st.Expired++ })
	return nil
}
