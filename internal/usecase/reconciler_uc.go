// File: internal/usecase/reconciler_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
)

// Compile-time check
var _ ReconcilerUseCase = (*reconcilerUC)(nil)

// maxCASAttempts bounds re-reads after losing a compare-and-set race.
const maxCASAttempts = 4

type ReconcileOutcome string

const (
	ReconcileApplied   ReconcileOutcome = "applied"   // stored status changed
	ReconcileNoop      ReconcileOutcome = "noop"      // observation matched the stored status
	ReconcileIgnored   ReconcileOutcome = "ignored"   // transition not allowed (e.g. pending after expired)
	ReconcileConflict  ReconcileOutcome = "conflict"  // provider-final status contradicted
	ReconcileDiscarded ReconcileOutcome = "discarded" // payment id not in the ledger
)

type ReconcileResult struct {
	Outcome  ReconcileOutcome
	Previous model.PaymentStatus
	Payment  *model.Payment // state after the decision; nil when discarded
	Granted  bool           // a new access grant was written
	Notified bool
}

type PollOutcome string

const (
	PollAlreadyHasAccess PollOutcome = "already_has_access"
	PollNoPayment        PollOutcome = "no_payment"
	PollRateLimited      PollOutcome = "rate_limited"
	PollStatus           PollOutcome = "status"
)

type PollResult struct {
	Outcome     PollOutcome
	Status      model.PaymentStatus // set for PollStatus
	Payment     *model.Payment
	WaitSeconds int // set for PollRateLimited
	Granted     bool
}

// ReconcilerUseCase merges status observations from every channel into the
// ledger and is the only writer of payment-driven access grants.
type ReconcilerUseCase interface {
	Observe(ctx context.Context, obs model.Observation) (ReconcileResult, error)
	// HandleWebhook treats the callback as a pointer only and re-fetches the status.
	HandleWebhook(ctx context.Context, providerPaymentID string) (ReconcileResult, error)
	// Refresh re-fetches the provider status and records it under source.
	Refresh(ctx context.Context, paymentID string, source model.ObservationSource) (ReconcileResult, error)
	Poll(ctx context.Context, userID int64) (PollResult, error)
	ExpireStale(ctx context.Context, paymentID string) (ReconcileResult, error)
}

type reconcilerUC struct {
	payments repository.PaymentRepository
	grants   repository.AccessGrantRepository
	audit    repository.AuditRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	limiter  RateLimiter
	notifier adapter.Notifier
	clock    adapter.Clock
	log      *zerolog.Logger
}

func NewReconcilerUseCase(
	payments repository.PaymentRepository,
	grants repository.AccessGrantRepository,
	audit repository.AuditRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	limiter RateLimiter,
	notifier adapter.Notifier,
	clock adapter.Clock,
	logger *zerolog.Logger,
) *reconcilerUC {
	l := logger.With().Str("component", "Reconciler").Logger()
	return &reconcilerUC{
		payments: payments,
		grants:   grants,
		audit:    audit,
		tm:       tm,
		gateway:  gateway,
		limiter:  limiter,
		notifier: notifier,
		clock:    clock,
		log:      &l,
	}
}

// decision is the outcome of the transition rule for one stored status.
type decision struct {
	outcome ReconcileOutcome
	target  model.PaymentStatus
	audit   string // audit kind to append when nothing is applied; empty for none
}

// decide applies the transition rule. It never looks at anything but the
// stored record, the observation and the clock.
func decide(cur *model.Payment, obs model.Observation, now time.Time) decision {
	if cur.Status.IsTerminal() && cur.Status == obs.Status {
		return decision{outcome: ReconcileNoop, audit: model.AuditPaymentReconfirmed}
	}

	if !obs.FromProvider() {
		if obs.Status == model.PaymentStatusExpired && cur.PastDeadline(now) {
			return decision{outcome: ReconcileApplied, target: model.PaymentStatusExpired}
		}
		return decision{outcome: ReconcileIgnored}
	}

	switch {
	case cur.Status.IsProviderFinal():
		return decision{outcome: ReconcileConflict, audit: model.AuditPaymentConflict}
	case cur.Status == model.PaymentStatusExpired:
		// the provider's final word beats our local guess; a non-final one never revives it
		if obs.Status.IsProviderFinal() {
			return decision{outcome: ReconcileApplied, target: obs.Status}
		}
		return decision{outcome: ReconcileIgnored}
	case cur.Status == obs.Status:
		return decision{outcome: ReconcileNoop}
	default:
		return decision{outcome: ReconcileApplied, target: obs.Status}
	}
}

func (u *reconcilerUC) Observe(ctx context.Context, obs model.Observation) (ReconcileResult, error) {
	if obs.PaymentID == "" || !obs.Status.Valid() {
		return ReconcileResult{}, fmt.Errorf("%w: observation %+v", domain.ErrInvalidArgument, obs)
	}
	log := u.log.With().Str("payment_id", obs.PaymentID).Str("source", string(obs.Source)).Logger()

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		res, lost, err := u.observeOnce(ctx, obs)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Warn().Str("status", string(obs.Status)).Msg("observation for unknown payment discarded")
				metrics.IncReconcileOutcome(string(obs.Source), string(ReconcileDiscarded))
				return ReconcileResult{Outcome: ReconcileDiscarded}, nil
			}
			return ReconcileResult{}, err
		}
		if lost {
			log.Debug().Int("attempt", attempt).Msg("lost compare-and-set, re-reading")
			continue
		}

		metrics.IncReconcileOutcome(string(obs.Source), string(res.Outcome))
		if res.Outcome == ReconcileApplied {
			metrics.IncPayment(string(res.Payment.Status))
			log.Info().
				Int64("tg_id", res.Payment.UserID).
				Str("from", string(res.Previous)).
				Str("to", string(res.Payment.Status)).
				Msg("payment status updated")
		}
		if res.Outcome == ReconcileConflict {
			log.Warn().Str("stored", string(res.Previous)).Str("observed", string(obs.Status)).Msg("observation contradicts final status")
		}

		// notify after commit: only the call that moved the record to approved
		// and created the grant speaks to the user
		if res.Granted {
			metrics.IncAccessGrant(string(model.GrantSourcePayment))
			if res.Previous != model.PaymentStatusApproved && res.Payment.Status == model.PaymentStatusApproved {
				res.Notified = notifyGranted(ctx, u.notifier, &log, res.Payment.UserID)
			}
		}
		return res, nil
	}
	return ReconcileResult{}, fmt.Errorf("%w: payment %s kept changing under reconciliation", domain.ErrOperationFailed, obs.PaymentID)
}

// observeOnce runs one read-decide-write cycle inside a ledger transaction.
// lost is true when another writer changed the status after our read.
func (u *reconcilerUC) observeOnce(ctx context.Context, obs model.Observation) (res ReconcileResult, lost bool, err error) {
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.payments.FindByID(ctx, tx, obs.PaymentID)
		if err != nil {
			return err
		}
		now := u.clock.Now()
		d := decide(cur, obs, now)
		res = ReconcileResult{Outcome: d.outcome, Previous: cur.Status, Payment: cur}

		if d.outcome != ReconcileApplied {
			if d.audit == "" {
				return nil
			}
			ev := model.NewAuditEvent(d.audit, cur.UserID, cur.ID, now)
			ev.Source, ev.From, ev.To = string(obs.Source), string(cur.Status), string(obs.Status)
			return u.audit.Append(ctx, tx, ev)
		}

		ok, err := u.payments.CompareAndSetStatus(ctx, tx, cur.ID, cur.Status, d.target, now)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		if !ok {
			lost = true
			return nil
		}

		after := *cur
		after.Status = d.target
		after.UpdatedAt = now
		if d.target == model.PaymentStatusApproved && after.ApprovedAt == nil {
			after.ApprovedAt = &now
		}
		res.Payment = &after

		ev := model.NewAuditEvent(model.AuditPaymentTransition, cur.UserID, cur.ID, now)
		ev.Source, ev.From, ev.To = string(obs.Source), string(cur.Status), string(d.target)
		if err := u.audit.Append(ctx, tx, ev); err != nil {
			return err
		}

		if d.target != model.PaymentStatusApproved {
			return nil
		}
		wasNew, err := u.grants.Grant(ctx, tx, &model.AccessGrant{
			UserID:    cur.UserID,
			Source:    model.GrantSourcePayment,
			PaymentID: cur.ID,
			GrantedAt: now,
		})
		if err != nil {
			return fmt.Errorf("grant access: %w", err)
		}
		res.Granted = wasNew
		if wasNew {
			gev := model.NewAuditEvent(model.AuditAccessGranted, cur.UserID, cur.ID, now)
			gev.Source = string(model.GrantSourcePayment)
			return u.audit.Append(ctx, tx, gev)
		}
		return nil
	})
	if lost {
		return ReconcileResult{}, true, err
	}
	return res, false, err
}

func (u *reconcilerUC) HandleWebhook(ctx context.Context, providerPaymentID string) (ReconcileResult, error) {
	if providerPaymentID == "" {
		return ReconcileResult{}, fmt.Errorf("%w: empty payment id", domain.ErrInvalidArgument)
	}
	return u.Refresh(ctx, providerPaymentID, model.SourceWebhook)
}

func (u *reconcilerUC) Refresh(ctx context.Context, paymentID string, source model.ObservationSource) (ReconcileResult, error) {
	// a callback for a charge we never created must not cost a provider round-trip
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("payment_id", paymentID).Str("source", string(source)).Msg("notification for unknown payment discarded")
			metrics.IncReconcileOutcome(string(source), string(ReconcileDiscarded))
			return ReconcileResult{Outcome: ReconcileDiscarded}, nil
		}
		return ReconcileResult{}, err
	}

	st, err := u.gateway.FetchStatus(ctx, paymentID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("fetch status of %s: %w", paymentID, err)
	}
	if st.ExternalReference != "" && st.ExternalReference != strconv.FormatInt(p.UserID, 10) {
		u.log.Warn().
			Str("payment_id", paymentID).
			Int64("tg_id", p.UserID).
			Str("external_reference", st.ExternalReference).
			Msg("provider reference does not match ledger owner")
		// the ledger owner stays authoritative; the mismatch is kept on record
		ev := model.NewAuditEvent(model.AuditPaymentConflict, p.UserID, p.ID, u.clock.Now())
		ev.Source, ev.From, ev.To = string(source), string(p.Status), string(st.Status)
		ev.Detail = "external_reference=" + st.ExternalReference
		if err := u.audit.Append(ctx, repository.NoTX, ev); err != nil {
			u.log.Error().Err(err).Str("payment_id", paymentID).Msg("failed to audit reference mismatch")
		}
	}
	return u.Observe(ctx, model.Observation{PaymentID: paymentID, Status: st.Status, Source: source, At: u.clock.Now()})
}

func (u *reconcilerUC) ExpireStale(ctx context.Context, paymentID string) (ReconcileResult, error) {
	return u.Observe(ctx, model.Observation{
		PaymentID: paymentID,
		Status:    model.PaymentStatusExpired,
		Source:    model.SourceLocalExpiry,
		At:        u.clock.Now(),
	})
}

func (u *reconcilerUC) Poll(ctx context.Context, userID int64) (PollResult, error) {
	has, err := u.grants.HasAccess(ctx, repository.NoTX, userID)
	if err != nil {
		return PollResult{}, err
	}
	if has {
		return PollResult{Outcome: PollAlreadyHasAccess}, nil
	}

	p, err := u.payments.FindLatestByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return PollResult{Outcome: PollNoPayment}, nil
		}
		return PollResult{}, err
	}

	now := u.clock.Now()
	v, err := u.limiter.CanVerify(ctx, userID, now)
	if err != nil {
		return PollResult{}, err
	}
	if !v.Allowed {
		return PollResult{Outcome: PollRateLimited, WaitSeconds: v.WaitSeconds, Payment: p}, nil
	}

	var out PollResult
	switch {
	case p.Status.IsTerminal():
		out = PollResult{Outcome: PollStatus, Status: p.Status, Payment: p}

	case !p.IsLive(now):
		res, err := u.settleOverdue(ctx, p, now)
		if err != nil {
			return PollResult{}, err
		}
		out = pollFrom(res, p)

	default:
		st, err := u.gateway.FetchStatus(ctx, p.ID)
		if err != nil {
			// surfaced as-is; the verify cooldown is not consumed
			return PollResult{}, fmt.Errorf("fetch status of %s: %w", p.ID, err)
		}
		res, err := u.Observe(ctx, model.Observation{PaymentID: p.ID, Status: st.Status, Source: model.SourcePoll, At: now})
		if err != nil {
			return PollResult{}, err
		}
		out = pollFrom(res, p)
	}

	if err := u.limiter.MarkVerified(ctx, userID, now); err != nil {
		u.log.Error().Err(err).Int64("tg_id", userID).Msg("failed to record verify timestamp")
	}
	return out, nil
}

// settleOverdue asks the provider once more before expiring a record past its
// deadline, so an approval that raced the deadline is still applied. An
// unreachable provider does not block the local expiry.
func (u *reconcilerUC) settleOverdue(ctx context.Context, p *model.Payment, now time.Time) (ReconcileResult, error) {
	st, err := u.gateway.FetchStatus(ctx, p.ID)
	if err != nil {
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("provider unreachable, expiring locally")
		return u.ExpireStale(ctx, p.ID)
	}
	res, err := u.Observe(ctx, model.Observation{PaymentID: p.ID, Status: st.Status, Source: model.SourcePoll, At: now})
	if err != nil {
		return ReconcileResult{}, err
	}
	if res.Payment != nil && res.Payment.Status.IsTerminal() {
		return res, nil
	}
	return u.ExpireStale(ctx, p.ID)
}

func pollFrom(res ReconcileResult, fallback *model.Payment) PollResult {
	p := res.Payment
	if p == nil {
		p = fallback
	}
	return PollResult{Outcome: PollStatus, Status: p.Status, Payment: p, Granted: res.Granted}
}

// notifyGranted delivers the access notification. Failures are logged only:
// the grant is already committed.
func notifyGranted(ctx context.Context, n adapter.Notifier, log *zerolog.Logger, userID int64) bool {
	if n == nil {
		return false
	}
	if err := n.NotifyAccessGranted(ctx, userID); err != nil {
		metrics.IncAccessNotification("error")
		log.Error().Err(err).Int64("tg_id", userID).Msg("access notification failed")
		return false
	}
	metrics.IncAccessNotification("sent")
	return true
}
