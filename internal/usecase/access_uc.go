// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

type AccessOutcomeKind string

const (
	OutcomeAlreadyHasAccess AccessOutcomeKind = "already_has_access"
	OutcomeNeedContact      AccessOutcomeKind = "need_contact"
	OutcomeRateLimited      AccessOutcomeKind = "rate_limited"
	OutcomeExisting         AccessOutcomeKind = "existing"
	OutcomeCreated          AccessOutcomeKind = "created"
)

type AccessOutcome struct {
	Kind        AccessOutcomeKind
	Payment     *model.Payment // Existing / Created
	QRImage     *string        // Created only, base64 PNG
	WaitSeconds int            // RateLimited only
}

// ChargeSettings is the fixed offer sold by the bot.
type ChargeSettings struct {
	Amount      int64 // centavos
	Currency    string
	Description string
	CallbackURL string
	TTL         time.Duration
}

type AccessUseCase interface {
	RequestAccess(ctx context.Context, userID int64) (AccessOutcome, error)
	HasAccess(ctx context.Context, userID int64) (bool, error)
	SetContact(ctx context.Context, userID int64, email string) error
	AwaitingContact(ctx context.Context, userID int64) (bool, error)
	ForceGrant(ctx context.Context, actorID, userID int64) (wasNew bool, err error)
	Grant(ctx context.Context, userID int64) (*model.AccessGrant, error)
}

type accessUC struct {
	payments repository.PaymentRepository
	grants   repository.AccessGrantRepository
	audit    repository.AuditRepository
	sessions repository.SessionRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	limiter  RateLimiter
	notifier adapter.Notifier
	policy   AdminPolicy
	clock    adapter.Clock
	charge   ChargeSettings

	flight   singleflight.Group
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewAccessUseCase(
	payments repository.PaymentRepository,
	grants repository.AccessGrantRepository,
	audit repository.AuditRepository,
	sessions repository.SessionRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	limiter RateLimiter,
	notifier adapter.Notifier,
	policy AdminPolicy,
	clock adapter.Clock,
	charge ChargeSettings,
	logger *zerolog.Logger,
) *accessUC {
	l := logger.With().Str("component", "AccessUseCase").Logger()
	if charge.Currency == "" {
		charge.Currency = "BRL"
	}
	return &accessUC{
		payments: payments,
		grants:   grants,
		audit:    audit,
		sessions: sessions,
		tm:       tm,
		gateway:  gateway,
		limiter:  limiter,
		notifier: notifier,
		policy:   policy,
		clock:    clock,
		charge:   charge,
		validate: validator.New(),
		log:      &l,
	}
}

// RequestAccess runs the charge creation flow. Concurrent calls for one user
// share a single execution, so one intent yields at most one provider charge.
func (u *accessUC) RequestAccess(ctx context.Context, userID int64) (AccessOutcome, error) {
	v, err, shared := u.flight.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		return u.requestAccess(ctx, userID)
	})
	if shared {
		u.log.Debug().Int64("tg_id", userID).Msg("joined in-flight access request")
	}
	if err != nil {
		return AccessOutcome{}, err
	}
	return v.(AccessOutcome), nil
}

func (u *accessUC) requestAccess(ctx context.Context, userID int64) (AccessOutcome, error) {
	has, err := u.grants.HasAccess(ctx, repository.NoTX, userID)
	if err != nil {
		return AccessOutcome{}, err
	}
	if has {
		return AccessOutcome{Kind: OutcomeAlreadyHasAccess}, nil
	}

	sess, err := u.sessions.Get(ctx, userID)
	if err != nil {
		return AccessOutcome{}, fmt.Errorf("load session: %w", err)
	}
	if !sess.HasContact() {
		sess.UserID = userID
		sess.AwaitingContact = true
		if err := u.sessions.Save(ctx, sess); err != nil {
			return AccessOutcome{}, fmt.Errorf("save session: %w", err)
		}
		return AccessOutcome{Kind: OutcomeNeedContact}, nil
	}

	now := u.clock.Now()
	verdict, err := u.limiter.CanCreate(ctx, userID, now)
	if err != nil {
		return AccessOutcome{}, err
	}
	if !verdict.Allowed {
		return AccessOutcome{Kind: OutcomeRateLimited, WaitSeconds: verdict.WaitSeconds}, nil
	}

	live, err := u.payments.FindLiveByUser(ctx, repository.NoTX, userID, now)
	switch {
	case err == nil:
		return AccessOutcome{Kind: OutcomeExisting, Payment: live}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return AccessOutcome{}, err
	}

	expiresAt := now.Add(u.charge.TTL)
	res, err := u.gateway.CreateCharge(ctx, adapter.ChargeRequest{
		UserID:         userID,
		Email:          sess.Email,
		Amount:         u.charge.Amount,
		Description:    u.charge.Description,
		CallbackURL:    u.charge.CallbackURL,
		IdempotencyKey: uuid.NewString(),
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		return AccessOutcome{}, fmt.Errorf("create charge: %w", err)
	}

	p := &model.Payment{
		ID:          res.PaymentID,
		UserID:      userID,
		Status:      model.PaymentStatusPending,
		Amount:      u.charge.Amount,
		Currency:    u.charge.Currency,
		Email:       sess.Email,
		DisplayCode: res.DisplayCode,
		TicketURL:   res.TicketURL,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		UpdatedAt:   now,
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.Insert(ctx, tx, p); err != nil {
			return err
		}
		ev := model.NewAuditEvent(model.AuditPaymentCreated, userID, p.ID, now)
		ev.To = string(p.Status)
		return u.audit.Append(ctx, tx, ev)
	})
	if err != nil {
		// the provider charge exists but we could not record it; nobody can pay for it through us
		u.log.Error().Err(err).Int64("tg_id", userID).Str("payment_id", res.PaymentID).Msg("failed to persist created charge")
		return AccessOutcome{}, fmt.Errorf("persist payment: %w", err)
	}
	if err := u.limiter.MarkCreated(ctx, userID, now); err != nil {
		u.log.Error().Err(err).Int64("tg_id", userID).Msg("failed to record create timestamp")
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().Int64("tg_id", userID).Str("payment_id", p.ID).Time("expires_at", expiresAt).Msg("charge created")
	return AccessOutcome{Kind: OutcomeCreated, Payment: p, QRImage: res.DisplayImage}, nil
}

func (u *accessUC) HasAccess(ctx context.Context, userID int64) (bool, error) {
	return u.grants.HasAccess(ctx, repository.NoTX, userID)
}

func (u *accessUC) Grant(ctx context.Context, userID int64) (*model.AccessGrant, error) {
	return u.grants.FindByUser(ctx, repository.NoTX, userID)
}

// SetContact stores the payer e-mail. Invalid input leaves the session untouched.
func (u *accessUC) SetContact(ctx context.Context, userID int64, email string) error {
	email = strings.TrimSpace(email)
	if err := u.validate.Var(email, "required,email,max=254"); err != nil {
		return fmt.Errorf("%w: contact address: %v", domain.ErrInvalidInput, err)
	}
	sess, err := u.sessions.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.UserID = userID
	sess.Email = email
	sess.AwaitingContact = false
	return u.sessions.Save(ctx, sess)
}

func (u *accessUC) AwaitingContact(ctx context.Context, userID int64) (bool, error) {
	sess, err := u.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return sess.AwaitingContact, nil
}

// ForceGrant lets an operator unlock access without a payment.
func (u *accessUC) ForceGrant(ctx context.Context, actorID, userID int64) (bool, error) {
	now := u.clock.Now()
	verdict := u.policy.Authorize(actorID)
	if !verdict.Allowed {
		ev := model.NewAuditEvent(model.AuditAccessForceDenied, userID, "", now)
		ev.Detail = fmt.Sprintf("actor=%d reason=%s", actorID, verdict.Reason)
		if err := u.audit.Append(ctx, repository.NoTX, ev); err != nil {
			u.log.Error().Err(err).Msg("failed to audit denied force grant")
		}
		metrics.IncAdminCommand("grant", "unauthorized")
		u.log.Warn().Int64("actor_id", actorID).Int64("tg_id", userID).Msg("force grant denied")
		return false, domain.ErrForbidden
	}
	if userID <= 0 {
		return false, fmt.Errorf("%w: user id %d", domain.ErrInvalidInput, userID)
	}

	var wasNew bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		wasNew, err = u.grants.Grant(ctx, tx, &model.AccessGrant{UserID: userID, Source: model.GrantSourceAdmin, GrantedAt: now})
		if err != nil {
			return err
		}
		ev := model.NewAuditEvent(model.AuditAccessForced, userID, "", now)
		ev.Source = string(model.GrantSourceAdmin)
		ev.Detail = fmt.Sprintf("actor=%d new=%t", actorID, wasNew)
		return u.audit.Append(ctx, tx, ev)
	})
	if err != nil {
		return false, fmt.Errorf("force grant: %w", err)
	}

	metrics.IncAdminCommand("grant", "authorized")
	u.log.Info().Int64("actor_id", actorID).Int64("tg_id", userID).Bool("new", wasNew).Msg("access force-granted")
	if wasNew {
		metrics.IncAccessGrant(string(model.GrantSourceAdmin))
		notifyGranted(ctx, u.notifier, u.log, userID)
	}
	return wasNew, nil
}
