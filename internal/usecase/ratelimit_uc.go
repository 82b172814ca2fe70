package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
)

// Compile-time check
var _ RateLimiter = (*rateLimiterUC)(nil)

// RateLimiter enforces the per-user cooldowns for charge creation and status checks.
// Only successful actions are recorded, so a failed provider call never costs a cooldown.
type RateLimiter interface {
	CanCreate(ctx context.Context, userID int64, now time.Time) (model.Verdict, error)
	CanVerify(ctx context.Context, userID int64, now time.Time) (model.Verdict, error)
	MarkCreated(ctx context.Context, userID int64, now time.Time) error
	MarkVerified(ctx context.Context, userID int64, now time.Time) error
}

type rateLimiterUC struct {
	limits         repository.RateLimitRepository
	createCooldown time.Duration
	verifyCooldown time.Duration
	log            *zerolog.Logger
}

func NewRateLimiter(limits repository.RateLimitRepository, createCooldown, verifyCooldown time.Duration, logger *zerolog.Logger) *rateLimiterUC {
	l := logger.With().Str("component", "RateLimiter").Logger()
	return &rateLimiterUC{limits: limits, createCooldown: createCooldown, verifyCooldown: verifyCooldown, log: &l}
}

func (r *rateLimiterUC) CanCreate(ctx context.Context, userID int64, now time.Time) (model.Verdict, error) {
	return r.check(ctx, userID, model.ActionCreate, r.createCooldown, now)
}

func (r *rateLimiterUC) CanVerify(ctx context.Context, userID int64, now time.Time) (model.Verdict, error) {
	return r.check(ctx, userID, model.ActionVerify, r.verifyCooldown, now)
}

func (r *rateLimiterUC) MarkCreated(ctx context.Context, userID int64, now time.Time) error {
	return r.limits.Touch(ctx, repository.NoTX, userID, model.ActionCreate, now.Unix())
}

func (r *rateLimiterUC) MarkVerified(ctx context.Context, userID int64, now time.Time) error {
	return r.limits.Touch(ctx, repository.NoTX, userID, model.ActionVerify, now.Unix())
}

func (r *rateLimiterUC) check(ctx context.Context, userID int64, action model.RateAction, cooldown time.Duration, now time.Time) (model.Verdict, error) {
	st, err := r.limits.Get(ctx, repository.NoTX, userID)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("load rate limit state: %w", err)
	}
	v := model.CheckCooldown(st.Last(action), cooldown, now)
	if !v.Allowed {
		metrics.IncRateLimitDenied(string(action))
		r.log.Debug().Int64("tg_id", userID).Str("action", string(action)).Int("wait_s", v.WaitSeconds).Msg("cooldown active")
	}
	return v, nil
}
