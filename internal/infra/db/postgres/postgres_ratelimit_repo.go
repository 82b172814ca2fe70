package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
)

var _ repository.RateLimitRepository = (*rateLimitRepo)(nil)

type rateLimitRepo struct{ pool *pgxpool.Pool }

func NewRateLimitRepo(pool *pgxpool.Pool) *rateLimitRepo {
	return &rateLimitRepo{pool: pool}
}

func (r *rateLimitRepo) Get(ctx context.Context, tx repository.Tx, userID int64) (model.RateLimitState, error) {
	st := model.RateLimitState{UserID: userID}
	row, err := pickRow(ctx, r.pool, tx, `SELECT last_create_ts, last_verify_ts FROM rate_limits WHERE user_id=$1;`, userID)
	if err != nil {
		return st, err
	}
	if err := row.Scan(&st.LastCreateTS, &st.LastVerifyTS); err != nil {
		if err == pgx.ErrNoRows {
			return st, nil
		}
		return st, domain.ErrReadDatabaseRow
	}
	return st, nil
}

func (r *rateLimitRepo) Touch(ctx context.Context, tx repository.Tx, userID int64, action model.RateAction, ts int64) error {
	var q string
	switch action {
	case model.ActionCreate:
		q = `INSERT INTO rate_limits (user_id, last_create_ts) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET last_create_ts = EXCLUDED.last_create_ts;`
	case model.ActionVerify:
		q = `INSERT INTO rate_limits (user_id, last_verify_ts) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET last_verify_ts = EXCLUDED.last_verify_ts;`
	default:
		return domain.ErrInvalidArgument
	}
	_, err := execSQL(ctx, r.pool, tx, q, userID, ts)
	return mapErr(err)
}
