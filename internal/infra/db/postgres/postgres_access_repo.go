package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
)

var _ repository.AccessGrantRepository = (*accessGrantRepo)(nil)

type accessGrantRepo struct{ pool *pgxpool.Pool }

func NewAccessGrantRepo(pool *pgxpool.Pool) *accessGrantRepo {
	return &accessGrantRepo{pool: pool}
}

func (r *accessGrantRepo) Grant(ctx context.Context, tx repository.Tx, g *model.AccessGrant) (bool, error) {
	const q = `
INSERT INTO access_grants (user_id, source, payment_id, granted_at)
VALUES ($1, $2, NULLIF($3, ''), $4)
ON CONFLICT (user_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, g.UserID, string(g.Source), g.PaymentID, g.GrantedAt)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *accessGrantRepo) HasAccess(ctx context.Context, tx repository.Tx, userID int64) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS(SELECT 1 FROM access_grants WHERE user_id=$1);`, userID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return ok, nil
}

func (r *accessGrantRepo) FindByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.AccessGrant, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT user_id, source, COALESCE(payment_id, ''), granted_at FROM access_grants WHERE user_id=$1;`, userID)
	if err != nil {
		return nil, err
	}
	g := &model.AccessGrant{}
	var source string
	if err := row.Scan(&g.UserID, &source, &g.PaymentID, &g.GrantedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	g.Source = model.GrantSource(source)
	return g, nil
}
