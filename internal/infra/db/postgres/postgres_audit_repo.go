package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
)

var _ repository.AuditRepository = (*auditRepo)(nil)

type auditRepo struct{ pool *pgxpool.Pool }

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

const auditColumns = `id, kind, user_id, payment_id, source, from_state, to_state, detail, created_at`

func (r *auditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEvent) error {
	const q = `INSERT INTO audit_events (` + auditColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Kind, e.UserID, e.PaymentID, e.Source, e.From, e.To, e.Detail, e.CreatedAt)
	return mapErr(err)
}

func (r *auditRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.AuditEvent, error) {
	const q = `SELECT ` + auditColumns + ` FROM audit_events WHERE payment_id=$1 ORDER BY id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectAudit(rows)
}

func (r *auditRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64, limit int) ([]*model.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + auditColumns + ` FROM audit_events WHERE user_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectAudit(rows)
}

func collectAudit(rows pgx.Rows) ([]*model.AuditEvent, error) {
	defer rows.Close()
	out := make([]*model.AuditEvent, 0)
	for rows.Next() {
		e := &model.AuditEvent{}
		if err := rows.Scan(&e.ID, &e.Kind, &e.UserID, &e.PaymentID, &e.Source, &e.From, &e.To, &e.Detail, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
