package repository

import (
	"context"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
)

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditEvent) error
	ListByPayment(ctx context.Context, tx Tx, paymentID string) ([]*model.AuditEvent, error)
	ListByUser(ctx context.Context, tx Tx, userID int64, limit int) ([]*model.AuditEvent, error)
}
