package repository

import (
	"context"
	"time"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Insert stores a freshly created charge. Fails with domain.ErrAlreadyExists on a duplicate id.
	Insert(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindLatestByUser returns the most recently created record of the user.
	FindLatestByUser(ctx context.Context, tx Tx, userID int64) (*model.Payment, error)
	// FindLiveByUser returns the user's non-terminal record that has not reached expires_at.
	FindLiveByUser(ctx context.Context, tx Tx, userID int64, now time.Time) (*model.Payment, error)
	// ListOpen returns non-terminal records, oldest first.
	ListOpen(ctx context.Context, tx Tx, limit int) ([]*model.Payment, error)
	// CompareAndSetStatus moves id from `from` to `to` only if the stored status is still `from`.
	CompareAndSetStatus(ctx context.Context, tx Tx, id string, from, to model.PaymentStatus, at time.Time) (bool, error)
}
