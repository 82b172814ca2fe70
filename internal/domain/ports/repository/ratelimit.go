package repository

import (
	"context"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
)

type RateLimitRepository interface {
	// Get returns a zero state (never performed) for users without a row.
	Get(ctx context.Context, tx Tx, userID int64) (model.RateLimitState, error)
	// Touch records a successful action at ts, creating the row on first use.
	Touch(ctx context.Context, tx Tx, userID int64, action model.RateAction, ts int64) error
}
