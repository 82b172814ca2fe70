package repository

import (
	"context"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
)

// AccessGrantRepository stores permanent access grants. There is no delete.
type AccessGrantRepository interface {
	// Grant inserts g unless the user already holds a grant. wasNew reports whether a row was written.
	Grant(ctx context.Context, tx Tx, g *model.AccessGrant) (wasNew bool, err error)
	HasAccess(ctx context.Context, tx Tx, userID int64) (bool, error)
	FindByUser(ctx context.Context, tx Tx, userID int64) (*model.AccessGrant, error)
}
