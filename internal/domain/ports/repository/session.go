package repository

import (
	"context"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
)

// SessionRepository keeps the chat-side state of a user (contact address, awaiting flag).
type SessionRepository interface {
	// Get never returns domain.ErrNotFound; unknown users get an empty session.
	Get(ctx context.Context, userID int64) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Clear(ctx context.Context, userID int64) error
}
