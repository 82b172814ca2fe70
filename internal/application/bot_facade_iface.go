package application

import (
	"context"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// Tests pass light-weight mocks; production passes the usecase implementations.

type AccessService interface {
	RequestAccess(ctx context.Context, userID int64) (usecase.AccessOutcome, error)
	SetContact(ctx context.Context, userID int64, email string) error
	AwaitingContact(ctx context.Context, userID int64) (bool, error)
	ForceGrant(ctx context.Context, actorID, userID int64) (bool, error)
}

type PollService interface {
	Poll(ctx context.Context, userID int64) (usecase.PollResult, error)
}

type PromptService interface {
	List(ctx context.Context, userID int64) ([]model.Prompt, error)
	Get(ctx context.Context, userID int64, slug string) (model.Prompt, error)
	Generate(ctx context.Context, userID int64, topic string) (string, error)
	GenerationEnabled() bool
}

// Translator is satisfied by *i18n.Translator.
type Translator interface {
	T(key string, args ...interface{}) string
}

var (
	_ AccessService = (usecase.AccessUseCase)(nil)
	_ PollService   = (usecase.ReconcilerUseCase)(nil)
	_ PromptService = (usecase.PromptUseCase)(nil)
)
