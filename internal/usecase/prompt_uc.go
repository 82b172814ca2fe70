package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
)

// Compile-time check
var _ PromptUseCase = (*promptUC)(nil)

// MaxTopicRunes caps free-text topics sent to the prompt writer.
const MaxTopicRunes = 300

// PromptUseCase serves the gated feature set.
type PromptUseCase interface {
	List(ctx context.Context, userID int64) ([]model.Prompt, error)
	Get(ctx context.Context, userID int64, slug string) (model.Prompt, error)
	Generate(ctx context.Context, userID int64, topic string) (string, error)
	GenerationEnabled() bool
}

type promptUC struct {
	catalog   repository.PromptCatalog
	grants    repository.AccessGrantRepository
	generator adapter.PromptGenerator // nil when no AI provider is configured
	log       *zerolog.Logger
}

func NewPromptUseCase(catalog repository.PromptCatalog, grants repository.AccessGrantRepository, generator adapter.PromptGenerator, logger *zerolog.Logger) *promptUC {
	l := logger.With().Str("component", "PromptUseCase").Logger()
	return &promptUC{catalog: catalog, grants: grants, generator: generator, log: &l}
}

func (u *promptUC) gate(ctx context.Context, userID int64) error {
	ok, err := u.grants.HasAccess(ctx, repository.NoTX, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoAccess
	}
	return nil
}

func (u *promptUC) List(ctx context.Context, userID int64) ([]model.Prompt, error) {
	if err := u.gate(ctx, userID); err != nil {
		return nil, err
	}
	return u.catalog.List(), nil
}

func (u *promptUC) Get(ctx context.Context, userID int64, slug string) (model.Prompt, error) {
	if err := u.gate(ctx, userID); err != nil {
		return model.Prompt{}, err
	}
	p, ok := u.catalog.Get(strings.ToLower(strings.TrimSpace(slug)))
	if !ok {
		return model.Prompt{}, domain.ErrPromptNotFound
	}
	return p, nil
}

func (u *promptUC) GenerationEnabled() bool { return u.generator != nil }

func (u *promptUC) Generate(ctx context.Context, userID int64, topic string) (string, error) {
	if err := u.gate(ctx, userID); err != nil {
		return "", err
	}
	if u.generator == nil {
		return "", domain.ErrPromptsDisabled
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("%w: empty topic", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(topic) > MaxTopicRunes {
		return "", domain.ErrTopicTooLong
	}
	out, err := u.generator.Generate(ctx, topic)
	if err != nil {
		u.log.Error().Err(err).Int64("tg_id", userID).Str("provider", u.generator.Name()).Msg("prompt generation failed")
		return "", fmt.Errorf("generate prompt: %w", err)
	}
	return out, nil
}
