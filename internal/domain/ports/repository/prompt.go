package repository

import "github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"

// PromptCatalog is the read-only premium prompt collection.
type PromptCatalog interface {
	List() []model.Prompt
	Get(slug string) (model.Prompt, bool)
}
