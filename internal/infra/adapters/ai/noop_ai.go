package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
)

var _ adapter.PromptGenerator = (*NoopGenerator)(nil)

// NoopGenerator returns a fixed template. Used in dev mode.
type NoopGenerator struct{}

func NewNoopGenerator() *NoopGenerator { return &NoopGenerator{} }

func (NoopGenerator) Name() string { return "noop" }

func (NoopGenerator) Generate(ctx context.Context, topic string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Aja como especialista em %s. Explique o tema em etapas, com exemplos práticos e um resumo final.", strings.TrimSpace(topic)), nil
}
