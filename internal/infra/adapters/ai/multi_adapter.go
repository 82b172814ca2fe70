package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
)

var _ adapter.PromptGenerator = (*FallbackGenerator)(nil)

// FallbackGenerator tries providers in order and returns the first success.
// Context cancellation stops the chain.
type FallbackGenerator struct {
	chain []adapter.PromptGenerator
	log   *zerolog.Logger
}

func NewFallbackGenerator(logger *zerolog.Logger, chain ...adapter.PromptGenerator) *FallbackGenerator {
	l := logger.With().Str("component", "ai_fallback").Logger()
	kept := make([]adapter.PromptGenerator, 0, len(chain))
	for _, g := range chain {
		if g != nil {
			kept = append(kept, g)
		}
	}
	return &FallbackGenerator{chain: kept, log: &l}
}

func (f *FallbackGenerator) Name() string {
	names := make([]string, 0, len(f.chain))
	for _, g := range f.chain {
		names = append(names, g.Name())
	}
	return strings.Join(names, "+")
}

func (f *FallbackGenerator) Generate(ctx context.Context, topic string) (string, error) {
	if len(f.chain) == 0 {
		return "", errors.New("no prompt generator configured")
	}
	var errs []error
	for _, g := range f.chain {
		out, err := g.Generate(ctx, topic)
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
		if ctx.Err() != nil {
			break
		}
		f.log.Warn().Err(err).Str("provider", g.Name()).Msg("provider failed, trying next")
	}
	return "", errors.Join(errs...)
}
