package ai

import (
	"context"
	"time"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
)

// Compile-time check
var _ adapter.PromptGenerator = (*limitedGenerator)(nil)

type limitedGenerator struct {
	inner   adapter.PromptGenerator
	sem     chan struct{}
	timeout time.Duration
}

// NewLimitedGenerator bounds concurrent provider calls, applies a per-call
// timeout and records latency metrics.
func NewLimitedGenerator(inner adapter.PromptGenerator, maxConcurrent int, timeout time.Duration) adapter.PromptGenerator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &limitedGenerator{
		inner:   inner,
		sem:     make(chan struct{}, maxConcurrent),
		timeout: timeout,
	}
}

func (l *limitedGenerator) Name() string { return l.inner.Name() }

func (l *limitedGenerator) Generate(ctx context.Context, topic string) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := l.inner.Generate(ctx, topic)
	metrics.ObservePromptGeneration(l.inner.Name(), time.Since(start), err == nil)
	return out, err
}
