package adapter

import "context"

// PromptGenerator writes a ready-to-use prompt for a topic.
type PromptGenerator interface {
	Name() string
	Generate(ctx context.Context, topic string) (string, error)
}
