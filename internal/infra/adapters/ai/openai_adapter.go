package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.PromptGenerator = (*OpenAIGenerator)(nil)

// OpenAIGenerator implements adapter.PromptGenerator with the Chat Completions API.
// Topics are capped to a token budget before the call.
type OpenAIGenerator struct {
	client openai.Client
	model  string
	maxOut int
	capper *TopicCapper
}

func NewOpenAIGenerator(apiKey, baseURL, model string, maxOut, maxTopicTokens int, timeout time.Duration) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
		maxOut: maxOut,
		capper: NewTopicCapper(model, maxTopicTokens),
	}, nil
}

func (o *OpenAIGenerator) Name() string { return "openai" }

func (o *OpenAIGenerator) Generate(ctx context.Context, topic string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(userInstruction(o.capper.Cap(topic))),
		},
	}
	if o.maxOut > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxOut))
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	for _, c := range resp.Choices {
		if s := strings.TrimSpace(c.Message.Content); s != "" {
			return s, nil
		}
	}
	return "", errors.New("no choice content")
}
