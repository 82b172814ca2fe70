package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder is the subset of tiktoken used for capping.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// TopicCapper trims user topics to a token budget. The encoding is resolved
// lazily; when it cannot be loaded topics pass through unchanged and the rune
// cap in the prompt use case still applies.
type TopicCapper struct {
	model string
	max   int

	once sync.Once
	enc  Encoder
}

func NewTopicCapper(model string, maxTokens int) *TopicCapper {
	return &TopicCapper{model: model, max: maxTokens}
}

// NewTopicCapperWithEncoder skips encoding resolution.
func NewTopicCapperWithEncoder(enc Encoder, maxTokens int) *TopicCapper {
	c := &TopicCapper{max: maxTokens, enc: enc}
	c.once.Do(func() {})
	return c
}

func (c *TopicCapper) encoder() Encoder {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err == nil {
			c.enc = enc
		}
	})
	return c.enc
}

func (c *TopicCapper) Cap(topic string) string {
	if c == nil || c.max <= 0 {
		return topic
	}
	enc := c.encoder()
	if enc == nil {
		return topic
	}
	toks := enc.Encode(topic, nil, nil)
	if len(toks) <= c.max {
		return topic
	}
	return enc.Decode(toks[:c.max])
}
