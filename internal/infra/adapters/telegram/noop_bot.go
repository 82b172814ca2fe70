package telegram

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
)

var (
	_ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)
	_ adapter.Notifier           = (*NoopBotAdapter)(nil)
)

// Sent is one outgoing message recorded by NoopBotAdapter.
type Sent struct {
	ChatID  int64
	Text    string
	Photo   bool
	Buttons [][]adapter.InlineButton
}

// NoopBotAdapter logs and records outgoing messages instead of sending them.
type NoopBotAdapter struct {
	mu   sync.Mutex
	sent []Sent
	log  *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "noop_telegram").Logger()
	return &NoopBotAdapter{log: &l}
}

func (b *NoopBotAdapter) record(s Sent) error {
	b.mu.Lock()
	b.sent = append(b.sent, s)
	b.mu.Unlock()
	b.log.Debug().Int64("tg_id", s.ChatID).Str("text", s.Text).Bool("photo", s.Photo).Msg("message")
	return nil
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	return b.record(Sent{ChatID: tgID, Text: text})
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	return b.record(Sent{ChatID: tgID, Text: text, Buttons: rows})
}

func (b *NoopBotAdapter) SendPhoto(ctx context.Context, tgID int64, png []byte, caption string) error {
	return b.record(Sent{ChatID: tgID, Text: caption, Photo: true})
}

func (b *NoopBotAdapter) NotifyAccessGranted(ctx context.Context, userID int64) error {
	return b.record(Sent{ChatID: userID, Text: "access_granted"})
}

// Sent returns a copy of everything recorded so far.
func (b *NoopBotAdapter) Sent() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sent, len(b.sent))
	copy(out, b.sent)
	return out
}
