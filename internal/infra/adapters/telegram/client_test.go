//go:build !integration

package telegram

import (
	"context"
	"io"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/application"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
)

type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestBotClient(t *testing.T) {
	ctx := context.Background()
	l := zerolog.New(io.Discard)

	t.Run("should build URL and callback buttons and skip empty rows", func(t *testing.T) {
		api := &fakeAPI{}
		c := NewBotClient(api, keyTranslator{}, &l)

		err := c.SendButtons(ctx, 1, "hi", [][]adapter.InlineButton{
			{{Text: "Pagar", URL: "https://mp.example/ticket"}},
			{},
			{{Text: "Check", Data: application.CallbackCheck}, {Text: "raw"}},
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		msg, ok := api.sent[0].(tgbotapi.MessageConfig)
		if !ok {
			t.Fatalf("expected a MessageConfig, got %T", api.sent[0])
		}
		kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		if !ok || len(kb.InlineKeyboard) != 2 {
			t.Fatalf("expected two keyboard rows, got %+v", msg.ReplyMarkup)
		}
		if kb.InlineKeyboard[0][0].URL == nil || *kb.InlineKeyboard[0][0].URL != "https://mp.example/ticket" {
			t.Errorf("expected URL button, got %+v", kb.InlineKeyboard[0][0])
		}
		if d := kb.InlineKeyboard[1][1].CallbackData; d == nil || *d != "raw" {
			t.Errorf("expected label fallback as callback data, got %v", d)
		}
	})

	t.Run("should send the QR as an uploaded photo", func(t *testing.T) {
		api := &fakeAPI{}
		c := NewBotClient(api, keyTranslator{}, &l)

		_ = c.SendPhoto(ctx, 1, []byte{1, 2, 3}, "caption")

		photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
		if !ok || photo.Caption != "caption" {
			t.Fatalf("expected a captioned PhotoConfig, got %+v", api.sent[0])
		}
	})

	t.Run("should notify access with a prompts button", func(t *testing.T) {
		api := &fakeAPI{}
		c := NewBotClient(api, keyTranslator{}, &l)

		if err := c.NotifyAccessGranted(ctx, 42); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		msg := api.sent[0].(tgbotapi.MessageConfig)
		if msg.ChatID != 42 || msg.Text != "access_granted" {
			t.Errorf("unexpected notification: %+v", msg)
		}
	})

	t.Run("should not send on a cancelled context", func(t *testing.T) {
		api := &fakeAPI{}
		c := NewBotClient(api, keyTranslator{}, &l)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if err := c.SendMessage(cctx, 1, "x"); err == nil {
			t.Error("expected an error")
		}
		if len(api.sent) != 0 {
			t.Error("expected nothing sent")
		}
	})
}
