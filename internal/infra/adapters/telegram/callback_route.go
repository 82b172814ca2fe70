package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/application"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/logging"
)

type cbHandler func(ctx context.Context, chatID, userID int64, data string) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		application.CallbackBuy: func(ctx context.Context, chatID, userID int64, _ string) error {
			return r.render(ctx, chatID, r.facade.HandleBuy(ctx, userID))
		},
		application.CallbackCheck: func(ctx context.Context, chatID, userID int64, _ string) error {
			return r.render(ctx, chatID, r.facade.HandleCheck(ctx, userID))
		},
		application.CallbackPrompts: func(ctx context.Context, chatID, userID int64, _ string) error {
			return r.render(ctx, chatID, r.facade.HandlePrompts(ctx, userID))
		},
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{
			Prefix: application.PromptPrefix,
			Fn: func(ctx context.Context, chatID, userID int64, data string) error {
				slug := strings.TrimPrefix(data, application.PromptPrefix)
				return r.render(ctx, chatID, r.facade.HandlePrompt(ctx, userID, slug))
			},
		},
	}
}

var errUnknownCallback = errors.New("unknown callback data")

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	// stop the client spinner when we return
	if r.source != nil {
		defer func() { _, _ = r.source.Request(tgbotapi.NewCallback(query.ID, "")) }()
	}

	userID := query.From.ID
	chatID := userID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	ctx = logging.WithTgID(ctx, userID)

	data := strings.TrimSpace(query.Data)
	if !r.allow(ctx, userID, "cb") {
		return r.render(ctx, chatID, r.facade.FloodNotice())
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, userID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, chatID, userID, data)
		}
	}
	return errUnknownCallback
}
