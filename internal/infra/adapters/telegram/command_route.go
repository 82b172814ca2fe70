package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes maps bot commands (without the slash) to handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	buy := r.handleBuyCommand
	status := r.handleStatusCommand
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"help":    r.handleHelpCommand,
		"comprar": buy,
		"buy":     buy,
		"status":  status,
		"check":   status,
		"email":   r.handleEmailCommand,
		"prompts": r.handlePromptsCommand,
		"prompt":  r.handlePromptCommand,
		"gerar":   r.handleGenerateCommand,

		// authorization and auditing happen in the access use case
		"grant": r.handleGrantCommand,
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, m *tgbotapi.Message) error {
	return r.render(ctx, m.Chat.ID, r.facade.HandleStart(ctx, m.From.ID))
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, m *tgbotapi.Message) error {
	return r.render(ctx, m.Chat.ID, r.facade.HandleHelp())
}

func (r *RealTelegramBotAdapter) handleBuyCommand(ctx context.Context, m *tgbotapi.Message) error {
	return r.render(ctx, m.Chat.ID, r.facade.HandleBuy(ctx, m.From.ID))
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, m *tgbotapi.Message) error {
	return r.render(ctx, m.Chat.ID, r.facade.HandleCheck(ctx, m.From.ID))
}

func (r *RealTelegramBotAdapter) handleEmailCommand(ctx context.Context, m *tgbotapi.Message) error {
	return r.render(ctx, m.Chat.ID, r.facade.HandleContact(ctx, m.From.ID, m.CommandArguments()))
}

func (r *RealTelegramBotAdapter) handlePromptsCommand(ctx context.Context, m *tgbotapi.Message) error {
	return r.render(ctx, m.Chat.ID, r.facade.HandlePrompts(ctx, m.From.ID))
}

func (r *RealTelegramBotAdapter) handlePromptCommand(ctx context.Context, m *tgbotapi.Message) error {
	return r.render(ctx, m.Chat.ID, r.facade.HandlePrompt(ctx, m.From.ID, m.CommandArguments()))
}

func (r *RealTelegramBotAdapter) handleGenerateCommand(ctx context.Context, m *tgbotapi.Message) error {
	if r.source != nil {
		_, _ = r.source.Request(tgbotapi.NewChatAction(m.Chat.ID, tgbotapi.ChatTyping))
	}
	return r.render(ctx, m.Chat.ID, r.facade.HandleGenerate(ctx, m.From.ID, m.CommandArguments()))
}

func (r *RealTelegramBotAdapter) handleGrantCommand(ctx context.Context, m *tgbotapi.Message) error {
	return r.render(ctx, m.Chat.ID, r.facade.HandleGrant(ctx, m.From.ID, m.CommandArguments()))
}
