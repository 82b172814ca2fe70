package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/application"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
)

// apiClient is the part of *tgbotapi.BotAPI used for outgoing traffic.
type apiClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var (
	_ adapter.TelegramBotAdapter = (*BotClient)(nil)
	_ adapter.Notifier           = (*BotClient)(nil)
)

// BotClient sends messages to users. It is also the access notifier.
type BotClient struct {
	api apiClient
	tr  application.Translator
	log *zerolog.Logger
}

func NewBotClient(api apiClient, tr application.Translator, logger *zerolog.Logger) *BotClient {
	l := logger.With().Str("component", "telegram_client").Logger()
	return &BotClient{api: api, tr: tr, log: &l}
}

// NewBotAPI connects with the token and verifies it.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func (c *BotClient) SendMessage(ctx context.Context, telegramID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Send(tgbotapi.NewMessage(telegramID, text))
	return err
}

// SendButtons sends a message with inline buttons.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else the label is used as callback data
func (c *BotClient) SendButtons(ctx context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(telegramID, text)
	if kb := inlineKeyboard(rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := c.api.Send(msg)
	return err
}

func (c *BotClient) SendPhoto(ctx context.Context, telegramID int64, png []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(telegramID, tgbotapi.FileBytes{Name: "pix.png", Bytes: png})
	photo.Caption = caption
	_, err := c.api.Send(photo)
	return err
}

func (c *BotClient) NotifyAccessGranted(ctx context.Context, userID int64) error {
	return c.SendButtons(ctx, userID, c.tr.T("access_granted"), [][]adapter.InlineButton{
		{{Text: "📚 Prompts", Data: application.CallbackPrompts}},
	})
}

// SetMenuCommands publishes the command list shown by Telegram clients.
func (c *BotClient) SetMenuCommands(ctx context.Context) error {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "comprar", Description: "PIX"},
		tgbotapi.BotCommand{Command: "status", Description: c.tr.T("btn_check")},
		tgbotapi.BotCommand{Command: "prompts", Description: "Prompts"},
		tgbotapi.BotCommand{Command: "help", Description: "Help"},
	)
	_, err := c.api.Request(cmds)
	return err
}

func inlineKeyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	if len(kbRows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &kb
}
