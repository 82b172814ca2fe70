package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/application"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/logging"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
)

// updateSource is the long-polling side of *tgbotapi.BotAPI.
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// FloodGuard is satisfied by redis.FloodLimiter.
type FloodGuard interface {
	Allow(ctx context.Context, userID int64, command string) (bool, error)
}

// RealTelegramBotAdapter polls updates and delegates to the BotFacade.
type RealTelegramBotAdapter struct {
	source  updateSource
	sender  adapter.TelegramBotAdapter
	facade  *application.BotFacade
	flood   FloodGuard // optional
	workers int
	timeout time.Duration
	log     *zerolog.Logger
}

func NewRealTelegramBotAdapter(source updateSource, sender adapter.TelegramBotAdapter, facade *application.BotFacade, flood FloodGuard, workers int, timeout time.Duration, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if sender == nil {
		return nil, errors.New("sender is nil")
	}
	if workers <= 0 {
		workers = 5
	}
	l := logger.With().Str("component", "telegram_bot").Logger()
	return &RealTelegramBotAdapter{
		source:  source,
		sender:  sender,
		facade:  facade,
		flood:   flood,
		workers: workers,
		timeout: timeout,
		log:     &l,
	}, nil
}

// StartPolling blocks until ctx is cancelled, fanning updates out to workers.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.source == nil {
		return errors.New("no update source")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.source.GetUpdatesChan(u)

	var wg sync.WaitGroup
	work := make(chan tgbotapi.Update, 100)
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range work {
				r.dispatch(ctx, id, up)
			}
		}(i)
	}

	defer func() {
		r.source.StopReceivingUpdates()
		close(work)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case work <- up:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (r *RealTelegramBotAdapter) dispatch(ctx context.Context, worker int, up tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Int("worker", worker).Msg("update handler panicked")
		}
	}()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.handleUpdate(ctx, up); err != nil {
		r.log.Warn().Err(err).Int("worker", worker).Int("update_id", up.UpdateID).Msg("update handling failed")
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)

	command := msg.Command()
	key := "message"
	if command != "" {
		key = "/" + command
		metrics.IncTelegramCommand(key)
	}
	if !r.allow(ctx, msg.From.ID, key) {
		return r.render(ctx, msg.Chat.ID, r.facade.FloodNotice())
	}

	if command == "" {
		if msg.Text == "" {
			return nil
		}
		return r.render(ctx, msg.Chat.ID, r.facade.HandleText(ctx, msg.From.ID, msg.Text))
	}
	if fn, ok := r.commandRoutes()[command]; ok {
		return fn(ctx, msg)
	}
	return r.render(ctx, msg.Chat.ID, r.facade.HandleUnknown())
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, key string) bool {
	if r.flood == nil {
		return true
	}
	ok, err := r.flood.Allow(ctx, userID, key)
	if err != nil {
		// fail open: the payment cooldowns still apply
		r.log.Warn().Err(err).Msg("flood limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

// render sends a facade reply. A PIX code goes in its own message, carrying
// the buttons, so it can be copied in one tap.
func (r *RealTelegramBotAdapter) render(ctx context.Context, chatID int64, reply application.Reply) error {
	buttons := toInline(reply.Buttons)
	var err error
	switch {
	case len(reply.QR) > 0:
		if err = r.sender.SendPhoto(ctx, chatID, reply.QR, reply.Text); err != nil {
			r.log.Warn().Err(err).Msg("sending QR photo failed, falling back to text")
			err = r.sender.SendMessage(ctx, chatID, reply.Text)
		}
	case reply.Code != "" || len(buttons) == 0:
		err = r.sender.SendMessage(ctx, chatID, reply.Text)
	default:
		return r.sender.SendButtons(ctx, chatID, reply.Text, buttons)
	}
	if err != nil || reply.Code == "" {
		return err
	}
	if len(buttons) > 0 {
		return r.sender.SendButtons(ctx, chatID, reply.Code, buttons)
	}
	return r.sender.SendMessage(ctx, chatID, reply.Code)
}

func toInline(rows [][]application.Button) [][]adapter.InlineButton {
	out := make([][]adapter.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]adapter.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, adapter.InlineButton{Text: b.Text, Data: b.Data, URL: b.URL})
		}
		out = append(out, r)
	}
	return out
}
