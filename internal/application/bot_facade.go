package application

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

// Callback data understood by the chat adapter.
const (
	CallbackBuy     = "cmd:buy"
	CallbackCheck   = "cmd:check"
	CallbackPrompts = "cmd:prompts"
	PromptPrefix    = "prompt:"
)

type Button struct {
	Text string
	Data string
	URL  string
}

// Reply is everything the chat adapter needs to render one answer.
// Code, when set, goes out as its own message so it can be copied in one tap.
type Reply struct {
	Text    string
	Code    string
	QR      []byte // PNG
	Buttons [][]Button
}

// Offer is the price shown to users.
type Offer struct {
	Amount   int64 // centavos
	Currency string
}

// BotFacade turns usecase outcomes into localized chat replies. Errors never
// escape: they are logged and rendered as messages.
type BotFacade struct {
	access  AccessService
	poll    PollService
	prompts PromptService
	tr      Translator
	offer   Offer
	loc     *time.Location
	log     *zerolog.Logger
}

func NewBotFacade(access AccessService, poll PollService, prompts PromptService, tr Translator, offer Offer, loc *time.Location, logger *zerolog.Logger) *BotFacade {
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "bot_facade").Logger()
	return &BotFacade{access: access, poll: poll, prompts: prompts, tr: tr, offer: offer, loc: loc, log: &l}
}

func (b *BotFacade) Price() string { return FormatMoney(b.offer.Amount, b.offer.Currency) }

func (b *BotFacade) mainButtons() [][]Button {
	return [][]Button{
		{{Text: b.tr.T("btn_buy"), Data: CallbackBuy}},
		{{Text: b.tr.T("btn_check"), Data: CallbackCheck}},
	}
}

func (b *BotFacade) HandleStart(ctx context.Context, userID int64) Reply {
	return Reply{Text: b.tr.T("start", b.Price()), Buttons: b.mainButtons()}
}

func (b *BotFacade) HandleHelp() Reply {
	return Reply{Text: b.tr.T("help")}
}

func (b *BotFacade) HandleUnknown() Reply { return Reply{Text: b.tr.T("unknown_command")} }

func (b *BotFacade) FloodNotice() Reply { return Reply{Text: b.tr.T("flood")} }

// HandleBuy runs the charge creation flow.
func (b *BotFacade) HandleBuy(ctx context.Context, userID int64) Reply {
	out, err := b.access.RequestAccess(ctx, userID)
	if err != nil {
		return b.errorReply(err, userID, "request access")
	}
	checkRow := [][]Button{{{Text: b.tr.T("btn_check"), Data: CallbackCheck}}}

	switch out.Kind {
	case usecase.OutcomeAlreadyHasAccess:
		return Reply{Text: b.tr.T("already_has_access")}
	case usecase.OutcomeNeedContact:
		return Reply{Text: b.tr.T("need_contact")}
	case usecase.OutcomeRateLimited:
		return Reply{Text: b.tr.T("rate_limited_create", out.WaitSeconds)}
	case usecase.OutcomeExisting:
		return Reply{
			Text:    b.tr.T("payment_existing", b.clock(out.Payment.ExpiresAt)),
			Code:    out.Payment.DisplayCode,
			Buttons: checkRow,
		}
	case usecase.OutcomeCreated:
		r := Reply{
			Text:    b.tr.T("payment_created", FormatMoney(out.Payment.Amount, out.Payment.Currency)) + "\n" + b.tr.T("payment_expires", b.clock(out.Payment.ExpiresAt)),
			Code:    out.Payment.DisplayCode,
			Buttons: checkRow,
		}
		if out.QRImage != nil {
			png, err := base64.StdEncoding.DecodeString(*out.QRImage)
			if err != nil {
				b.log.Warn().Err(err).Str("payment_id", out.Payment.ID).Msg("undecodable QR image, sending code only")
			} else {
				r.QR = png
			}
		}
		if out.Payment.TicketURL != "" {
			r.Buttons = append(r.Buttons, []Button{{Text: "Mercado Pago", URL: out.Payment.TicketURL}})
		}
		return r
	}
	b.log.Error().Str("kind", string(out.Kind)).Msg("unhandled access outcome")
	return Reply{Text: b.tr.T("generic_error")}
}

// HandleCheck runs the poll flow.
func (b *BotFacade) HandleCheck(ctx context.Context, userID int64) Reply {
	res, err := b.poll.Poll(ctx, userID)
	if err != nil {
		return b.errorReply(err, userID, "poll")
	}
	switch res.Outcome {
	case usecase.PollAlreadyHasAccess:
		return Reply{Text: b.tr.T("already_has_access")}
	case usecase.PollNoPayment:
		return Reply{Text: b.tr.T("poll_no_payment"), Buttons: [][]Button{{{Text: b.tr.T("btn_buy"), Data: CallbackBuy}}}}
	case usecase.PollRateLimited:
		return Reply{Text: b.tr.T("rate_limited_verify", res.WaitSeconds)}
	}

	r := Reply{Text: b.tr.T("status_" + string(res.Status))}
	switch res.Status {
	case model.PaymentStatusPending, model.PaymentStatusUnknown:
		r.Buttons = [][]Button{{{Text: b.tr.T("btn_check"), Data: CallbackCheck}}}
	case model.PaymentStatusApproved:
		r.Buttons = [][]Button{{{Text: "📚 Prompts", Data: CallbackPrompts}}}
	default:
		r.Buttons = [][]Button{{{Text: b.tr.T("btn_buy"), Data: CallbackBuy}}}
	}
	return r
}

// HandleContact stores the payer address and continues straight into the
// purchase flow.
func (b *BotFacade) HandleContact(ctx context.Context, userID int64, email string) Reply {
	email = strings.TrimSpace(email)
	if err := b.access.SetContact(ctx, userID, email); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return Reply{Text: b.tr.T("contact_invalid")}
		}
		return b.errorReply(err, userID, "set contact")
	}
	next := b.HandleBuy(ctx, userID)
	next.Text = b.tr.T("contact_saved", email) + "\n\n" + next.Text
	return next
}

// HandleText routes free text. Only a pending contact request consumes it.
func (b *BotFacade) HandleText(ctx context.Context, userID int64, text string) Reply {
	awaiting, err := b.access.AwaitingContact(ctx, userID)
	if err != nil {
		return b.errorReply(err, userID, "awaiting contact")
	}
	if awaiting {
		return b.HandleContact(ctx, userID, text)
	}
	return b.HandleUnknown()
}

func (b *BotFacade) HandlePrompts(ctx context.Context, userID int64) Reply {
	list, err := b.prompts.List(ctx, userID)
	if err != nil {
		return b.errorReply(err, userID, "list prompts")
	}
	if len(list) == 0 {
		return Reply{Text: b.tr.T("prompts_empty")}
	}
	var sb strings.Builder
	sb.WriteString(b.tr.T("prompts_header"))
	rows := make([][]Button, 0, len(list))
	category := ""
	for _, p := range list {
		if p.Category != category {
			category = p.Category
			sb.WriteString("\n\n# " + category)
		}
		sb.WriteString(fmt.Sprintf("\n• %s (%s)", p.Title, p.Slug))
		rows = append(rows, []Button{{Text: p.Title, Data: PromptPrefix + p.Slug}})
	}
	return Reply{Text: sb.String(), Buttons: rows}
}

func (b *BotFacade) HandlePrompt(ctx context.Context, userID int64, slug string) Reply {
	if strings.TrimSpace(slug) == "" {
		return Reply{Text: b.tr.T("prompt_usage")}
	}
	p, err := b.prompts.Get(ctx, userID, slug)
	if err != nil {
		return b.errorReply(err, userID, "get prompt")
	}
	return Reply{Text: p.Title + "\n\n" + p.Body}
}

func (b *BotFacade) HandleGenerate(ctx context.Context, userID int64, topic string) Reply {
	if !b.prompts.GenerationEnabled() {
		return Reply{Text: b.tr.T("gen_disabled")}
	}
	if strings.TrimSpace(topic) == "" {
		return Reply{Text: b.tr.T("gen_usage")}
	}
	out, err := b.prompts.Generate(ctx, userID, topic)
	if err != nil {
		return b.errorReply(err, userID, "generate prompt")
	}
	return Reply{Text: out}
}

// HandleGrant is the operator command; arg is the target Telegram id.
func (b *BotFacade) HandleGrant(ctx context.Context, actorID int64, arg string) Reply {
	target, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || target <= 0 {
		return Reply{Text: b.tr.T("grant_usage")}
	}
	wasNew, err := b.access.ForceGrant(ctx, actorID, target)
	if err != nil {
		return b.errorReply(err, actorID, "force grant")
	}
	if wasNew {
		return Reply{Text: b.tr.T("grant_done", target)}
	}
	return Reply{Text: b.tr.T("grant_already", target)}
}

// AccessGrantedText is the notification body.
func (b *BotFacade) AccessGrantedText() string { return b.tr.T("access_granted") }

func (b *BotFacade) errorReply(err error, userID int64, op string) Reply {
	switch {
	case errors.Is(err, domain.ErrGatewayUnavailable):
		b.log.Warn().Err(err).Int64("tg_id", userID).Str("op", op).Msg("payment provider unavailable")
		return Reply{Text: b.tr.T("gateway_error")}
	case errors.Is(err, domain.ErrNoAccess):
		return Reply{Text: b.tr.T("no_access"), Buttons: [][]Button{{{Text: b.tr.T("btn_buy"), Data: CallbackBuy}}}}
	case errors.Is(err, domain.ErrForbidden):
		return Reply{Text: b.tr.T("grant_forbidden")}
	case errors.Is(err, domain.ErrPromptNotFound):
		return Reply{Text: b.tr.T("prompt_not_found")}
	case errors.Is(err, domain.ErrPromptsDisabled):
		return Reply{Text: b.tr.T("gen_disabled")}
	case errors.Is(err, domain.ErrTopicTooLong):
		return Reply{Text: b.tr.T("gen_too_long", usecase.MaxTopicRunes)}
	case errors.Is(err, domain.ErrInvalidInput):
		return Reply{Text: b.tr.T("gen_usage")}
	}
	b.log.Error().Err(err).Int64("tg_id", userID).Str("op", op).Msg("bot request failed")
	if op == "generate prompt" {
		return Reply{Text: b.tr.T("gen_failed")}
	}
	return Reply{Text: b.tr.T("generic_error")}
}

func (b *BotFacade) clock(t time.Time) string {
	return t.In(b.loc).Format("15:04")
}

// FormatMoney renders centavos. BRL uses the local "R$ 5,90" form.
func FormatMoney(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	if currency == "" || strings.EqualFold(currency, "BRL") {
		return fmt.Sprintf("%sR$ %d,%02d", sign, amount/100, amount%100)
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, strings.ToUpper(currency), amount/100, amount%100)
}
