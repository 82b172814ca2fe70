//go:build !integration

package application_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/application"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

// keyTranslator echoes keys so assertions do not depend on locale files.
type keyTranslator struct{}

func (keyTranslator) T(key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	return key + ":" + strings.TrimSpace(fmt.Sprintln(args...))
}

type mockAccess struct {
	RequestAccessFunc func(ctx context.Context, userID int64) (usecase.AccessOutcome, error)
	SetContactFunc    func(ctx context.Context, userID int64, email string) error
	awaiting          bool
	forceNew          bool
	forceErr          error
	contacts          []string
}

func (m *mockAccess) RequestAccess(ctx context.Context, userID int64) (usecase.AccessOutcome, error) {
	if m.RequestAccessFunc != nil {
		return m.RequestAccessFunc(ctx, userID)
	}
	return usecase.AccessOutcome{Kind: usecase.OutcomeNeedContact}, nil
}

func (m *mockAccess) SetContact(ctx context.Context, userID int64, email string) error {
	m.contacts = append(m.contacts, email)
	if m.SetContactFunc != nil {
		return m.SetContactFunc(ctx, userID, email)
	}
	return nil
}

func (m *mockAccess) AwaitingContact(ctx context.Context, userID int64) (bool, error) {
	return m.awaiting, nil
}

func (m *mockAccess) ForceGrant(ctx context.Context, actorID, userID int64) (bool, error) {
	return m.forceNew, m.forceErr
}

type mockPoll struct {
	res usecase.PollResult
	err error
}

func (m *mockPoll) Poll(ctx context.Context, userID int64) (usecase.PollResult, error) {
	return m.res, m.err
}

type mockPrompts struct {
	list    []model.Prompt
	err     error
	enabled bool
}

func (m *mockPrompts) List(ctx context.Context, userID int64) ([]model.Prompt, error) {
	return m.list, m.err
}

func (m *mockPrompts) Get(ctx context.Context, userID int64, slug string) (model.Prompt, error) {
	if m.err != nil {
		return model.Prompt{}, m.err
	}
	for _, p := range m.list {
		if p.Slug == slug {
			return p, nil
		}
	}
	return model.Prompt{}, domain.ErrPromptNotFound
}

func (m *mockPrompts) Generate(ctx context.Context, userID int64, topic string) (string, error) {
	return "prompt about " + topic, m.err
}

func (m *mockPrompts) GenerationEnabled() bool { return m.enabled }

func newFacade(a *mockAccess, p *mockPoll, pr *mockPrompts) *application.BotFacade {
	l := zerolog.New(io.Discard)
	if a == nil {
		a = &mockAccess{}
	}
	if p == nil {
		p = &mockPoll{}
	}
	if pr == nil {
		pr = &mockPrompts{}
	}
	return application.NewBotFacade(a, p, pr, keyTranslator{}, application.Offer{Amount: 590, Currency: "BRL"}, time.UTC, &l)
}

func TestBotFacade_HandleBuy(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC)

	t.Run("should render a created charge with code, QR and check button", func(t *testing.T) {
		// --- Arrange ---
		img := base64.StdEncoding.EncodeToString([]byte("\x89PNG"))
		a := &mockAccess{RequestAccessFunc: func(ctx context.Context, userID int64) (usecase.AccessOutcome, error) {
			return usecase.AccessOutcome{
				Kind:    usecase.OutcomeCreated,
				Payment: &model.Payment{ID: "mp-1", Amount: 590, Currency: "BRL", DisplayCode: "00020126pix", ExpiresAt: expires, TicketURL: "https://mp/t"},
				QRImage: &img,
			}, nil
		}}

		// --- Act ---
		r := newFacade(a, nil, nil).HandleBuy(ctx, 42)

		// --- Assert ---
		if r.Code != "00020126pix" || string(r.QR) != "\x89PNG" {
			t.Errorf("expected code and decoded QR, got %+v", r)
		}
		if !strings.Contains(r.Text, "payment_created:R$ 5,90") || !strings.Contains(r.Text, "payment_expires:12:15") {
			t.Errorf("unexpected text %q", r.Text)
		}
		if len(r.Buttons) != 2 || r.Buttons[0][0].Data != application.CallbackCheck || r.Buttons[1][0].URL != "https://mp/t" {
			t.Errorf("unexpected buttons %+v", r.Buttons)
		}
	})

	t.Run("should send the code only when the QR image is missing", func(t *testing.T) {
		a := &mockAccess{RequestAccessFunc: func(ctx context.Context, userID int64) (usecase.AccessOutcome, error) {
			return usecase.AccessOutcome{Kind: usecase.OutcomeCreated, Payment: &model.Payment{DisplayCode: "pix", ExpiresAt: expires}}, nil
		}}

		r := newFacade(a, nil, nil).HandleBuy(ctx, 42)

		if r.QR != nil || r.Code != "pix" {
			t.Errorf("expected code without QR, got %+v", r)
		}
	})

	t.Run("should map outcomes and errors to messages", func(t *testing.T) {
		cases := []struct {
			out  usecase.AccessOutcome
			err  error
			want string
		}{
			{out: usecase.AccessOutcome{Kind: usecase.OutcomeRateLimited, WaitSeconds: 30}, want: "rate_limited_create:30"},
			{out: usecase.AccessOutcome{Kind: usecase.OutcomeNeedContact}, want: "need_contact"},
			{out: usecase.AccessOutcome{Kind: usecase.OutcomeAlreadyHasAccess}, want: "already_has_access"},
			{out: usecase.AccessOutcome{Kind: usecase.OutcomeExisting, Payment: &model.Payment{DisplayCode: "c", ExpiresAt: expires}}, want: "payment_existing:12:15"},
			{err: domain.NewGatewayError("create_charge", 503, errors.New("down")), want: "gateway_error"},
			{err: errors.New("db down"), want: "generic_error"},
		}
		for _, tc := range cases {
			a := &mockAccess{RequestAccessFunc: func(ctx context.Context, userID int64) (usecase.AccessOutcome, error) { return tc.out, tc.err }}
			if got := newFacade(a, nil, nil).HandleBuy(ctx, 1).Text; got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		}
	})
}

func TestBotFacade_HandleCheck(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		res     usecase.PollResult
		err     error
		want    string
		buttons string
	}{
		{res: usecase.PollResult{Outcome: usecase.PollStatus, Status: model.PaymentStatusPending}, want: "status_pending", buttons: application.CallbackCheck},
		{res: usecase.PollResult{Outcome: usecase.PollStatus, Status: model.PaymentStatusExpired}, want: "status_expired", buttons: application.CallbackBuy},
		{res: usecase.PollResult{Outcome: usecase.PollStatus, Status: model.PaymentStatusApproved}, want: "status_approved", buttons: application.CallbackPrompts},
		{res: usecase.PollResult{Outcome: usecase.PollRateLimited, WaitSeconds: 4}, want: "rate_limited_verify:4"},
		{res: usecase.PollResult{Outcome: usecase.PollNoPayment}, want: "poll_no_payment", buttons: application.CallbackBuy},
		{err: domain.NewGatewayError("fetch_status", 0, errors.New("timeout")), want: "gateway_error"},
	}
	for _, tc := range cases {
		r := newFacade(nil, &mockPoll{res: tc.res, err: tc.err}, nil).HandleCheck(ctx, 42)
		if r.Text != tc.want {
			t.Errorf("expected %q, got %q", tc.want, r.Text)
		}
		if tc.buttons != "" && (len(r.Buttons) == 0 || r.Buttons[0][0].Data != tc.buttons) {
			t.Errorf("%s: expected %s button, got %+v", tc.want, tc.buttons, r.Buttons)
		}
	}
}

func TestBotFacade_HandleText(t *testing.T) {
	ctx := context.Background()

	t.Run("should treat text as the contact address while awaiting", func(t *testing.T) {
		a := &mockAccess{awaiting: true}

		r := newFacade(a, nil, nil).HandleText(ctx, 42, "  comprador@example.com ")

		if len(a.contacts) != 1 || a.contacts[0] != "comprador@example.com" {
			t.Errorf("expected the trimmed address to be stored, got %v", a.contacts)
		}
		if !strings.HasPrefix(r.Text, "contact_saved:comprador@example.com") {
			t.Errorf("unexpected text %q", r.Text)
		}
	})

	t.Run("should reject invalid addresses", func(t *testing.T) {
		a := &mockAccess{awaiting: true, SetContactFunc: func(ctx context.Context, userID int64, email string) error { return domain.ErrInvalidInput }}

		if r := newFacade(a, nil, nil).HandleText(ctx, 42, "nope"); r.Text != "contact_invalid" {
			t.Errorf("expected contact_invalid, got %q", r.Text)
		}
	})

	t.Run("should not consume text otherwise", func(t *testing.T) {
		a := &mockAccess{}
		if r := newFacade(a, nil, nil).HandleText(ctx, 42, "oi"); r.Text != "unknown_command" || len(a.contacts) != 0 {
			t.Errorf("expected unknown_command, got %q", r.Text)
		}
	})
}

func TestBotFacade_Prompts(t *testing.T) {
	ctx := context.Background()
	list := []model.Prompt{{Slug: "a", Title: "A", Category: "x", Body: "body a"}, {Slug: "b", Title: "B", Category: "y", Body: "body b"}}

	t.Run("should list prompts with one button each", func(t *testing.T) {
		r := newFacade(nil, nil, &mockPrompts{list: list}).HandlePrompts(ctx, 1)
		if len(r.Buttons) != 2 || r.Buttons[1][0].Data != application.PromptPrefix+"b" {
			t.Errorf("unexpected buttons %+v", r.Buttons)
		}
	})

	t.Run("should offer the purchase without access", func(t *testing.T) {
		r := newFacade(nil, nil, &mockPrompts{err: domain.ErrNoAccess}).HandlePrompt(ctx, 1, "a")
		if r.Text != "no_access" || r.Buttons[0][0].Data != application.CallbackBuy {
			t.Errorf("unexpected reply %+v", r)
		}
	})

	t.Run("should report unknown slugs", func(t *testing.T) {
		r := newFacade(nil, nil, &mockPrompts{list: list}).HandlePrompt(ctx, 1, "zzz")
		if r.Text != "prompt_not_found" {
			t.Errorf("expected prompt_not_found, got %q", r.Text)
		}
	})

	t.Run("should report disabled generation", func(t *testing.T) {
		r := newFacade(nil, nil, &mockPrompts{}).HandleGenerate(ctx, 1, "vendas")
		if r.Text != "gen_disabled" {
			t.Errorf("expected gen_disabled, got %q", r.Text)
		}
	})

	t.Run("should map a too long topic", func(t *testing.T) {
		r := newFacade(nil, nil, &mockPrompts{enabled: true, err: domain.ErrTopicTooLong}).HandleGenerate(ctx, 1, "x")
		if r.Text != fmt.Sprintf("gen_too_long:%d", usecase.MaxTopicRunes) {
			t.Errorf("unexpected text %q", r.Text)
		}
	})
}

func TestBotFacade_HandleGrant(t *testing.T) {
	ctx := context.Background()

	if r := newFacade(&mockAccess{}, nil, nil).HandleGrant(ctx, 1, "abc"); r.Text != "grant_usage" {
		t.Errorf("expected grant_usage, got %q", r.Text)
	}
	if r := newFacade(&mockAccess{forceNew: true}, nil, nil).HandleGrant(ctx, 1, "42"); r.Text != "grant_done:42" {
		t.Errorf("expected grant_done, got %q", r.Text)
	}
	if r := newFacade(&mockAccess{}, nil, nil).HandleGrant(ctx, 1, "42"); r.Text != "grant_already:42" {
		t.Errorf("expected grant_already, got %q", r.Text)
	}
	if r := newFacade(&mockAccess{forceErr: domain.ErrForbidden}, nil, nil).HandleGrant(ctx, 9, "42"); r.Text != "grant_forbidden" {
		t.Errorf("expected grant_forbidden, got %q", r.Text)
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		amount   int64
		currency string
		want     string
	}{
		{590, "BRL", "R$ 5,90"},
		{12345, "", "R$ 123,45"},
		{100, "usd", "USD 1.00"},
		{-5, "BRL", "-R$ 0,05"},
	}
	for _, tc := range cases {
		if got := application.FormatMoney(tc.amount, tc.currency); got != tc.want {
			t.Errorf("FormatMoney(%d, %q) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}
