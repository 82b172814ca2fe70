package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/config"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/logging"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
)

const (
	opCreateCharge = "create_charge"
	opFetchStatus  = "fetch_status"

	// provider dates carry a fixed offset and millisecond precision
	mpTimeLayout = "2006-01-02T15:04:05.000-07:00"
)

var _ adapter.PaymentGateway = (*MercadoPagoGateway)(nil)

// MercadoPagoGateway implements adapter.PaymentGateway over the Mercado Pago
// REST v1 payments API.
type MercadoPagoGateway struct {
	token   string
	baseURL string
	client  *http.Client
	logPII  bool
	log     *zerolog.Logger
}

func NewMercadoPagoGateway(cfg config.MercadoPagoConfig, logger *zerolog.Logger) (*MercadoPagoGateway, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, domain.ConfigError("payment.mercadopago.access_token", "empty")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.mercadopago.com"
	}
	if _, err := url.Parse(base); err != nil {
		return nil, domain.ConfigError("payment.mercadopago.base_url", err.Error())
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := logger.With().Str("component", "mercadopago").Logger()
	return &MercadoPagoGateway{
		token:   cfg.AccessToken,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
		logPII:  cfg.LogPII,
		log:     &l,
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

type mpPayer struct {
	Email string `json:"email"`
}

type mpCreateRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	Payer             mpPayer `json:"payer"`
	ExternalReference string  `json:"external_reference"`
	NotificationURL   string  `json:"notification_url,omitempty"`
	DateOfExpiration  string  `json:"date_of_expiration,omitempty"`
}

type mpPayment struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	StatusDetail       string      `json:"status_detail"`
	ExternalReference  string      `json:"external_reference"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type mpError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (g *MercadoPagoGateway) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (res adapter.ChargeResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGatewayCall(opCreateCharge, time.Since(start), err) }()

	body := mpCreateRequest{
		TransactionAmount: float64(req.Amount) / 100,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer:             mpPayer{Email: req.Email},
		ExternalReference: strconv.FormatInt(req.UserID, 10),
		NotificationURL:   req.CallbackURL,
	}
	if !req.ExpiresAt.IsZero() {
		body.DateOfExpiration = req.ExpiresAt.Format(mpTimeLayout)
	}
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	var out mpPayment
	if err := g.do(ctx, opCreateCharge, http.MethodPost, "/v1/payments", body, key, &out); err != nil {
		return adapter.ChargeResult{}, err
	}
	if out.ID == "" {
		return adapter.ChargeResult{}, domain.NewGatewayError(opCreateCharge, 0, errors.New("response without payment id"))
	}

	td := out.PointOfInteraction.TransactionData
	res = adapter.ChargeResult{
		PaymentID:   out.ID.String(),
		Status:      MapStatus(out.Status),
		DisplayCode: td.QRCode,
		TicketURL:   td.TicketURL,
	}
	if td.QRCodeBase64 != "" {
		img := td.QRCodeBase64
		res.DisplayImage = &img
	}
	g.log.Info().
		Str("payment_id", res.PaymentID).
		Str("status", out.Status).
		Int64("tg_id", req.UserID).
		Str("payer", logging.RedactEmail(req.Email, g.logPII)).
		Str("pix_code", logging.Redact(res.DisplayCode, g.logPII)).
		Msg("charge created")
	return res, nil
}

func (g *MercadoPagoGateway) FetchStatus(ctx context.Context, paymentID string) (res adapter.StatusResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGatewayCall(opFetchStatus, time.Since(start), err) }()

	var out mpPayment
	if err := g.do(ctx, opFetchStatus, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, "", &out); err != nil {
		return adapter.StatusResult{}, err
	}
	return adapter.StatusResult{
		Status:            MapStatus(out.Status),
		ExternalReference: out.ExternalReference,
	}, nil
}

// do performs one round-trip. Every failure comes back as *domain.GatewayError.
func (g *MercadoPagoGateway) do(ctx context.Context, op, method, path string, in any, idemKey string, out any) error {
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return domain.NewGatewayError(op, 0, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rdr)
	if err != nil {
		return domain.NewGatewayError(op, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.NewGatewayError(op, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewGatewayError(op, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e mpError
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		if len(msg) > 200 {
			msg = msg[:200]
		}
		g.log.Warn().Str("op", op).Int("status", resp.StatusCode).Str("message", msg).Msg("provider rejected request")
		return domain.NewGatewayError(op, resp.StatusCode, errors.New(msg))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.NewGatewayError(op, resp.StatusCode, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// MapStatus folds the provider vocabulary into model.PaymentStatus.
func MapStatus(s string) model.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "in_process", "authorized":
		return model.PaymentStatusPending
	case "approved":
		return model.PaymentStatusApproved
	case "rejected":
		return model.PaymentStatusRejected
	case "cancelled":
		return model.PaymentStatusCancelled
	case "refunded":
		return model.PaymentStatusRefunded
	case "charged_back":
		return model.PaymentStatusChargedBack
	default:
		return model.PaymentStatusUnknown
	}
}
