package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/logging"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/metrics"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

const maxWebhookBody = 64 << 10

var (
	errMissingID      = errors.New("missing payment id")
	errBadSignature   = errors.New("signature mismatch")
	errMissingHeaders = errors.New("missing signature headers")
)

// WebhookReceiver is satisfied by usecase.ReconcilerUseCase.
type WebhookReceiver interface {
	HandleWebhook(ctx context.Context, providerPaymentID string) (usecase.ReconcileResult, error)
}

// WebhookHandler accepts Mercado Pago notifications. The body is only a
// pointer: the status is always re-fetched from the provider.
type WebhookHandler struct {
	receiver WebhookReceiver
	secret   []byte // signature check disabled when empty
	log      *zerolog.Logger
}

func NewWebhookHandler(receiver WebhookReceiver, secret string, logger *zerolog.Logger) *WebhookHandler {
	l := logger.With().Str("component", "mp_webhook").Logger()
	h := &WebhookHandler{receiver: receiver, log: &l}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

// flexID accepts "123" and 123.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// wireNotification covers the v1 webhook body and the legacy IPN form.
type wireNotification struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Data     struct {
		ID flexID `json:"id"`
	} `json:"data"`
}

// parseNotification returns the kind ("payment", "merchant_order", ...) and
// the resource id. Query parameters win over the body.
func parseNotification(r *http.Request) (kind, id string, err error) {
	q := r.URL.Query()
	kind = firstNonEmpty(q.Get("type"), q.Get("topic"))
	id = firstNonEmpty(q.Get("data.id"), q.Get("id"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) > 0 {
		var n wireNotification
		if err := json.Unmarshal(body, &n); err != nil {
			if id == "" {
				return "", "", fmt.Errorf("decode body: %w", err)
			}
		} else {
			if kind == "" {
				kind = firstNonEmpty(n.Type, n.Topic)
			}
			if kind == "" && strings.HasPrefix(n.Action, "payment.") {
				kind = "payment"
			}
			if id == "" {
				id = string(n.Data.ID)
			}
			if id == "" && n.Resource != "" {
				id = n.Resource[strings.LastIndex(n.Resource, "/")+1:]
			}
		}
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return kind, "", errMissingID
	}
	return strings.ToLower(strings.TrimSpace(kind)), id, nil
}

// verifySignature checks x-signature ("ts=...,v1=...") over the manifest
// "id:{id};request-id:{x-request-id};ts:{ts};".
func (h *WebhookHandler) verifySignature(r *http.Request, id string) error {
	if len(h.secret) == 0 {
		return nil
	}
	sig := r.Header.Get("X-Signature")
	if sig == "" {
		return errMissingHeaders
	}
	var ts, v1 string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	if ts == "" || v1 == "" {
		return errMissingHeaders
	}
	want, err := hex.DecodeString(v1)
	if err != nil {
		return errBadSignature
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(SignatureManifest(id, r.Header.Get("X-Request-Id"), ts)))
	if !hmac.Equal(mac.Sum(nil), want) {
		return errBadSignature
	}
	return nil
}

// SignatureManifest builds the signed string. Alphanumeric ids are lower-cased.
func SignatureManifest(id, requestID, ts string) string {
	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id:%s;", strings.ToLower(id))
	}
	if requestID != "" {
		fmt.Fprintf(&b, "request-id:%s;", requestID)
	}
	fmt.Fprintf(&b, "ts:%s;", ts)
	return b.String()
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind, id, err := parseNotification(r)
	if err != nil {
		metrics.IncWebhook("bad_request")
		h.log.Warn().Err(err).Msg("malformed notification")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.verifySignature(r, id); err != nil {
		metrics.IncWebhook("bad_signature")
		h.log.Warn().Err(err).Str("payment_id", id).Msg("notification rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if kind != "" && kind != "payment" {
		metrics.IncWebhook("ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := logging.WithPaymentID(r.Context(), id)
	l := logging.With(ctx, h.log)
	res, err := h.receiver.HandleWebhook(ctx, id)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncWebhook("bad_request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	case err != nil:
		// acknowledged anyway; the sweeper re-fetches open payments
		metrics.IncWebhook("error")
		l.Error().Err(err).Msg("webhook reconciliation failed")
	case res.Outcome == usecase.ReconcileDiscarded:
		metrics.IncWebhook("ignored")
	default:
		metrics.IncWebhook("ok")
		l.Info().Str("outcome", string(res.Outcome)).Bool("granted", res.Granted).Msg("webhook reconciled")
	}
	w.WriteHeader(http.StatusOK)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
