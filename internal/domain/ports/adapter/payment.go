package adapter

import (
	"context"
	"time"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
)

// ChargeRequest describes one PIX charge to open with the provider.
type ChargeRequest struct {
	UserID         int64
	Email          string
	Amount         int64 // centavos
	Description    string
	CallbackURL    string // optional notification URL
	IdempotencyKey string
	ExpiresAt      time.Time
}

// ChargeResult is the provider's answer to a successful create call.
type ChargeResult struct {
	PaymentID    string
	Status       model.PaymentStatus
	DisplayCode  string  // PIX copy-and-paste code
	DisplayImage *string // base64 PNG of the QR code, nil when the provider did not send one
	TicketURL    string
}

type StatusResult struct {
	Status            model.PaymentStatus
	ExternalReference string // the user id we attached at creation
}

// PaymentGateway is the hex port for the instant-payment provider.
// Failures are *domain.GatewayError; implementations never retry.
type PaymentGateway interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	FetchStatus(ctx context.Context, paymentID string) (StatusResult, error)
}
