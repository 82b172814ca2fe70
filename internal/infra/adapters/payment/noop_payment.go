package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory provider for dev mode. Charges stay
// pending until SetStatus moves them.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]noopCharge
}

type noopCharge struct {
	userID int64
	status model.PaymentStatus
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{charges: make(map[string]noopCharge)}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.ChargeResult{}, domain.NewGatewayError(opCreateCharge, 0, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("noop-%d", g.seq)
	g.charges[id] = noopCharge{userID: req.UserID, status: model.PaymentStatusPending}
	return adapter.ChargeResult{
		PaymentID:   id,
		Status:      model.PaymentStatusPending,
		DisplayCode: "00020126noop" + id,
		TicketURL:   "https://example.test/pix/" + id,
	}, nil
}

func (g *NoopPaymentGateway) FetchStatus(ctx context.Context, paymentID string) (adapter.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[paymentID]
	if !ok {
		return adapter.StatusResult{}, domain.NewGatewayError(opFetchStatus, http.StatusNotFound, errors.New("payment not found"))
	}
	return adapter.StatusResult{Status: c.status, ExternalReference: strconv.FormatInt(c.userID, 10)}, nil
}

// SetStatus simulates the payer (or the provider) moving a charge.
func (g *NoopPaymentGateway) SetStatus(paymentID string, status model.PaymentStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	c.status = status
	g.charges[paymentID] = c
	return nil
}
