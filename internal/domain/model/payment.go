package model

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending" // charge created; waiting for the payer
	PaymentStatusApproved    PaymentStatus = "approved"
	PaymentStatusRejected    PaymentStatus = "rejected"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusChargedBack PaymentStatus = "charged_back"
	PaymentStatusExpired     PaymentStatus = "expired" // set locally when nobody confirmed in time
	PaymentStatusUnknown     PaymentStatus = "unknown" // ambiguous provider answer; re-checked on next observation
)

// IsTerminal reports whether no further transition is expected from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusApproved, PaymentStatusRejected, PaymentStatusCancelled,
		PaymentStatusRefunded, PaymentStatusChargedBack, PaymentStatusExpired:
		return true
	}
	return false
}

// IsProviderFinal is a terminal status only the provider can produce.
// Unlike expired, these are never replaced by a later observation.
func (s PaymentStatus) IsProviderFinal() bool {
	return s.IsTerminal() && s != PaymentStatusExpired
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusUnknown, PaymentStatusExpired:
		return true
	}
	return s.IsProviderFinal()
}

// ParsePaymentStatus maps a stored status string; unrecognised values become unknown.
func ParsePaymentStatus(s string) PaymentStatus {
	ps := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !ps.Valid() {
		return PaymentStatusUnknown
	}
	return ps
}

// Payment is the ledger record of one provider charge. Never deleted.
type Payment struct {
	ID          string        // provider-assigned payment id (primary key)
	UserID      int64         // Telegram user id of the payer
	Status      PaymentStatus // see constants above
	Amount      int64         // centavos
	Currency    string        // "BRL"
	Email       string        // payer contact sent to the provider
	DisplayCode string        // PIX copy-and-paste code
	TicketURL   string        // provider-hosted payment page, optional
	CreatedAt   time.Time
	ExpiresAt   time.Time // CreatedAt + TTL, never extended
	UpdatedAt   time.Time
	ApprovedAt  *time.Time // set on the transition to approved
}

// IsLive reports whether p can still be paid: non-terminal and not past ExpiresAt.
// It only judges local staleness and never contacts the provider.
func (p *Payment) IsLive(now time.Time) bool {
	if p == nil || p.Status.IsTerminal() {
		return false
	}
	return now.Before(p.ExpiresAt)
}

// PastDeadline reports whether a non-terminal record has outlived its TTL.
func (p *Payment) PastDeadline(now time.Time) bool {
	return p != nil && !p.Status.IsTerminal() && !now.Before(p.ExpiresAt)
}

// ObservationSource names the channel a status observation came from.
type ObservationSource string

const (
	SourcePoll        ObservationSource = "poll"
	SourceWebhook     ObservationSource = "webhook"
	SourceSweep       ObservationSource = "sweep"
	SourceLocalExpiry ObservationSource = "local_expiry"
)

// Observation is one status report for a payment.
type Observation struct {
	PaymentID string
	Status    PaymentStatus
	Source    ObservationSource
	At        time.Time
}

// FromProvider is true for every source except the local expiry check.
func (o Observation) FromProvider() bool { return o.Source != SourceLocalExpiry }
