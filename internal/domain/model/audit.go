package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Audit event kinds.
const (
	AuditPaymentCreated     = "payment.created"
	AuditPaymentTransition  = "payment.transition"
	AuditPaymentReconfirmed = "payment.reconfirmed"
	AuditPaymentConflict    = "payment.conflict"
	AuditAccessGranted      = "access.granted"
	AuditAccessForced       = "access.force_granted"
	AuditAccessForceDenied  = "access.force_denied"
)

// AuditEvent is an append-only ledger entry.
type AuditEvent struct {
	ID        string // ULID, sorts by creation time
	Kind      string
	UserID    int64
	PaymentID string
	Source    string
	From      string
	To        string
	Detail    string
	CreatedAt time.Time
}

func NewAuditEvent(kind string, userID int64, paymentID string, at time.Time) *AuditEvent {
	return &AuditEvent{
		ID:        ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		Kind:      kind,
		UserID:    userID,
		PaymentID: paymentID,
		CreatedAt: at,
	}
}
