package model

import "time"

type GrantSource string

const (
	GrantSourcePayment GrantSource = "payment"
	GrantSourceAdmin   GrantSource = "admin"
)

// AccessGrant marks a user as having unlocked the premium prompts. Permanent.
type AccessGrant struct {
	UserID    int64
	Source    GrantSource
	PaymentID string // empty for admin grants
	GrantedAt time.Time
}
