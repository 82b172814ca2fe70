package model

import "time"

type RateAction string

const (
	ActionCreate RateAction = "create"
	ActionVerify RateAction = "verify"
)

// RateLimitState holds the last successful action timestamps (Unix seconds, 0 = never).
type RateLimitState struct {
	UserID       int64
	LastCreateTS int64
	LastVerifyTS int64
}

func (s RateLimitState) Last(a RateAction) int64 {
	if a == ActionCreate {
		return s.LastCreateTS
	}
	return s.LastVerifyTS
}

// Verdict is the rate limiter's answer for one attempt.
type Verdict struct {
	Allowed     bool
	WaitSeconds int
}

// CheckCooldown computes the verdict for an action last performed at lastTS.
func CheckCooldown(lastTS int64, cooldown time.Duration, now time.Time) Verdict {
	if lastTS <= 0 {
		return Verdict{Allowed: true}
	}
	next := time.Unix(lastTS, 0).Add(cooldown)
	if !now.Before(next) {
		return Verdict{Allowed: true}
	}
	wait := next.Sub(now)
	secs := int(wait / time.Second)
	if wait%time.Second != 0 {
		secs++
	}
	return Verdict{Allowed: false, WaitSeconds: secs}
}
