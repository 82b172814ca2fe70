package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Startup / wiring
	ErrConfiguration = errors.New("configuration error")

	// Payment lifecycle
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrUnknownPayment     = errors.New("unknown payment")
	ErrInvalidInput       = errors.New("invalid input")

	// Access
	ErrNoAccess  = errors.New("premium access required")
	ErrForbidden = errors.New("forbidden")

	// Prompts
	ErrPromptNotFound  = errors.New("prompt not found")
	ErrPromptsDisabled = errors.New("prompt generation is not configured")
	ErrTopicTooLong    = errors.New("topic too long")
)

// GatewayError describes a failed round-trip to the payment provider.
// It always matches ErrGatewayUnavailable with errors.Is.
type GatewayError struct {
	Op         string // "create_charge" | "fetch_status"
	StatusCode int    // 0 when the request never got a response
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() []error { return []error{ErrGatewayUnavailable, e.Err} }

// NewGatewayError wraps err as a gateway failure for op.
func NewGatewayError(op string, status int, err error) *GatewayError {
	if err == nil {
		err = errors.New("unexpected response")
	}
	return &GatewayError{Op: op, StatusCode: status, Err: err}
}

// ConfigError reports a missing or invalid setting. Fatal at startup.
func ConfigError(field, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, field, msg)
}

// IsRetryable reports whether the caller may try the same action again later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
