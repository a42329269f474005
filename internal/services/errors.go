package services

import (
	"errors"
	"fmt"

	"github.com/charlesng35/invitegate/internal/notifications"
)

var (
	// ErrQuotaExceeded indicates the creator reached the monthly issuance limit.
	// Returned errors are *QuotaExceededError values carrying the limit.
	ErrQuotaExceeded = errors.New("invite: monthly quota exceeded")
	// ErrExhaustedCodespace indicates no unique code was found within the attempt bound.
	ErrExhaustedCodespace = errors.New("invite: could not allocate a unique code")
	// ErrInvalidCode covers malformed and unknown codes alike.
	ErrInvalidCode = errors.New("invite: invalid code")
	// ErrAlreadyUsed signals the code has been redeemed.
	ErrAlreadyUsed = errors.New("invite: already used")
	// ErrExpired signals the code is past its deadline.
	ErrExpired = errors.New("invite: expired")
	// ErrNotFound is returned by id-based operations when no code matches.
	ErrNotFound = errors.New("invite: not found")
	// ErrTransportFailure indicates every SMS attempt failed.
	ErrTransportFailure = errors.New("invite: sms delivery failed")
	// ErrUnconfigured indicates no SMS transport is set up.
	ErrUnconfigured = errors.New("invite: sms transport not configured")
	// ErrInvalidExpiry rejects a zero expiry on update.
	ErrInvalidExpiry = errors.New("invite: invalid expiry")
)

// QuotaExceededError reports the configured monthly limit.
type QuotaExceededError struct {
	Max int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("invite: monthly quota of %d codes reached", e.Max)
}

// Is lets errors.Is(err, ErrQuotaExceeded) match.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// DeliveryError wraps an exhausted dispatcher result.
type DeliveryError struct {
	Result notifications.Result
}

func (e *DeliveryError) Error() string {
	if e.Result.Err != nil {
		return fmt.Sprintf("invite: sms delivery failed after %d attempts: %v", e.Result.Attempts, e.Result.Err)
	}
	return fmt.Sprintf("invite: sms delivery failed after %d attempts", e.Result.Attempts)
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrTransportFailure
}

func (e *DeliveryError) Unwrap() error {
	return e.Result.Err
}
