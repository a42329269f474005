package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error shape rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError carrying err.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError with a different user-facing message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Message = message
	return &cpy
}

var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// Invite code failures. Each one is surfaced with its own code so clients can
// tell an expired code from a consumed one.
var (
	ErrInviteQuotaExceeded = &AppError{
		Code:       "invite.quota_exceeded",
		Message:    "Monthly invite code limit reached",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInviteExhausted = &AppError{
		Code:       "invite.exhausted",
		Message:    "Could not allocate a unique invite code, try again later",
		StatusCode: http.StatusServiceUnavailable,
	}

	// ErrInviteInvalid is shared by malformed and unknown codes.
	ErrInviteInvalid = &AppError{
		Code:       "invite.invalid",
		Message:    "Invalid invite code",
		StatusCode: http.StatusBadRequest,
	}

	ErrInviteAlreadyUsed = &AppError{
		Code:       "invite.already_used",
		Message:    "Invite code has already been used",
		StatusCode: http.StatusConflict,
	}

	ErrInviteExpired = &AppError{
		Code:       "invite.expired",
		Message:    "Invite code has expired",
		StatusCode: http.StatusGone,
	}

	ErrSMSDeliveryFailed = &AppError{
		Code:       "sms.delivery_failed",
		Message:    "Failed to deliver SMS",
		StatusCode: http.StatusBadGateway,
	}

	ErrSMSUnconfigured = &AppError{
		Code:       "sms.unconfigured",
		Message:    "SMS service is not configured",
		StatusCode: http.StatusBadRequest,
	}
)

// New builds a new application error.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
