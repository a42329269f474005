package handlers

import (
	"errors"
	"fmt"

	"github.com/charlesng35/invitegate/internal/services"
	appErrors "github.com/charlesng35/invitegate/pkg/errors"
)

// inviteError maps service failures onto API errors. Unknown errors become a
// 500 that keeps the cause for the access log.
func inviteError(err error) *appErrors.AppError {
	var quota *services.QuotaExceededError
	switch {
	case errors.As(err, &quota):
		return appErrors.ErrInviteQuotaExceeded.
			WithMessage(fmt.Sprintf("Monthly invite code limit reached (maximum %d per month)", quota.Max))
	case errors.Is(err, services.ErrQuotaExceeded):
		return appErrors.ErrInviteQuotaExceeded
	case errors.Is(err, services.ErrExhaustedCodespace):
		return appErrors.ErrInviteExhausted.WithInternal(err)
	case errors.Is(err, services.ErrInvalidCode):
		return appErrors.ErrInviteInvalid
	case errors.Is(err, services.ErrAlreadyUsed):
		return appErrors.ErrInviteAlreadyUsed
	case errors.Is(err, services.ErrExpired):
		return appErrors.ErrInviteExpired
	case errors.Is(err, services.ErrNotFound):
		return appErrors.ErrNotFound.WithMessage("Invite code not found")
	case errors.Is(err, services.ErrInvalidExpiry):
		return appErrors.NewBadRequest("expires_at is required")
	case errors.Is(err, services.ErrUnconfigured):
		return appErrors.ErrSMSUnconfigured
	case errors.Is(err, services.ErrTransportFailure):
		return appErrors.ErrSMSDeliveryFailed.WithInternal(err)
	default:
		return appErrors.ErrInternalServer.WithInternal(err)
	}
}
