package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/invitegate/internal/models"
	"github.com/charlesng35/invitegate/internal/notifications"
	"github.com/charlesng35/invitegate/pkg/crypto"
	"github.com/charlesng35/invitegate/pkg/sms"
)

// NotifyResult describes a completed Notify call.
type NotifyResult struct {
	InviteID string
	Delivery notifications.Result
	Record   *models.SMSDelivery
}

// SMSConfigured reports whether Notify has a usable transport.
func (s *InviteService) SMSConfigured() bool {
	return s.dispatcher != nil && s.dispatcher.Configured()
}

// Notify texts the code identified by id to phoneNumber. Redeemed and expired
// codes are rejected before any message is sent.
func (s *InviteService) Notify(ctx context.Context, id, phoneNumber string) (out *NotifyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "InviteService.Notify")
	defer func() { endSpan(span, err) }()

	if !s.SMSConfigured() {
		return nil, ErrUnconfigured
	}
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return nil, errors.New("invite service: phone number is required")
	}

	invite, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("invite.id", invite.ID))

	now := s.now().UTC()
	if invite.Redeemed() {
		return nil, ErrAlreadyUsed
	}
	if invite.ExpiredAt(now) {
		return nil, ErrExpired
	}

	msg := sms.Message{
		To:   phoneNumber,
		From: s.sms.From,
		Body: notifications.ComposeInviteMessage(invite.Code, invite.ExpiresAt, now),
	}
	result := s.dispatcher.SendWithRetry(ctx, msg, s.sms.MaxAttempts, s.sms.BaseDelay)
	span.SetAttributes(attribute.Int("sms.attempts", result.Attempts))

	out = &NotifyResult{
		InviteID: invite.ID,
		Delivery: result,
		Record:   s.recordDelivery(ctx, invite.ID, phoneNumber, result),
	}

	if !result.Success {
		if errors.Is(result.Err, sms.ErrSMSDisabled) {
			return out, ErrUnconfigured
		}
		return out, &DeliveryError{Result: result}
	}
	return out, nil
}

// recordDelivery writes the audit row. Failures are logged, never returned:
// the message has already left the process.
func (s *InviteService) recordDelivery(ctx context.Context, inviteID, phone string, result notifications.Result) *models.SMSDelivery {
	if s.deliveries == nil {
		return nil
	}

	attempts, err := json.Marshal(result.Detail)
	if err != nil {
		attempts = []byte("[]")
	}
	record := &models.SMSDelivery{
		InviteCodeID:      inviteID,
		DestinationDigest: crypto.DigestPhone(phone),
		Success:           result.Success,
		MessageID:         result.MessageID,
		AttemptCount:      result.Attempts,
		Attempts:          datatypes.JSON(attempts),
		CompletedAt:       s.now().UTC(),
	}
	if result.Err != nil {
		record.LastError = result.Err.Error()
	}

	if err := s.deliveries.RecordDelivery(context.WithoutCancel(ctx), record); err != nil {
		s.log.Warn("failed to record sms delivery",
			zap.String("invite_id", inviteID),
			zap.Error(fmt.Errorf("invite service: record delivery: %w", err)),
		)
		return nil
	}
	return record
}
