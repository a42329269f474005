package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/invitegate/internal/notifications"
	"github.com/charlesng35/invitegate/pkg/crypto"
	"github.com/charlesng35/invitegate/pkg/sms"
)

func newNotifyService(t *testing.T, clock *testClock, sender sms.Sender) (*InviteService, func(id string) int) {
	t.Helper()
	store := openTestStore(t)
	dispatcher := notifications.NewDispatcher(sender, notifications.WithSleeper(noWait))
	svc, err := NewInviteService(store,
		WithInviteClock(clock.Now),
		WithDispatcher(dispatcher, SMSPolicy{From: "+15005550006", MaxAttempts: 3, BaseDelay: time.Second}),
		WithDeliveryStore(store),
	)
	require.NoError(t, err)

	countDeliveries := func(id string) int {
		deliveries, err := store.ListDeliveries(context.Background(), id)
		require.NoError(t, err)
		return len(deliveries)
	}
	return svc, countDeliveries
}

func TestNotifyUnconfigured(t *testing.T) {
	clock := newTestClock(time.Now().UTC())
	svc, _ := newTestService(t, clock)
	require.False(t, svc.SMSConfigured())

	_, err := svc.Notify(context.Background(), "any", "+14155550100")
	require.ErrorIs(t, err, ErrUnconfigured)

	disabled, _ := newNotifyService(t, clock, sms.Disabled())
	_, err = disabled.Notify(context.Background(), "any", "+14155550100")
	require.ErrorIs(t, err, ErrUnconfigured)
}

func TestNotifySendsComposedMessage(t *testing.T) {
	clock := newTestClock(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	sender := &stubSender{}
	svc, countDeliveries := newNotifyService(t, clock, sender)
	ctx := context.Background()

	explicit := clock.Now().Add(24 * time.Hour)
	invite, err := svc.Create(ctx, "42", &explicit)
	require.NoError(t, err)

	result, err := svc.Notify(ctx, invite.ID, "+14155550100")
	require.NoError(t, err)
	require.True(t, result.Delivery.Success)
	require.Equal(t, "SM-test", result.Delivery.MessageID)
	require.Equal(t, 1, result.Delivery.Attempts)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "+14155550100", sent[0].To)
	require.Equal(t, "+15005550006", sent[0].From)
	require.Equal(t, "Your invite code is "+invite.Code+". It is valid for the next 24 hours.", sent[0].Body)

	require.NotNil(t, result.Record)
	require.True(t, result.Record.Success)
	require.Equal(t, crypto.DigestPhone("+14155550100"), result.Record.DestinationDigest)
	require.NotContains(t, string(result.Record.Attempts), "4155550100")
	require.Equal(t, 1, countDeliveries(invite.ID))
}

func TestNotifyRetriesThenReportsTransportFailure(t *testing.T) {
	clock := newTestClock(time.Now().UTC())
	gatewayErr := errors.New("gateway down")
	sender := &stubSender{failures: 10, err: gatewayErr}
	svc, countDeliveries := newNotifyService(t, clock, sender)
	ctx := context.Background()

	invite, err := svc.Create(ctx, "42", nil)
	require.NoError(t, err)

	result, err := svc.Notify(ctx, invite.ID, "+14155550100")
	require.ErrorIs(t, err, ErrTransportFailure)
	require.ErrorIs(t, err, gatewayErr)

	var deliveryErr *DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	require.Equal(t, 3, deliveryErr.Result.Attempts)

	require.NotNil(t, result)
	require.False(t, result.Delivery.Success)
	require.Len(t, sender.Sent(), 3)
	require.NotNil(t, result.Record)
	require.False(t, result.Record.Success)
	require.Equal(t, "gateway down", result.Record.LastError)
	require.Equal(t, 1, countDeliveries(invite.ID))
}

func TestNotifyRecoversAfterOneFailure(t *testing.T) {
	clock := newTestClock(time.Now().UTC())
	sender := &stubSender{failures: 1, err: errors.New("blip")}
	svc, _ := newNotifyService(t, clock, sender)
	ctx := context.Background()

	invite, err := svc.Create(ctx, "42", nil)
	require.NoError(t, err)

	result, err := svc.Notify(ctx, invite.ID, "+14155550100")
	require.NoError(t, err)
	require.Equal(t, 2, result.Delivery.Attempts)
	require.Equal(t, 2, result.Record.AttemptCount)
}

func TestNotifyRejectsUnusableCodes(t *testing.T) {
	clock := newTestClock(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	sender := &stubSender{}
	svc, countDeliveries := newNotifyService(t, clock, sender)
	ctx := context.Background()

	_, err := svc.Notify(ctx, "missing", "+14155550100")
	require.ErrorIs(t, err, ErrNotFound)

	used, err := svc.Create(ctx, "42", nil)
	require.NoError(t, err)
	_, err = svc.Redeem(ctx, used.Code, "7")
	require.NoError(t, err)
	_, err = svc.Notify(ctx, used.ID, "+14155550100")
	require.ErrorIs(t, err, ErrAlreadyUsed)

	soon := clock.Now().Add(time.Hour)
	expiring, err := svc.Create(ctx, "42", &soon)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = svc.Notify(ctx, expiring.ID, "+14155550100")
	require.ErrorIs(t, err, ErrExpired)

	require.Empty(t, sender.Sent())
	require.Zero(t, countDeliveries(expiring.ID))
}
