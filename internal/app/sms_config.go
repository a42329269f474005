package app

import (
	"strings"

	"github.com/charlesng35/invitegate/internal/notifications"
	"github.com/charlesng35/invitegate/internal/services"
	"github.com/charlesng35/invitegate/pkg/sms"
)

// SenderSettings converts SMSConfig into sms.NewSender parameters.
func (c SMSConfig) SenderSettings() sms.Settings {
	return sms.Settings{
		Enabled:  c.Enabled,
		Provider: strings.ToLower(strings.TrimSpace(c.Provider)),
		From:     strings.TrimSpace(c.From),
		Timeout:  c.Timeout,
		Twilio: sms.TwilioSettings{
			AccountSID: strings.TrimSpace(c.Twilio.AccountSID),
			AuthToken:  strings.TrimSpace(c.Twilio.AuthToken),
			BaseURL:    strings.TrimSpace(c.Twilio.BaseURL),
		},
	}
}

// DispatcherOptions converts SMSConfig into dispatcher options.
func (c SMSConfig) DispatcherOptions() []notifications.Option {
	opts := []notifications.Option{notifications.WithAttemptTimeout(c.AttemptTimeout)}
	if c.RatePerSecond > 0 {
		opts = append(opts, notifications.WithRateLimit(c.RatePerSecond, c.Burst))
	}
	return opts
}

// Policy converts SMSConfig into the retry policy used by Notify.
func (c SMSConfig) Policy() services.SMSPolicy {
	return services.SMSPolicy{
		From:        strings.TrimSpace(c.From),
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
	}
}
