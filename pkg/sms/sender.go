package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSMSDisabled signals that SMS delivery is disabled via configuration.
var ErrSMSDisabled = errors.New("sms: delivery disabled")

// Message represents an outbound text message.
type Message struct {
	To   string
	From string
	Body string
}

// Receipt is returned by a transport once the gateway accepted a message.
type Receipt struct {
	MessageID string
	Status    string
}

// Sender delivers a single message. Implementations perform exactly one
// gateway call per Send; retry belongs to the caller.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Provider names accepted by NewSender.
const (
	ProviderTwilio = "twilio"
	ProviderLog    = "log"
)

// Settings capture the runtime configuration required to build a Sender.
type Settings struct {
	Enabled  bool
	Provider string
	From     string
	Timeout  time.Duration
	Twilio   TwilioSettings
}

// TwilioSettings hold the REST credentials for the Twilio provider.
type TwilioSettings struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
}

// NewSender constructs the transport selected by settings. A disabled
// configuration yields a Sender that always returns ErrSMSDisabled.
func NewSender(cfg Settings) (Sender, error) {
	if !cfg.Enabled {
		return disabledSender{}, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderTwilio:
		return NewTwilioSender(cfg)
	case ProviderLog:
		return NewLogSender(cfg.From), nil
	default:
		return nil, fmt.Errorf("sms: unsupported provider %q", cfg.Provider)
	}
}

// Configured reports whether sender can deliver messages at all.
func Configured(sender Sender) bool {
	if sender == nil {
		return false
	}
	_, disabled := sender.(disabledSender)
	return !disabled
}

type disabledSender struct{}

func (disabledSender) Send(context.Context, Message) (Receipt, error) {
	return Receipt{}, ErrSMSDisabled
}

// Disabled returns a Sender that rejects every message with ErrSMSDisabled.
func Disabled() Sender {
	return disabledSender{}
}

func resolveFrom(msg Message, fallback string) (string, error) {
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = strings.TrimSpace(fallback)
	}
	if from == "" {
		return "", errors.New("sms: sender number is required")
	}
	return from, nil
}
