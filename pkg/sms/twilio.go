package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type twilioSender struct {
	cfg     Settings
	baseURL *url.URL
	http    *http.Client
}

// APIError is returned when the gateway rejects a message.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("sms: twilio responded %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("sms: twilio responded %d: %s", e.StatusCode, e.Message)
}

// NewTwilioSender builds a Sender backed by the Twilio Messages resource.
// Twilio.BaseURL, when set, replaces the scheme and host of every API call.
func NewTwilioSender(cfg Settings) (Sender, error) {
	if err := validateTwilioConfig(cfg); err != nil {
		return nil, err
	}

	s := &twilioSender{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
	if raw := strings.TrimSpace(cfg.Twilio.BaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("sms: invalid twilio base url %q", raw)
		}
		s.baseURL = u
	}
	return s, nil
}

func validateTwilioConfig(cfg Settings) error {
	if strings.TrimSpace(cfg.Twilio.AccountSID) == "" {
		return errors.New("sms: twilio account sid is required when enabled")
	}
	if strings.TrimSpace(cfg.Twilio.AuthToken) == "" {
		return errors.New("sms: twilio auth token is required when enabled")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return errors.New("sms: sender number is required when enabled")
	}
	return nil
}

func (s *twilioSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	from, err := resolveFrom(msg, s.cfg.From)
	if err != nil {
		return Receipt{}, err
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return Receipt{}, errors.New("sms: recipient number is required")
	}

	params := &openapi.CreateMessageParams{}
	params.SetPathAccountSid(s.cfg.Twilio.AccountSID)
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(msg.Body)

	message, err := s.restClient(ctx).Api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			return Receipt{}, &APIError{StatusCode: restErr.Status, Code: restErr.Code, Message: restErr.Message}
		}
		return Receipt{}, fmt.Errorf("sms: send: %w", err)
	}
	if message == nil || message.Sid == nil || *message.Sid == "" {
		return Receipt{}, errors.New("sms: twilio response missing message sid")
	}

	receipt := Receipt{MessageID: *message.Sid}
	if message.Status != nil {
		receipt.Status = *message.Status
	}
	return receipt, nil
}

// restClient binds a Twilio client to ctx. The SDK calls take no context, so
// cancellation rides on the transport of a per-call http.Client.
func (s *twilioSender) restClient(ctx context.Context) *twilio.RestClient {
	base := s.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient := *s.http
	httpClient.Transport = &contextTransport{ctx: ctx, baseURL: s.baseURL, next: base}

	c := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(s.cfg.Twilio.AccountSID, s.cfg.Twilio.AuthToken),
		HTTPClient:  &httpClient,
	}
	c.SetAccountSid(s.cfg.Twilio.AccountSID)

	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: c})
}

type contextTransport struct {
	ctx     context.Context
	baseURL *url.URL
	next    http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(t.ctx)
	if t.baseURL != nil {
		out.URL.Scheme = t.baseURL.Scheme
		out.URL.Host = t.baseURL.Host
		out.Host = t.baseURL.Host
	}
	return t.next.RoundTrip(out)
}
