package notifications

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/charlesng35/invitegate/pkg/crypto"
	"github.com/charlesng35/invitegate/pkg/logger"
	"github.com/charlesng35/invitegate/pkg/metrics"
	"github.com/charlesng35/invitegate/pkg/sms"
)

const defaultAttemptTimeout = 10 * time.Second

// Attempt describes one transport call.
type Attempt struct {
	Number     int    `json:"attempt"`
	MessageID  string `json:"message_id,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Result reports the outcome of SendWithRetry. Failure is a value, not an error.
type Result struct {
	Success   bool
	MessageID string
	Attempts  int
	Err       error
	Detail    []Attempt
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAttemptTimeout bounds each individual transport call.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.attemptTimeout = timeout
		}
	}
}

// WithRateLimit paces transport calls across all requests. A non-positive
// rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithSleeper replaces the backoff wait, mainly for tests.
func WithSleeper(sleep Sleeper) Option {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// Dispatcher delivers messages through an sms.Sender with bounded retry.
type Dispatcher struct {
	sender         sms.Sender
	limiter        *rate.Limiter
	attemptTimeout time.Duration
	sleep          Sleeper
	now            func() time.Time
	log            *zap.Logger
}

// NewDispatcher constructs a dispatcher. A nil sender behaves as a disabled transport.
func NewDispatcher(sender sms.Sender, opts ...Option) *Dispatcher {
	if sender == nil {
		sender = sms.Disabled()
	}
	d := &Dispatcher{
		sender:         sender,
		attemptTimeout: defaultAttemptTimeout,
		sleep:          sleepContext,
		now:            time.Now,
		log:            logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Configured reports whether the underlying transport can deliver messages.
func (d *Dispatcher) Configured() bool {
	return d != nil && sms.Configured(d.sender)
}

// SendWithRetry attempts delivery up to maxAttempts times. After failed attempt
// n it waits baseDelay*n before the next one. A disabled transport is not retried.
func (d *Dispatcher) SendWithRetry(ctx context.Context, msg sms.Message, maxAttempts int, baseDelay time.Duration) Result {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var result Result
	log := d.log.With(zap.String("to_digest", crypto.DigestPhone(msg.To)))

	for n := 1; n <= maxAttempts; n++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				result.Err = err
				return result
			}
		}

		receipt, err := d.attempt(ctx, msg, n, &result)
		if err == nil {
			result.Success = true
			result.MessageID = receipt.MessageID
			result.Err = nil
			metrics.SMSAttempts.WithLabelValues("success").Inc()
			log.Info("sms delivered", zap.Int("attempt", n), zap.String("message_id", receipt.MessageID))
			return result
		}

		result.Err = err
		if errors.Is(err, sms.ErrSMSDisabled) {
			metrics.SMSAttempts.WithLabelValues("disabled").Inc()
			return result
		}
		metrics.SMSAttempts.WithLabelValues("failure").Inc()
		log.Warn("sms attempt failed", zap.Int("attempt", n), zap.Int("max_attempts", maxAttempts), zap.Error(err))

		if n < maxAttempts {
			if werr := d.sleep(ctx, baseDelay*time.Duration(n)); werr != nil {
				result.Err = werr
				return result
			}
		}
	}

	log.Error("sms delivery exhausted retries", zap.Int("attempts", result.Attempts), zap.Error(result.Err))
	return result
}

func (d *Dispatcher) attempt(ctx context.Context, msg sms.Message, n int, result *Result) (sms.Receipt, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	started := d.now()
	receipt, err := d.sender.Send(attemptCtx, msg)

	entry := Attempt{Number: n, DurationMS: d.now().Sub(started).Milliseconds()}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.MessageID = receipt.MessageID
	}
	result.Attempts = n
	result.Detail = append(result.Detail, entry)
	return receipt, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
