package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/invitegate/internal/repository"
)

// QuotaOption customises QuotaTracker behaviour.
type QuotaOption func(*QuotaTracker)

// WithQuotaLocation sets the timezone month boundaries are computed in.
func WithQuotaLocation(loc *time.Location) QuotaOption {
	return func(q *QuotaTracker) {
		if loc != nil {
			q.loc = loc
		}
	}
}

// WithQuotaClock injects a custom clock primarily for testing.
func WithQuotaClock(clock func() time.Time) QuotaOption {
	return func(q *QuotaTracker) {
		if clock != nil {
			q.now = clock
		}
	}
}

// QuotaTracker bounds how many codes a user may create per calendar month.
// The check does not reserve a slot, so concurrent creates near the limit may
// overshoot it slightly.
type QuotaTracker struct {
	store repository.InviteStore
	max   int
	loc   *time.Location
	now   func() time.Time
}

// NewQuotaTracker constructs a tracker. A non-positive max disables the quota.
func NewQuotaTracker(store repository.InviteStore, max int, opts ...QuotaOption) (*QuotaTracker, error) {
	if store == nil {
		return nil, errors.New("quota tracker: store is required")
	}
	q := &QuotaTracker{
		store: store,
		max:   max,
		loc:   time.Local,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Window returns [start of month, start of next month) containing at.
func (q *QuotaTracker) Window(at time.Time) repository.TimeRange {
	local := at.In(q.loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, q.loc)
	return repository.TimeRange{From: start, To: start.AddDate(0, 1, 0)}
}

// Used counts the codes userID created in the current window.
func (q *QuotaTracker) Used(ctx context.Context, userID string) (int, error) {
	window := q.Window(q.now())
	count, err := q.store.CountByCreator(ctx, strings.TrimSpace(userID), &window)
	if err != nil {
		return 0, fmt.Errorf("quota tracker: count invites: %w", err)
	}
	return int(count), nil
}

// CheckAndAuthorize fails with *QuotaExceededError once userID reached the limit.
func (q *QuotaTracker) CheckAndAuthorize(ctx context.Context, userID string) error {
	if q.max <= 0 {
		return nil
	}
	used, err := q.Used(ctx, userID)
	if err != nil {
		return err
	}
	if used >= q.max {
		return &QuotaExceededError{Max: q.max}
	}
	return nil
}
