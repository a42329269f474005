package repository

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/invitegate/internal/models"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateCode is returned when an insert violates the unique code index.
	ErrDuplicateCode = errors.New("repository: duplicate invite code")
)

// TimeRange is a half-open interval [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// InviteStore is the durable storage contract for invite codes.
type InviteStore interface {
	Insert(ctx context.Context, invite *models.InviteCode) error
	FindByCode(ctx context.Context, code string) (*models.InviteCode, error)
	FindByID(ctx context.Context, id string) (*models.InviteCode, error)
	// FindByCreator returns the creator's codes, newest first. A nil window
	// returns every code.
	FindByCreator(ctx context.Context, userID string, window *TimeRange) ([]models.InviteCode, error)
	// CountByCreator counts the creator's codes inside window, or all of them
	// when window is nil.
	CountByCreator(ctx context.Context, userID string, window *TimeRange) (int64, error)
	// ConditionalMarkUsed sets used_by/used_at only while the code is still
	// unredeemed. It returns false when no row was changed.
	ConditionalMarkUsed(ctx context.Context, id, usedBy string, usedAt time.Time) (bool, error)
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (*models.InviteCode, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]models.InviteCode, int64, error)
}

// StateCounts summarises stored invite codes by derived state.
type StateCounts struct {
	Active   int64
	Redeemed int64
	Expired  int64
}

// InviteStats exposes aggregate queries used by maintenance jobs.
type InviteStats interface {
	CountStates(ctx context.Context, now time.Time) (StateCounts, error)
}

// DeliveryStore persists SMS delivery audit rows.
type DeliveryStore interface {
	RecordDelivery(ctx context.Context, delivery *models.SMSDelivery) error
	ListDeliveries(ctx context.Context, inviteID string) ([]models.SMSDelivery, error)
}
