package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/invitegate/internal/database"
	"github.com/charlesng35/invitegate/internal/models"
)

const defaultQueryTimeout = 5 * time.Second

// Option configures a GormStore.
type Option func(*GormStore)

// WithQueryTimeout bounds every store operation. Non-positive values disable the bound.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(s *GormStore) {
		s.timeout = timeout
	}
}

// GormStore implements InviteStore, InviteStats and DeliveryStore on gorm.
type GormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

var (
	_ InviteStore   = (*GormStore)(nil)
	_ InviteStats   = (*GormStore)(nil)
	_ DeliveryStore = (*GormStore)(nil)
)

// NewGormStore constructs a store backed by db.
func NewGormStore(db *gorm.DB, opts ...Option) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("repository: db is required")
	}
	store := &GormStore{db: db, timeout: defaultQueryTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *GormStore) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func (s *GormStore) Insert(ctx context.Context, invite *models.InviteCode) error {
	if invite == nil {
		return errors.New("repository: invite is required")
	}
	normaliseTimes(invite)

	db, cancel := s.conn(ctx)
	defer cancel()

	if err := db.Create(invite).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert invite code: %w", err)
	}
	return nil
}

func (s *GormStore) FindByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var invite models.InviteCode
	err := db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).Take(&invite).Error
	if err != nil {
		return nil, translate(err, "find invite by code")
	}
	return &invite, nil
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.InviteCode, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var invite models.InviteCode
	if err := db.Where("id = ?", id).Take(&invite).Error; err != nil {
		return nil, translate(err, "find invite by id")
	}
	return &invite, nil
}

func (s *GormStore) FindByCreator(ctx context.Context, userID string, window *TimeRange) ([]models.InviteCode, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	query := byCreator(db, userID, window)

	var invites []models.InviteCode
	if err := query.Order("created_at DESC").Order("id").Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("find invites by creator: %w", err)
	}
	return invites, nil
}

func (s *GormStore) CountByCreator(ctx context.Context, userID string, window *TimeRange) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var count int64
	if err := byCreator(db.Model(&models.InviteCode{}), userID, window).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count invites by creator: %w", err)
	}
	return count, nil
}

func byCreator(db *gorm.DB, userID string, window *TimeRange) *gorm.DB {
	query := db.Where("created_by = ?", userID)
	if window != nil {
		query = query.Where("created_at >= ? AND created_at < ?", window.From.UTC(), window.To.UTC())
	}
	return query
}

func (s *GormStore) ConditionalMarkUsed(ctx context.Context, id, usedBy string, usedAt time.Time) (bool, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	usedAt = usedAt.UTC()
	result := db.Model(&models.InviteCode{}).
		Where("id = ? AND used_by IS NULL", id).
		Updates(map[string]interface{}{
			"used_by":    usedBy,
			"used_at":    usedAt,
			"updated_at": usedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("mark invite used: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (*models.InviteCode, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	result := db.Model(&models.InviteCode{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt.UTC())
	if result.Error != nil {
		return nil, fmt.Errorf("update invite expiry: %w", result.Error)
	}

	// MySQL reports changed rows, not matched rows, so zero does not imply absence.
	var invite models.InviteCode
	if err := db.Where("id = ?", id).Take(&invite).Error; err != nil {
		return nil, translate(err, "reload invite")
	}
	return &invite, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	result := db.Where("id = ?", id).Delete(&models.InviteCode{})
	if result.Error != nil {
		return fmt.Errorf("delete invite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, offset, limit int) ([]models.InviteCode, int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var total int64
	if err := db.Model(&models.InviteCode{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invites: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	var invites []models.InviteCode
	query := db.Order("created_at DESC").Order("id").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&invites).Error; err != nil {
		return nil, 0, fmt.Errorf("list invites: %w", err)
	}
	return invites, total, nil
}

func (s *GormStore) CountStates(ctx context.Context, now time.Time) (StateCounts, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	now = now.UTC()
	var counts StateCounts
	steps := []struct {
		dest  *int64
		where string
		args  []interface{}
	}{
		{&counts.Redeemed, "used_by IS NOT NULL", nil},
		{&counts.Active, "used_by IS NULL AND expires_at > ?", []interface{}{now}},
		{&counts.Expired, "used_by IS NULL AND expires_at <= ?", []interface{}{now}},
	}
	for _, step := range steps {
		if err := db.Model(&models.InviteCode{}).Where(step.where, step.args...).Count(step.dest).Error; err != nil {
			return StateCounts{}, fmt.Errorf("count invite states: %w", err)
		}
	}
	return counts, nil
}

func (s *GormStore) RecordDelivery(ctx context.Context, delivery *models.SMSDelivery) error {
	if delivery == nil {
		return errors.New("repository: delivery is required")
	}
	db, cancel := s.conn(ctx)
	defer cancel()

	delivery.CompletedAt = delivery.CompletedAt.UTC()
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = delivery.CompletedAt
	}
	if err := db.Create(delivery).Error; err != nil {
		return fmt.Errorf("record sms delivery: %w", err)
	}
	return nil
}

func (s *GormStore) ListDeliveries(ctx context.Context, inviteID string) ([]models.SMSDelivery, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var deliveries []models.SMSDelivery
	if err := db.Where("invite_code_id = ?", inviteID).Order("created_at").Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("list sms deliveries: %w", err)
	}
	return deliveries, nil
}

func normaliseTimes(invite *models.InviteCode) {
	invite.CreatedAt = invite.CreatedAt.UTC()
	invite.UpdatedAt = invite.UpdatedAt.UTC()
	invite.ExpiresAt = invite.ExpiresAt.UTC()
	if invite.UsedAt != nil {
		t := invite.UsedAt.UTC()
		invite.UsedAt = &t
	}
}

func translate(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
