package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/charlesng35/invitegate/internal/models"
	"github.com/charlesng35/invitegate/internal/notifications"
	"github.com/charlesng35/invitegate/internal/repository"
	"github.com/charlesng35/invitegate/pkg/crypto"
	"github.com/charlesng35/invitegate/pkg/logger"
	"github.com/charlesng35/invitegate/pkg/metrics"
)

const (
	defaultCodeLength          = 8
	defaultInviteValidity      = 30 * 24 * time.Hour
	defaultMaxGenerateAttempts = 10
	defaultMinRedeemLength     = 6
	defaultMaxRedeemLength     = 20
	defaultListLimit           = 10
	defaultMaxListLimit        = MaxListLimit
	defaultSMSMaxAttempts      = 3
	defaultSMSBaseDelay        = time.Second
)

// MaxListLimit is the largest page ListAll will return.
const MaxListLimit = 50

// SMSPolicy controls how Notify hands messages to the dispatcher.
type SMSPolicy struct {
	From        string
	MaxAttempts int
	BaseDelay   time.Duration
}

// CodeGenerator returns a random code of the given length.
type CodeGenerator func(length int) (string, error)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCodeLength sets the generated code length. Lengths beyond the code
// column are ignored.
func WithCodeLength(length int) InviteOption {
	return func(s *InviteService) {
		if length > 0 && length <= models.MaxCodeLength {
			s.codeLength = length
		}
	}
}

// WithInviteValidity overrides the default lifetime applied when no explicit expiry is given.
func WithInviteValidity(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithMaxGenerateAttempts bounds the collision retry loop on create.
func WithMaxGenerateAttempts(n int) InviteOption {
	return func(s *InviteService) {
		if n > 0 {
			s.maxGenerateAttempts = n
		}
	}
}

// WithRedeemLength sets the accepted code length range on redeem.
func WithRedeemLength(min, max int) InviteOption {
	return func(s *InviteService) {
		if min > 0 && max >= min && max <= models.MaxCodeLength {
			s.minRedeemLength = min
			s.maxRedeemLength = max
		}
	}
}

// WithMaxListLimit lowers the page size cap of ListAll. It never rises above
// MaxListLimit.
func WithMaxListLimit(limit int) InviteOption {
	return func(s *InviteService) {
		if limit > 0 && limit <= MaxListLimit {
			s.maxListLimit = limit
		}
	}
}

// WithQuota gates Create behind a QuotaTracker.
func WithQuota(q *QuotaTracker) InviteOption {
	return func(s *InviteService) {
		s.quota = q
	}
}

// WithDispatcher enables Notify.
func WithDispatcher(d *notifications.Dispatcher, policy SMSPolicy) InviteOption {
	return func(s *InviteService) {
		s.dispatcher = d
		if policy.MaxAttempts <= 0 {
			policy.MaxAttempts = defaultSMSMaxAttempts
		}
		if policy.BaseDelay < 0 {
			policy.BaseDelay = defaultSMSBaseDelay
		}
		s.sms = policy
	}
}

// WithDeliveryStore records an audit row for every Notify call.
func WithDeliveryStore(store repository.DeliveryStore) InviteOption {
	return func(s *InviteService) {
		s.deliveries = store
	}
}

// WithCodeGenerator replaces the random generator, mainly for tests.
func WithCodeGenerator(gen CodeGenerator) InviteOption {
	return func(s *InviteService) {
		if gen != nil {
			s.generate = gen
		}
	}
}

// WithTracer overrides the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) InviteOption {
	return func(s *InviteService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// InviteService issues, redeems and administers invite codes.
type InviteService struct {
	store      repository.InviteStore
	deliveries repository.DeliveryStore
	quota      *QuotaTracker
	dispatcher *notifications.Dispatcher
	sms        SMSPolicy

	codeLength          int
	validity            time.Duration
	maxGenerateAttempts int
	minRedeemLength     int
	maxRedeemLength     int
	maxListLimit        int

	generate CodeGenerator
	now      func() time.Time
	tracer   trace.Tracer
	log      *zap.Logger
}

// InvitePage is one page of ListAll.
type InvitePage struct {
	Items []models.InviteCode
	Total int64
	Page  int
	Limit int
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(store repository.InviteStore, opts ...InviteOption) (*InviteService, error) {
	if store == nil {
		return nil, errors.New("invite service: store is required")
	}

	service := &InviteService{
		store:               store,
		codeLength:          defaultCodeLength,
		validity:            defaultInviteValidity,
		maxGenerateAttempts: defaultMaxGenerateAttempts,
		minRedeemLength:     defaultMinRedeemLength,
		maxRedeemLength:     defaultMaxRedeemLength,
		maxListLimit:        defaultMaxListLimit,
		sms:                 SMSPolicy{MaxAttempts: defaultSMSMaxAttempts, BaseDelay: defaultSMSBaseDelay},
		generate:            crypto.GenerateCode,
		now:                 time.Now,
		tracer:              otel.Tracer("github.com/charlesng35/invitegate/internal/services"),
		log:                 logger.WithModule("invites"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Create issues a new code for createdBy. An explicit expiry is honoured only
// when it lies in the future; otherwise the default validity applies.
func (s *InviteService) Create(ctx context.Context, createdBy string, expiresAt *time.Time) (invite *models.InviteCode, err error) {
	ctx, span := s.tracer.Start(ctx, "InviteService.Create")
	defer func() { endSpan(span, err) }()

	createdBy = strings.TrimSpace(createdBy)
	if createdBy == "" {
		return nil, errors.New("invite service: creator is required")
	}
	span.SetAttributes(attribute.String("invite.created_by", createdBy))

	if s.quota != nil {
		if err := s.quota.CheckAndAuthorize(ctx, createdBy); err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				metrics.QuotaRejections.Inc()
			}
			return nil, err
		}
	}

	now := s.now().UTC()
	expiry := now.Add(s.validity)
	if expiresAt != nil && expiresAt.After(now) {
		expiry = expiresAt.UTC()
	}

	for attempt := 1; attempt <= s.maxGenerateAttempts; attempt++ {
		code, err := s.generate(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("invite service: generate code: %w", err)
		}

		_, err = s.store.FindByCode(ctx, code)
		switch {
		case err == nil:
			metrics.GenerateCollisions.Inc()
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("invite service: check code: %w", err)
		}

		candidate := &models.InviteCode{
			BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
			Code:      code,
			CreatedBy: createdBy,
			ExpiresAt: expiry,
		}
		if err := s.store.Insert(ctx, candidate); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				metrics.GenerateCollisions.Inc()
				continue
			}
			return nil, fmt.Errorf("invite service: insert code: %w", err)
		}

		metrics.InvitesCreated.Inc()
		s.log.Info("invite code created",
			zap.String("invite_id", candidate.ID),
			zap.String("created_by", createdBy),
			zap.Time("expires_at", candidate.ExpiresAt),
			zap.Int("attempts", attempt),
		)
		return candidate, nil
	}

	s.log.Error("invite code space exhausted",
		zap.String("created_by", createdBy),
		zap.Int("attempts", s.maxGenerateAttempts),
	)
	return nil, ErrExhaustedCodespace
}

// Redeem consumes code on behalf of usedBy. Exactly one of many concurrent
// redemptions succeeds; the rest observe ErrAlreadyUsed.
func (s *InviteService) Redeem(ctx context.Context, code, usedBy string) (invite *models.InviteCode, err error) {
	ctx, span := s.tracer.Start(ctx, "InviteService.Redeem")
	defer func() {
		metrics.Redemptions.WithLabelValues(redemptionResult(err)).Inc()
		endSpan(span, err)
	}()

	code = normaliseCode(code)
	if !s.wellFormed(code) {
		return nil, ErrInvalidCode
	}
	usedBy = strings.TrimSpace(usedBy)
	if usedBy == "" {
		return nil, errors.New("invite service: redeemer is required")
	}

	found, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("invite service: find code: %w", err)
	}
	span.SetAttributes(attribute.String("invite.id", found.ID))

	if found.Redeemed() {
		return nil, ErrAlreadyUsed
	}
	now := s.now().UTC()
	if found.ExpiredAt(now) {
		return nil, ErrExpired
	}

	changed, err := s.store.ConditionalMarkUsed(ctx, found.ID, usedBy, now)
	if err != nil {
		return nil, fmt.Errorf("invite service: mark used: %w", err)
	}
	if !changed {
		return nil, ErrAlreadyUsed
	}

	updated, err := s.store.FindByID(ctx, found.ID)
	if err != nil {
		return nil, fmt.Errorf("invite service: reload code: %w", err)
	}

	s.log.Info("invite code redeemed",
		zap.String("invite_id", updated.ID),
		zap.String("used_by", usedBy),
	)
	return updated, nil
}

// GetByID returns the code with the given id.
func (s *InviteService) GetByID(ctx context.Context, id string) (*models.InviteCode, error) {
	invite, err := s.store.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storeError(err, "find code")
	}
	return invite, nil
}

// GetByCode returns the record for a code value.
func (s *InviteService) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	invite, err := s.store.FindByCode(ctx, normaliseCode(code))
	if err != nil {
		return nil, storeError(err, "find code")
	}
	return invite, nil
}

// ListByCreator returns every code userID issued, newest first.
func (s *InviteService) ListByCreator(ctx context.Context, userID string) ([]models.InviteCode, error) {
	invites, err := s.store.FindByCreator(ctx, strings.TrimSpace(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("invite service: list by creator: %w", err)
	}
	return invites, nil
}

// ListAll pages through every code. Pages start at 1; limit is clamped to
// [1, max list limit] with a default of 10.
func (s *InviteService) ListAll(ctx context.Context, page, limit int) (*InvitePage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > s.maxListLimit:
		limit = s.maxListLimit
	}

	items, total, err := s.store.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("invite service: list codes: %w", err)
	}
	return &InvitePage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// UpdateExpiry replaces the deadline of a code. Redemption state is untouched.
func (s *InviteService) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (invite *models.InviteCode, err error) {
	ctx, span := s.tracer.Start(ctx, "InviteService.UpdateExpiry")
	defer func() { endSpan(span, err) }()

	if expiresAt.IsZero() {
		return nil, ErrInvalidExpiry
	}

	invite, err = s.store.UpdateExpiry(ctx, strings.TrimSpace(id), expiresAt)
	if err != nil {
		return nil, storeError(err, "update expiry")
	}
	s.log.Info("invite expiry updated", zap.String("invite_id", invite.ID), zap.Time("expires_at", invite.ExpiresAt))
	return invite, nil
}

// Remove deletes a code.
func (s *InviteService) Remove(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "InviteService.Remove")
	defer func() { endSpan(span, err) }()

	if err := s.store.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return storeError(err, "delete code")
	}
	s.log.Info("invite code removed", zap.String("invite_id", id))
	return nil
}

func (s *InviteService) wellFormed(code string) bool {
	if len(code) < s.minRedeemLength || len(code) > s.maxRedeemLength {
		return false
	}
	return crypto.IsCode(code)
}

func normaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func storeError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("invite service: %s: %w", op, err)
}

func redemptionResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCode):
		return "invalid"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
