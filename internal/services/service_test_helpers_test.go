package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/invitegate/internal/database/testutil"
	"github.com/charlesng35/invitegate/internal/models"
	"github.com/charlesng35/invitegate/internal/repository"
	"github.com/charlesng35/invitegate/pkg/sms"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openTestStore(t *testing.T) *repository.GormStore {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())
	store, err := repository.NewGormStore(db)
	require.NoError(t, err)
	return store
}

func newTestService(t *testing.T, clock *testClock, opts ...InviteOption) (*InviteService, *repository.GormStore) {
	t.Helper()
	store := openTestStore(t)
	base := []InviteOption{WithInviteClock(clock.Now)}
	svc, err := NewInviteService(store, append(base, opts...)...)
	require.NoError(t, err)
	return svc, store
}

// sequenceGenerator yields the given codes in order, repeating the last one.
func sequenceGenerator(codes ...string) CodeGenerator {
	var (
		mu sync.Mutex
		i  int
	)
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code, nil
	}
}

// blindStore hides existing codes from the pre-check so collisions surface at insert.
type blindStore struct {
	*repository.GormStore
}

func (b blindStore) FindByCode(context.Context, string) (*models.InviteCode, error) {
	return nil, repository.ErrNotFound
}

// lostRaceStore reports that another redeemer won the conditional update.
type lostRaceStore struct {
	*repository.GormStore
}

func (lostRaceStore) ConditionalMarkUsed(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}

type stubSender struct {
	mu       sync.Mutex
	failures int
	messages []sms.Message
	err      error
}

func (s *stubSender) Send(_ context.Context, msg sms.Message) (sms.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if len(s.messages) <= s.failures {
		return sms.Receipt{}, s.err
	}
	return sms.Receipt{MessageID: "SM-test"}, nil
}

func (s *stubSender) Sent() []sms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sms.Message(nil), s.messages...)
}

func noWait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
