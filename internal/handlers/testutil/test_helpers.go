package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/invitegate/internal/api"
	"github.com/charlesng35/invitegate/internal/app"
	iauth "github.com/charlesng35/invitegate/internal/auth"
	sharedtestutil "github.com/charlesng35/invitegate/internal/database/testutil"
	"github.com/charlesng35/invitegate/internal/middleware"
	"github.com/charlesng35/invitegate/internal/notifications"
	"github.com/charlesng35/invitegate/internal/repository"
	"github.com/charlesng35/invitegate/internal/services"
	"github.com/charlesng35/invitegate/pkg/response"
	"github.com/charlesng35/invitegate/pkg/sms"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Router  *gin.Engine
	JWT     *iauth.JWTService
	Store   *repository.GormStore
	Invites *services.InviteService
	SMS     *RecordingSender
}

type envOptions struct {
	quotaMax    int
	notifyLimit int
	smsEnabled  bool
}

// EnvOption customises NewEnv.
type EnvOption func(*envOptions)

// WithQuota sets the monthly per-user quota.
func WithQuota(max int) EnvOption {
	return func(o *envOptions) { o.quotaMax = max }
}

// WithNotifyLimit sets the per-destination send-sms budget per hour.
func WithNotifyLimit(n int) EnvOption {
	return func(o *envOptions) { o.notifyLimit = n }
}

// WithoutSMS leaves the SMS transport unconfigured.
func WithoutSMS() EnvOption {
	return func(o *envOptions) { o.smsEnabled = false }
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	options := envOptions{quotaMax: 10, notifyLimit: 100, smsEnabled: true}
	for _, opt := range opts {
		opt(&options)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithMigrations())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	store, err := repository.NewGormStore(db)
	require.NoError(t, err)

	quota, err := services.NewQuotaTracker(store, options.quotaMax, services.WithQuotaLocation(time.UTC))
	require.NoError(t, err)

	sender := &RecordingSender{}
	var transport sms.Sender = sms.Disabled()
	if options.smsEnabled {
		transport = sender
	}
	dispatcher := notifications.NewDispatcher(transport,
		notifications.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)

	invites, err := services.NewInviteService(store,
		services.WithQuota(quota),
		services.WithDispatcher(dispatcher, services.SMSPolicy{From: "+15550000000", MaxAttempts: 3}),
		services.WithDeliveryStore(store),
	)
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{
			CORSOrigins: []string{"*"},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
		SMS: app.SMSConfig{
			NotifyLimit: app.RateLimitConfig{Requests: options.notifyLimit, Window: time.Hour},
		},
	}

	router, err := api.NewRouter(db, jwtSvc, cfg, invites, middleware.NewMemoryRateStore())
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Router:  router,
		JWT:     jwtSvc,
		Store:   store,
		Invites: invites,
		SMS:     sender,
	}
}

// Token issues an access token for a regular user. An empty id yields a random one.
func (e *Env) Token(userID string) string {
	e.T.Helper()
	return e.token(userID, "")
}

// AdminToken issues an access token carrying the admin role.
func (e *Env) AdminToken(userID string) string {
	e.T.Helper()
	return e.token(userID, iauth.RoleAdmin)
}

func (e *Env) token(userID, role string) string {
	if userID == "" {
		userID = "user-" + uuid.NewString()
	}
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, Role: role})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// RecordingSender captures outbound messages. FailNext makes the next n sends fail.
type RecordingSender struct {
	mu       sync.Mutex
	messages []sms.Message
	failNext int
}

func (s *RecordingSender) Send(_ context.Context, msg sms.Message) (sms.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	if s.failNext > 0 {
		s.failNext--
		return sms.Receipt{}, &sms.APIError{StatusCode: http.StatusServiceUnavailable, Message: "gateway unavailable"}
	}
	return sms.Receipt{MessageID: "SM" + uuid.NewString(), Status: "queued"}, nil
}

// FailNext makes the next n sends fail.
func (s *RecordingSender) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Messages returns a copy of every message sent so far.
func (s *RecordingSender) Messages() []sms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sms.Message(nil), s.messages...)
}
