package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvitesCreated counts successfully issued invite codes.
	InvitesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invitegate_invites_created_total",
			Help: "Total number of invite codes issued",
		},
	)

	// Redemptions records redemption attempts by result
	// (success|invalid|already_used|expired|error).
	Redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invitegate_redemptions_total",
			Help: "Total number of invite code redemption attempts",
		},
		[]string{"result"},
	)

	// QuotaRejections counts create requests refused by the monthly quota.
	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invitegate_quota_rejections_total",
			Help: "Total number of invite creations rejected by quota",
		},
	)

	// GenerateCollisions counts generated candidates that already existed.
	GenerateCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invitegate_generate_collisions_total",
			Help: "Total number of generated invite codes that collided with an existing code",
		},
	)

	// SMSAttempts counts individual transport calls by result (success|failure|disabled).
	SMSAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invitegate_sms_attempts_total",
			Help: "Total number of SMS transport attempts",
		},
		[]string{"result"},
	)

	// InviteStates tracks stored invite codes by derived state (active|redeemed|expired).
	InviteStates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "invitegate_invite_codes",
			Help: "Number of invite codes by state",
		},
		[]string{"state"},
	)

	// APIInFlight tracks requests currently being served.
	APIInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "invitegate_api_in_flight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invitegate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
