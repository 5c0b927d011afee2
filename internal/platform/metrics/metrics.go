package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	UsersCreated          prometheus.Counter
	LoginAttempts         *prometheus.CounterVec
	TokenRotations        prometheus.Counter
	AuthRejections        *prometheus.CounterVec
	SessionLookupDuration prometheus.Histogram
	Enrollments           *prometheus.CounterVec
	EnrollDuration        prometheus.Histogram
	PaymentVerifications  *prometheus.CounterVec
	NotificationsDropped  *prometheus.CounterVec
	NotificationsSent     prometheus.Counter
}

// New registers all metrics on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_users_created_total",
			Help: "Total number of users created in the system",
		}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_login_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		TokenRotations: f.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_token_rotations_total",
			Help: "Token pairs issued through the refresh flow",
		}),
		AuthRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_auth_rejections_total",
			Help: "Requests rejected by the auth guard, by reason",
		}, []string{"reason"}),
		SessionLookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "learnhub_session_lookup_duration_seconds",
			Help:    "Duration of session cache lookups",
			Buckets: latencyBuckets,
		}),
		Enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_enrollments_total",
			Help: "Enrollment attempts by outcome",
		}, []string{"outcome"}),
		EnrollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "learnhub_enroll_duration_seconds",
			Help:    "Duration of ledger enroll operations",
			Buckets: latencyBuckets,
		}),
		PaymentVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_payment_verifications_total",
			Help: "Payment confirmations by result",
		}, []string{"result"}),
		NotificationsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_notifications_dropped_total",
			Help: "Notifications dropped before reaching the sink, by reason",
		}, []string{"reason"}),
		NotificationsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_notifications_sent_total",
			Help: "Notifications written to the sink",
		}),
	}
}

// IncrementUsersCreated increments the users created counter by 1
func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementTokenRotation() {
	if m == nil {
		return
	}
	m.TokenRotations.Inc()
}

func (m *Metrics) IncrementAuthRejection(reason string) {
	if m == nil {
		return
	}
	m.AuthRejections.WithLabelValues(reason).Inc()
}

// ObserveSessionLookup records the duration of a session cache read.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSessionLookup(start time.Time) {
	if m == nil {
		return
	}
	m.SessionLookupDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.Enrollments.WithLabelValues(outcome).Inc()
}

// ObserveEnroll records the duration of a ledger enroll call.
func (m *Metrics) ObserveEnroll(start time.Time) {
	if m == nil {
		return
	}
	m.EnrollDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementPaymentVerification(result string) {
	if m == nil {
		return
	}
	m.PaymentVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementNotificationDropped(reason string) {
	if m == nil {
		return
	}
	m.NotificationsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementNotificationSent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}
