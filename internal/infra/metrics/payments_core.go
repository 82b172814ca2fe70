package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		reconcileOutcomesTotal,
		accessGrantsTotal,
		accessNotificationsTotal,
		rateLimitDenialsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment status transitions by resulting status (created counts as pending).",
		},
		[]string{"status"},
	)

	reconcileOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_outcomes_total",
			Help: "Reconciler decisions by observation source and outcome.",
		},
		[]string{"source", "outcome"}, // outcome: applied|noop|ignored|conflict|discarded
	)

	accessGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_grants_total",
			Help: "New access grants by source (payment/admin).",
		},
		[]string{"source"},
	)

	accessNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_notifications_total",
			Help: "Access-granted notifications by delivery result.",
		},
		[]string{"result"}, // sent|error
	)

	rateLimitDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_rate_limit_denials_total",
			Help: "Charge creation and verification attempts denied by cooldown.",
		},
		[]string{"action"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func IncReconcileOutcome(source, outcome string) {
	reconcileOutcomesTotal.WithLabelValues(norm(source), norm(outcome)).Inc()
}

func IncAccessGrant(source string) {
	accessGrantsTotal.WithLabelValues(norm(source)).Inc()
}

func IncAccessNotification(result string) {
	accessNotificationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncRateLimitDenied(action string) {
	rateLimitDenialsTotal.WithLabelValues(norm(action)).Inc()
}
