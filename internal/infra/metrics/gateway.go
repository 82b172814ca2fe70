package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		gatewayRequestDuration,
		webhookRequestsTotal,
		sweeperActionsTotal,
	)
}

var (
	// Latency of provider round-trips grouped by operation and result.
	// op: create_charge|fetch_status
	// result: ok|error
	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Duration of payment provider calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"op", "result"},
	)

	// Webhook deliveries grouped by bounded result.
	// result: ok|bad_request|bad_signature|ignored|error
	webhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Count of provider webhook deliveries by result.",
		},
		[]string{"result"},
	)

	sweeperActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sweeper_actions_total",
			Help: "Open payments handled by the background sweeper, by action.",
		},
		[]string{"action"}, // expire|refresh|error
	)
)

func ObserveGatewayCall(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayRequestDuration.WithLabelValues(norm(op), result).Observe(d.Seconds())
}

func IncWebhook(result string) {
	webhookRequestsTotal.WithLabelValues(norm(result)).Inc()
}

func IncSweeperAction(action string) {
	sweeperActionsTotal.WithLabelValues(norm(action)).Inc()
}
