package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		transitionsTotal,
		transactionsByStatus,
		revenueTotal,
		verificationsTotal,
		gatewayDuration,
		webhookRequests,
		reconcileRuns,
	)
}

var (
	// Transaction state changes by the status entered.
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paynow_transitions_total",
			Help: "Transaction state changes by status entered.",
		},
		[]string{"status"},
	)

	transactionsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paynow_transactions",
			Help: "Stored transactions by current status.",
		},
		[]string{"status"},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paynow_revenue_total",
			Help: "Sum of amounts of transactions that reached paid, by currency.",
		},
		[]string{"currency"},
	)

	// result: ok|fail; reason: mismatch|missing_hash|malformed|rejected|none
	verificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paynow_response_verifications_total",
			Help: "Gateway response checks by result and bounded reason.",
		},
		[]string{"source", "result", "reason"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paynow_gateway_request_duration_seconds",
			Help:    "Round trip to the Paynow gateway by endpoint and outcome.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint", "success"},
	)

	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paynow_result_webhook_requests_total",
			Help: "Result URL posts by HTTP status code.",
		},
		[]string{"code"},
	)

	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paynow_reconcile_polls_total",
			Help: "Reconciler poll attempts by outcome.",
		},
		[]string{"outcome"}, // changed|unchanged|error|skipped
	)
)

func IncTransition(status string) {
	transitionsTotal.WithLabelValues(norm(status)).Inc()
}

func SetTransactionsByStatus(counts map[string]int64) {
	transactionsByStatus.Reset()
	for status, n := range counts {
		transactionsByStatus.WithLabelValues(norm(status)).Set(float64(n))
	}
}

func AddRevenue(currency string, amount decimal.Decimal) {
	revenueTotal.WithLabelValues(norm(currency)).Add(amount.InexactFloat64())
}

func IncVerification(source, result, reason string) {
	verificationsTotal.WithLabelValues(norm(source), norm(result), norm(reason)).Inc()
}

func ObserveGatewayCall(endpoint string, d time.Duration, success bool) {
	gatewayDuration.WithLabelValues(norm(endpoint), strconv.FormatBool(success)).Observe(d.Seconds())
}

func IncWebhook(code int) {
	webhookRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

func IncReconcilePoll(outcome string) {
	reconcileRuns.WithLabelValues(norm(outcome)).Inc()
}
