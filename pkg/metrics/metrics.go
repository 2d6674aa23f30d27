package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeRejected  = "rejected"
	OutcomeReplay    = "replay"
	OutcomePending   = "pending"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeUnknown   = "unknown"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcard_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vcard_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30},
	}, []string{"method", "route"})

	TopupOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcard_topup_outcomes_total",
		Help: "Top-up submissions by outcome",
	}, []string{"outcome"})

	LedgerVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcard_ledger_verifications_total",
		Help: "TRC20 payment verifications, labeled confirmed or unconfirmed",
	}, []string{"result"})

	ReconcileRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcard_reconcile_repairs_total",
		Help: "Top-ups settled by the reconciliation job, by pass and outcome",
	}, []string{"pass", "outcome"})
)

// Middleware records count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(c.Request.Method, route))
		c.Next()
		timer.ObserveDuration()
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
