package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type LoanMetrics struct {
	TransitionsTotal *prometheus.CounterVec
	PaymentsTotal    *prometheus.CounterVec
	QuotesTotal      *prometheus.CounterVec
}

type SessionMetrics struct {
	EventsTotal *prometheus.CounterVec
}

type NotifyMetrics struct {
	MessagesTotal *prometheus.CounterVec
}

var (
	HTTP = HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniloan_http_requests_total",
				Help: "Total number of HTTP requests received.",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniloan_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniloan_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Loan = LoanMetrics{
		TransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniloan_loan_transitions_total",
				Help: "Loan status transitions by target status.",
			},
			[]string{"status"},
		),
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniloan_loan_payments_total",
				Help: "Payment attempts by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		QuotesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniloan_quotes_total",
				Help: "EMI quotes calculated, by cache result.",
			},
			[]string{"cache"},
		),
	}

	Session = SessionMetrics{
		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniloan_session_events_total",
				Help: "Session lifecycle events by kind and role.",
			},
			[]string{"event", "role"},
		),
	}

	Notify = NotifyMetrics{
		MessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniloan_notify_messages_total",
				Help: "Loan event messages consumed by the notifier, by outcome.",
			},
			[]string{"routing_key", "outcome"},
		),
	}
)

func RecordHTTPRequest(method, path, code string, duration time.Duration) {
	HTTP.RequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTP.RequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

// ObserveDBQuery is meant to be deferred at the top of a repository method:
//
//	defer monitoring.ObserveDBQuery("get_loan", time.Now(), &err)
func ObserveDBQuery(queryName string, start time.Time, errp *error) {
	status := "success"
	if errp != nil && *errp != nil {
		status = "error"
	}
	RecordDBQuery(queryName, status, time.Since(start))
}

func RecordLoanTransition(status string) {
	Loan.TransitionsTotal.WithLabelValues(status).Inc()
}

func RecordPayment(paymentType, outcome string) {
	Loan.PaymentsTotal.WithLabelValues(paymentType, outcome).Inc()
}

func RecordQuote(cacheResult string) {
	Loan.QuotesTotal.WithLabelValues(cacheResult).Inc()
}

func RecordSessionEvent(event, role string) {
	Session.EventsTotal.WithLabelValues(event, role).Inc()
}

func RecordNotification(routingKey, outcome string) {
	Notify.MessagesTotal.WithLabelValues(routingKey, outcome).Inc()
}
