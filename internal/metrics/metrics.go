package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission statuses recorded by ObserveSubmission
const (
	StatusSuccess         = "success"
	StatusExecutionFailed = "execution_failed"
	StatusRejected        = "rejected"
	StatusExpired         = "expired"
	StatusChainMismatch   = "chain_mismatch"
	StatusNetworkError    = "network_error"
)

// Metrics holds the client-side collectors. All methods are safe on a nil
// receiver so components can run without metrics wired in.
type Metrics struct {
	registry *prometheus.Registry

	txBuilt      prometheus.Counter
	submissions  *prometheus.CounterVec
	views        *prometheus.CounterVec
	nodeRequests *prometheus.CounterVec
	waitDuration prometheus.Histogram
	nextSequence *prometheus.GaugeVec
}

// New creates a metrics set registered on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		txBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movecall_transactions_built_total",
			Help: "Total number of signed transactions assembled",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movecall_submissions_total",
			Help: "Total number of submissions by final status",
		}, []string{"status"}),
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movecall_view_calls_total",
			Help: "Total number of view function calls by result",
		}, []string{"result"}),
		nodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movecall_node_requests_total",
			Help: "Total number of HTTP requests sent to the node by endpoint",
		}, []string{"endpoint"}),
		waitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "movecall_wait_duration_seconds",
			Help:    "Time from submission until a transaction reached a final state",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		nextSequence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "movecall_next_sequence_number",
			Help: "Next sequence number handed out per sender",
		}, []string{"sender"}),
	}

	m.registry.MustRegister(
		m.txBuilt,
		m.submissions,
		m.views,
		m.nodeRequests,
		m.waitDuration,
		m.nextSequence,
	)
	return m
}

// Registry returns the registry backing the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncTxBuilt records an assembled transaction and the sender's next sequence number
func (m *Metrics) IncTxBuilt(sender string, nextSeq uint64) {
	if m == nil {
		return
	}
	m.txBuilt.Inc()
	m.nextSequence.WithLabelValues(sender).Set(float64(nextSeq))
}

// ObserveSubmission records the final status of a submission
func (m *Metrics) ObserveSubmission(status string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
}

// ObserveWait records how long a submission took to reach a final state
func (m *Metrics) ObserveWait(d time.Duration) {
	if m == nil {
		return
	}
	m.waitDuration.Observe(d.Seconds())
}

// ObserveView records a view call result
func (m *Metrics) ObserveView(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.views.WithLabelValues(result).Inc()
}

// IncNodeRequest records an HTTP request to the node
func (m *Metrics) IncNodeRequest(endpoint string) {
	if m == nil {
		return
	}
	m.nodeRequests.WithLabelValues(endpoint).Inc()
}

// Handler returns an HTTP handler exposing the metrics in Prometheus format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
