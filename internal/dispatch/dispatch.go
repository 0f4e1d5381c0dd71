// Package dispatch runs the post-quote project analysis off the request
// path.
//
// Two dispatchers exist. Async runs the analysis in a goroutine of the same
// process. Publisher hands it to NATS, where a Worker (possibly in another
// process) picks it up. Either way dispatch never blocks or fails the quote
// response; failures are logged and counted.
package dispatch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/solvdai/solvd/internal/analysis"
	"github.com/solvdai/solvd/internal/logging"
)

// Subject carries analysis requests.
const Subject = "solvd.quotes.analysis"

// QueueGroup load-balances requests across workers.
const QueueGroup = "solvd-analysis"

// DefaultTimeout bounds one analysis run.
const DefaultTimeout = 90 * time.Second

// Results recorded on the dispatch counter.
const (
	ResultSent          = "sent"
	ResultEmailFailed   = "email_failed"
	ResultPublished     = "published"
	ResultPublishFailed = "publish_failed"
	ResultDecodeFailed  = "decode_failed"
	ResultPanic         = "panic"
)

// Runner performs an analysis. *analysis.Analyzer implements it.
type Runner interface {
	Run(ctx context.Context, req analysis.Request) analysis.Report
}

// Dispatcher schedules an analysis without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req analysis.Request)
}

// Metrics counts dispatch outcomes.
type Metrics struct {
	// Dispatches counts outcomes. Labels: result
	Dispatches *prometheus.CounterVec
}

// NewMetrics registers the dispatch counter with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		Dispatches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solvd",
				Name:      "dispatch_total",
				Help:      "Total number of analysis dispatch outcomes",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) inc(result string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(result).Inc()
}

type options struct {
	logger  *logging.Logger
	metrics *Metrics
	timeout time.Duration
}

// Option configures a dispatcher or worker.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the outcome counter.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTimeout bounds each analysis run.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: logging.NewNop(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func outcome(r analysis.Report) string {
	if r.EmailError != "" {
		return ResultEmailFailed
	}
	return ResultSent
}
