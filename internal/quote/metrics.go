package quote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/solvdai/solvd/internal/pricing"
)

// Metrics are the quote counters exposed on /metrics.
type Metrics struct {
	// Quotes counts generated quotes. Labels: source (model, fallback)
	Quotes *prometheus.CounterVec
	// Overrides counts model prices replaced by the calculated price.
	Overrides prometheus.Counter
}

// NewMetrics registers the quote counters with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Quotes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solvd",
				Name:      "quotes_total",
				Help:      "Total number of quotes generated by source",
			},
			[]string{"source"},
		),
		Overrides: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "solvd",
				Name:      "quote_overrides_total",
				Help:      "Total number of model prices overridden by the calculated price",
			},
		),
	}
}

func (m *Metrics) record(q pricing.Quote) {
	if m == nil {
		return
	}
	m.Quotes.WithLabelValues(string(q.Source)).Inc()
	if q.Reconciled {
		m.Overrides.Inc()
	}
}
