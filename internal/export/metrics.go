package export

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ExportDuration prometheus.Histogram
	ExportsTotal   *prometheus.CounterVec
	ExportsShared  prometheus.Counter
}

var (
	metricsOnce    sync.Once
	defaultMetrics *Metrics
)

func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = &Metrics{
			ExportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "certcanvas_export_duration_seconds",
				Help:    "Time to render and upload one certificate",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			}),
			ExportsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "certcanvas_exports_total",
				Help: "Certificate exports by outcome",
			}, []string{"outcome"}),
			ExportsShared: promauto.NewCounter(prometheus.CounterOpts{
				Name: "certcanvas_exports_shared_total",
				Help: "Export requests answered by an identical in-flight export",
			}),
		}
	})
	return defaultMetrics
}

func (m *Metrics) record(start time.Time, err error) {
	if m == nil {
		return
	}
	m.ExportDuration.Observe(time.Since(start).Seconds())
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNoElements):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	m.ExportsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordShared() {
	if m == nil {
		return
	}
	m.ExportsShared.Inc()
}
