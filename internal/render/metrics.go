package render

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RenderDuration    prometheus.Histogram
	RendersTotal      *prometheus.CounterVec
	ImageLoadFailures prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			RenderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "certcanvas_render_duration_seconds",
				Help:    "Time spent rasterizing a document",
				Buckets: prometheus.DefBuckets,
			}),
			RendersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "certcanvas_renders_total",
				Help: "Total number of document renders by outcome",
			}, []string{"outcome"}),
			ImageLoadFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "certcanvas_render_image_failures_total",
				Help: "Total number of image or QR elements skipped during rendering",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) recordRender(start time.Time, err error) {
	if m == nil || m.RenderDuration == nil || m.RendersTotal == nil {
		return
	}
	m.RenderDuration.Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RendersTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordImageFailure() {
	if m == nil || m.ImageLoadFailures == nil {
		return
	}
	m.ImageLoadFailures.Inc()
}
