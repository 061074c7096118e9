// Package metrics exports profiler history as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tyde/framescope/internal/procstat"
	"github.com/tyde/framescope/profiler"
)

const namespace = "framescope"

// Exporter mirrors each finalized frame into Prometheus collectors. Gauges
// hold the latest smoothed values, so a scrape sees the same numbers the
// text report shows.
type Exporter struct {
	average     *prometheus.GaugeVec
	min         *prometheus.GaugeVec
	max         *prometheus.GaugeVec
	percent     *prometheus.GaugeVec
	invocations *prometheus.CounterVec

	frames        prometheus.Counter
	frameDuration prometheus.Gauge
	processCPU    prometheus.Gauge
}

// New creates an Exporter and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Exporter, error) {
	regionGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      name,
			Help:      help,
		}, []string{"region"})
	}

	e := &Exporter{
		average: regionGauge("average_percent", "Smoothed average self time as percent of frame."),
		min:     regionGauge("min_percent", "Smoothed minimum self time as percent of frame."),
		max:     regionGauge("max_percent", "Smoothed maximum self time as percent of frame."),
		percent: regionGauge("frame_percent", "Self time as percent of the last finalized frame."),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      "invocations_total",
			Help:      "Begin calls per region across all finalized frames.",
		}, []string{"region"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Finalized frames.",
		}),
		frameDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Wall time of the last finalized frame.",
		}),
		processCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "Process CPU time as percent of the last frame's wall time.",
		}),
	}

	for _, c := range []prometheus.Collector{
		e.average, e.min, e.max, e.percent, e.invocations,
		e.frames, e.frameDuration, e.processCPU,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return e, nil
}

// ObserveFrame records every row of frame.
func (e *Exporter) ObserveFrame(frame profiler.Frame) {
	e.frames.Inc()
	e.frameDuration.Set(frame.Duration)

	for _, row := range frame.Rows {
		e.average.WithLabelValues(row.Name).Set(row.Times.Average)
		e.min.WithLabelValues(row.Name).Set(row.Times.Min)
		e.max.WithLabelValues(row.Name).Set(row.Times.Max)
		e.percent.WithLabelValues(row.Name).Set(row.Percent)
		e.invocations.WithLabelValues(row.Name).Add(float64(row.Count))
	}
}

// ObserveProcess records the process CPU usage of the last frame.
func (e *Exporter) ObserveProcess(usage procstat.Usage) {
	e.processCPU.Set(usage.Percent)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
