package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/condset"
)

// PrometheusCollector implements condset.MetricsCollector on a private
// registry that is written out as a node-exporter textfile.
type PrometheusCollector struct {
	registry *prometheus.Registry

	latency   *prometheus.HistogramVec
	groups    prometheus.Gauge
	windows   prometheus.Counter
	states    prometheus.Counter
	ibd2      prometheus.Counter
	fallbacks prometheus.Counter
}

// NewPrometheusCollector creates a collector with its own registry.
func NewPrometheusCollector() *PrometheusCollector {
	p := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "condset_operation_duration_seconds",
			Help:    "Duration of index builds and jobs",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op", "status"}),
		groups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "condset_groups",
			Help: "Number of site groups in the neighbor table",
		}),
		windows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condset_windows_total",
			Help: "Windows built by jobs",
		}),
		states: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condset_states_total",
			Help: "Conditioning states assigned over all windows",
		}),
		ibd2: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condset_ibd2_pairs_total",
			Help: "Haplotype pairs removed as IBD2",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "condset_fallback_windows_total",
			Help: "Windows filled with random states",
		}),
	}
	p.registry.MustRegister(p.latency, p.groups, p.windows, p.states, p.ibd2, p.fallbacks)
	return p
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBuild implements condset.MetricsCollector.
func (p *PrometheusCollector) RecordBuild(groups int, d time.Duration, err error) {
	p.latency.WithLabelValues("build", status(err)).Observe(d.Seconds())
	if err == nil {
		p.groups.Set(float64(groups))
	}
}

// RecordJob implements condset.MetricsCollector.
func (p *PrometheusCollector) RecordJob(windows, states int, d time.Duration, err error) {
	p.latency.WithLabelValues("job", status(err)).Observe(d.Seconds())
	if err == nil {
		p.windows.Add(float64(windows))
		p.states.Add(float64(states))
	}
}

// RecordIBD2 implements condset.MetricsCollector.
func (p *PrometheusCollector) RecordIBD2(pairs int) { p.ibd2.Add(float64(pairs)) }

// RecordFallback implements condset.MetricsCollector.
func (p *PrometheusCollector) RecordFallback(windows int) { p.fallbacks.Add(float64(windows)) }

// WriteTextfile writes all metrics to path.
func (p *PrometheusCollector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}

// teeCollector fans every record out to several collectors.
type teeCollector []condset.MetricsCollector

func (t teeCollector) RecordBuild(groups int, d time.Duration, err error) {
	for _, c := range t {
		c.RecordBuild(groups, d, err)
	}
}

func (t teeCollector) RecordJob(windows, states int, d time.Duration, err error) {
	for _, c := range t {
		c.RecordJob(windows, states, d, err)
	}
}

func (t teeCollector) RecordIBD2(pairs int) {
	for _, c := range t {
		c.RecordIBD2(pairs)
	}
}

func (t teeCollector) RecordFallback(windows int) {
	for _, c := range t {
		c.RecordFallback(windows)
	}
}
