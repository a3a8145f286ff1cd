package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
)

const timeObserve = 1 * time.Second

type Metrics struct {
	CPU              prometheus.Gauge
	AllocatedMemory  prometheus.Gauge
	RequestsNow      prometheus.Gauge
	Requests         *prometheus.CounterVec
	ResponseBodySize *prometheus.HistogramVec
	RequestDuration  *prometheus.HistogramVec

	reg *prometheus.Registry
}

func NewMetrics() *Metrics {
	m := &Metrics{
		CPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "isoserve_cpu_usage",
			Help: "CPU usage",
		}),
		AllocatedMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "isoserve_allocated_memory",
			Help: "Bytes of allocated heap objects",
		}),
		RequestsNow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "isoserve_requests_are_being_processed",
			Help: "How many requests are being processed",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isoserve_requests_total",
			Help: "How many requests were processed, by status code and method",
		}, []string{"code", "method"}),
		ResponseBodySize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "isoserve_response_body_size_bytes",
			Help:    "Size of the response bodies written",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "isoserve_request_duration_seconds",
			Help:    "Full request handling time",
			Buckets: prometheus.DefBuckets,
		}, []string{"code"}),
		reg: prometheus.NewRegistry(),
	}
	m.reg.MustRegister(
		m.CPU,
		m.AllocatedMemory,
		m.RequestsNow,
		m.Requests,
		m.ResponseBodySize,
		m.RequestDuration,
	)
	return m
}

func (m *Metrics) UpdateCPU() {
	p, err := cpu.Percent(0, false)
	if err == nil && len(p) > 0 {
		m.CPU.Set(p[0])
	}
}

func (m *Metrics) UpdateMemory() {
	s := runtime.MemStats{}
	runtime.ReadMemStats(&s)
	m.AllocatedMemory.Set(float64(s.Alloc))
}

// Observe refreshes the process gauges every second until ctx is done.
func (m *Metrics) Observe(ctx context.Context, logger *log.Logger) {
	t := time.NewTicker(timeObserve)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.UpdateCPU()
			m.UpdateMemory()
			logger.Debug("process gauges updated")
		}
	}
}

// Instrument wraps next with the request metrics.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.RequestsNow,
		promhttp.InstrumentHandlerDuration(m.RequestDuration,
			promhttp.InstrumentHandlerCounter(m.Requests,
				promhttp.InstrumentHandlerResponseSize(m.ResponseBodySize, next),
			),
		),
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
