package controller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the controller's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	loadSeconds     prometheus.Gauge
	generations     *prometheus.CounterVec
	genDuration     prometheus.Histogram
	tokensPerSecond prometheus.Gauge
	wakes           prometheus.Counter
	state           *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loadSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storybox",
			Subsystem: "model",
			Name:      "load_seconds",
			Help:      "Duration of the model load in seconds",
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storybox",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Completed generation cycles by result",
		}, []string{"result"}),
		genDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storybox",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Duration of generation cycles in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		tokensPerSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storybox",
			Subsystem: "generation",
			Name:      "tokens_per_second",
			Help:      "Throughput of the most recent successful generation",
		}),
		wakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storybox",
			Subsystem: "button",
			Name:      "wakes_total",
			Help:      "Button wakes consumed by the controller",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "storybox",
			Name:      "state",
			Help:      "1 for the current appliance state, 0 otherwise",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.loadSeconds, m.generations, m.genDuration, m.tokensPerSecond, m.wakes, m.state)
	}
	return m
}

func (m *Metrics) observeLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.loadSeconds.Set(d.Seconds())
}

func (m *Metrics) observeGeneration(d time.Duration, tps float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.generations.WithLabelValues("error").Inc()
		return
	}
	m.generations.WithLabelValues("ok").Inc()
	m.genDuration.Observe(d.Seconds())
	m.tokensPerSecond.Set(tps)
}

func (m *Metrics) wake() {
	if m == nil {
		return
	}
	m.wakes.Inc()
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	for _, st := range []State{StateInitializing, StateIdle, StateGenerating} {
		v := 0.0
		if st == s {
			v = 1
		}
		m.state.WithLabelValues(st.String()).Set(v)
	}
}
