// Package observe exposes simulation counters as Prometheus metrics.
// It has no dependency on sim/; the simulator reports plain values.
package observe

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Collector holds the Prometheus metrics updated by the simulation loop.
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	EventsDispatched    *prometheus.CounterVec
	SuppressedCallbacks prometheus.Counter
	QueueDepth          prometheus.Gauge
	ActiveSignals       prometheus.Gauge
	Receptions          *prometheus.CounterVec
	ReceptionSINR       prometheus.Histogram
}

// NewCollector registers the simulator metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosim_events_dispatched_total",
		Help: "Events executed by the simulation loop, labeled by priority class.",
	}, []string{"priority"}), "radiosim_events_dispatched_total")
	if err != nil {
		return nil, err
	}

	suppressed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radiosim_suppressed_callbacks_total",
		Help: "Cancelled callback events dropped at retrieval.",
	}), "radiosim_suppressed_callbacks_total")
	if err != nil {
		return nil, err
	}

	depth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radiosim_queue_depth",
		Help: "Events pending in the scheduler, including cancelled callbacks not yet retrieved.",
	}), "radiosim_queue_depth")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radiosim_active_signals",
		Help: "Transmissions currently on the air.",
	}), "radiosim_active_signals")
	if err != nil {
		return nil, err
	}

	receptions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radiosim_receptions_total",
		Help: "Frame receptions, labeled by outcome.",
	}, []string{"outcome"}), "radiosim_receptions_total")
	if err != nil {
		return nil, err
	}

	sinr, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "radiosim_reception_sinr_db",
		Help:    "Minimum SINR over each locked frame, in dB.",
		Buckets: prometheus.LinearBuckets(-20, 5, 12),
	}), "radiosim_reception_sinr_db")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:            gatherer,
		EventsDispatched:    events,
		SuppressedCallbacks: suppressed,
		QueueDepth:          depth,
		ActiveSignals:       active,
		Receptions:          receptions,
		ReceptionSINR:       sinr,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveEvent counts one dispatched event of the named priority.
func (c *Collector) ObserveEvent(priority string) {
	if c == nil || c.EventsDispatched == nil {
		return
	}
	c.EventsDispatched.WithLabelValues(priority).Inc()
}

// IncSuppressed counts one cancelled callback dropped at retrieval.
func (c *Collector) IncSuppressed() {
	if c == nil || c.SuppressedCallbacks == nil {
		return
	}
	c.SuppressedCallbacks.Inc()
}

// SetQueueDepth updates the pending event gauge.
func (c *Collector) SetQueueDepth(n int) {
	if c == nil || c.QueueDepth == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}

// SetActiveSignals updates the on-air transmission gauge.
func (c *Collector) SetActiveSignals(n int) {
	if c == nil || c.ActiveSignals == nil {
		return
	}
	c.ActiveSignals.Set(float64(n))
}

// ObserveReception counts a reception outcome. locked is false for frames the
// receiver never decoded, whose SINR is not meaningful.
func (c *Collector) ObserveReception(outcome string, sinrDb float64, locked bool) {
	if c == nil || c.Receptions == nil {
		return
	}
	c.Receptions.WithLabelValues(outcome).Inc()
	if locked && c.ReceptionSINR != nil {
		c.ReceptionSINR.Observe(sinrDb)
	}
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	if c == nil {
		return nil
	}
	families, err := c.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
