// Package metrics exposes simulation progress as Prometheus collectors.
package metrics

import (
	"github.com/TFMV/schelling/engine"
	"github.com/TFMV/schelling/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "schelling"

// Collector records relocation steps and aggregate diagnostics.
// It implements engine.Recorder.
type Collector struct {
	Steps       *prometheus.CounterVec
	Attempts    *prometheus.CounterVec
	Moves       *prometheus.CounterVec
	Settled     *prometheus.CounterVec
	MeanUtility prometheus.Gauge
	Unsatisfied prometheus.Gauge
	Surface     prometheus.Gauge
	Population  *prometheus.GaugeVec
}

var _ engine.Recorder = (*Collector)(nil)

// New creates a collector and registers it with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Relocation steps run, by policy",
		}, []string{"policy"}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Relocation attempts made, by policy",
		}, []string{"policy"}),
		Moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Agents relocated, by policy",
		}, []string{"policy"}),
		Settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_steps_total",
			Help:      "Steps that found no unsatisfied agent, by policy",
		}, []string{"policy"}),
		MeanUtility: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_utility",
			Help:      "Mean utility over occupied sites",
		}),
		Unsatisfied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unsatisfied_agents",
			Help:      "Occupied sites below the satisfaction threshold",
		}),
		Surface: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "surface_length",
			Help:      "Neighbor pairs with differing state",
		}),
		Population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "population",
			Help:      "Sites holding each state",
		}, []string{"state"}),
	}

	if reg != nil {
		for _, col := range c.collectors() {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.Steps, c.Attempts, c.Moves, c.Settled,
		c.MeanUtility, c.Unsatisfied, c.Surface, c.Population,
	}
}

// RecordStep counts one relocation step
func (c *Collector) RecordStep(res engine.StepResult) {
	c.Steps.WithLabelValues(res.Policy).Inc()
	c.Attempts.WithLabelValues(res.Policy).Add(float64(res.Attempts))
	c.Moves.WithLabelValues(res.Policy).Add(float64(res.Moves))
	if res.Settled {
		c.Settled.WithLabelValues(res.Policy).Inc()
	}
}

// Observe sets the gauges from an aggregate report
func (c *Collector) Observe(m models.Metrics) {
	if m.Populated {
		c.MeanUtility.Set(m.MeanUtility)
	}
	c.Unsatisfied.Set(float64(m.Unsatisfied))
	c.Surface.Set(float64(m.Surface))
	c.Population.WithLabelValues(models.Positive.String()).Set(float64(m.Counts.Positive))
	c.Population.WithLabelValues(models.Negative.String()).Set(float64(m.Counts.Negative))
	c.Population.WithLabelValues(models.Empty.String()).Set(float64(m.Counts.Empty))
}
