// Package metrics exposes control loop and weather fetch figures to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/nido/internal/control"
	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/weather"
)

const namespace = "nido"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	temperature    prometheus.Gauge
	setPoint       prometheus.Gauge
	hysteresis     prometheus.Gauge
	status         *prometheus.GaugeVec
	cycles         prometheus.Counter
	transitions    *prometheus.CounterVec
	faults         prometheus.Counter
	sensorErrors   prometheus.Counter
	paramErrors    prometheus.Counter
	weatherFetches *prometheus.CounterVec
	outdoorTemp    prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last indoor temperature reading.",
		}),
		setPoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "set_point_celsius",
			Help:      "Configured target temperature.",
		}),
		hysteresis: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hysteresis_celsius",
			Help:      "Configured hysteresis band.",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status",
			Help:      "Actuator status (1 for the current status, 0 otherwise).",
		}, []string{"status"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_cycles_total",
			Help:      "Control cycles run.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Status transition events by type.",
		}, []string{"event"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hardware_faults_total",
			Help:      "Cycles that found heat and cool both active.",
		}),
		sensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_errors_total",
			Help:      "Failed temperature reads.",
		}),
		paramErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_errors_total",
			Help:      "Cycles aborted because the configuration could not be read.",
		}),
		weatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "fetches_total",
			Help:      "Remote conditions fetches by outcome.",
		}, []string{"outcome"}),
		outdoorTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "temperature_celsius",
			Help:      "Outdoor temperature from the last successful fetch.",
		}),
	}

	m.registry.MustRegister(
		m.temperature,
		m.setPoint,
		m.hysteresis,
		m.status,
		m.cycles,
		m.transitions,
		m.faults,
		m.sensorErrors,
		m.paramErrors,
		m.weatherFetches,
		m.outdoorTemp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records the outcome of one control cycle.
func (m *Metrics) ObserveCycle(res control.Result, err error) {
	m.cycles.Inc()

	var (
		se *control.SensorError
		pe *control.ParamsError
	)
	switch {
	case errors.As(err, &se):
		m.sensorErrors.Inc()
	case errors.As(err, &pe):
		m.paramErrors.Inc()
	case errors.Is(err, control.ErrHardwareFault):
		m.faults.Inc()
	}

	if se == nil {
		m.temperature.Set(res.Temperature)
	}
	if se == nil && pe == nil {
		m.setPoint.Set(res.Params.SetPoint)
		m.hysteresis.Set(res.Params.Hysteresis)
	}
	for _, s := range []logic.Status{logic.StatusOff, logic.StatusHeating, logic.StatusCooling} {
		v := 0.0
		if s == res.Status {
			v = 1
		}
		m.status.WithLabelValues(string(s)).Set(v)
	}
}

// ObserveTransition counts a published status transition.
func (m *Metrics) ObserveTransition(t logic.EventType) {
	m.transitions.WithLabelValues(string(t)).Inc()
}

// ObserveFetch implements weather.Observer.
func (m *Metrics) ObserveFetch(err error) {
	m.weatherFetches.WithLabelValues(weather.Outcome(err)).Inc()
}

// ObserveConditions records the outdoor temperature.
func (m *Metrics) ObserveConditions(c *weather.Conditions) {
	if c != nil {
		m.outdoorTemp.Set(c.TempC)
	}
}

var _ weather.Observer = (*Metrics)(nil)
