// Package metrics turns bus events into Prometheus series.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/models"
)

const namespace = "tunnel"

// Command outcome label values.
const (
	resultOK     = "ok"
	resultFailed = "failed"
)

type Metrics struct {
	reg *prometheus.Registry

	tickDuration   prometheus.Histogram
	connected      prometheus.Gauge
	lastSample     prometheus.Gauge
	temperature    *prometheus.GaugeVec
	setpoint       *prometheus.GaugeVec
	running        *prometheus.GaugeVec
	defrost        *prometheus.GaugeVec
	valve          *prometheus.GaugeVec
	coolingElapsed *prometheus.GaugeVec
	commands       *prometheus.CounterVec
	errors         prometheus.Counter
}

// New builds the collectors on a private registry together with the Go and
// process collectors.
func New() *Metrics {
	zone := []string{"zone"}
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_tick_duration_seconds",
			Help:      "Time spent reading every zone in one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plc_connected",
			Help:      "1 while the controller link is up.",
		}),
		lastSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sample_timestamp_seconds",
			Help:      "Unix time of the last published batch.",
		}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_temperature_celsius",
			Help:      "Calibrated zone temperatures by signal.",
		}, []string{"zone", "signal"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_setpoint_celsius",
			Help:      "Zone setpoints by signal.",
		}, []string{"zone", "signal"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_running",
			Help:      "1 while the zone's cooling is running.",
		}, zone),
		defrost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_defrost_active",
			Help:      "1 while the zone is defrosting.",
		}, zone),
		valve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_valve_position_percent",
			Help:      "Expansion valve opening.",
		}, zone),
		coolingElapsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_cooling_elapsed_seconds",
			Help:      "Seconds the zone has been running continuously.",
		}, zone),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Operator commands by name and outcome.",
		}, []string{"command", "result"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plc_errors_total",
			Help:      "Distinct recoverable controller errors reported by the poller.",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tickDuration,
		m.connected,
		m.lastSample,
		m.temperature,
		m.setpoint,
		m.running,
		m.defrost,
		m.valve,
		m.coolingElapsed,
		m.commands,
		m.errors,
	)
	return m
}

// WatchDropped exports the bus drop counter.
func (m *Metrics) WatchDropped(dropped func() uint64) {
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Events a slow subscriber missed.",
	}, func() float64 { return float64(dropped()) }))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Run consumes events until ctx ends or the stream closes.
func (m *Metrics) Run(ctx context.Context, stream <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			m.Observe(ev)
		}
	}
}

func (m *Metrics) Observe(ev events.Event) {
	switch ev.Kind {
	case events.KindSnapshot:
		if ev.Batch != nil {
			m.observeBatch(*ev.Batch)
		}
	case events.KindConnectivity:
		if ev.Connected != nil {
			m.connected.Set(boolValue(*ev.Connected))
		}
	case events.KindError:
		m.errors.Inc()
	case events.KindCommand:
		if ev.Command == nil {
			return
		}
		result := resultOK
		if !ev.Command.OK {
			result = resultFailed
		}
		m.commands.WithLabelValues(ev.Command.Command, result).Inc()
	}
}

func (m *Metrics) observeBatch(b events.Batch) {
	m.tickDuration.Observe(b.TickDuration.Seconds())
	m.lastSample.Set(float64(b.SampledAt.UnixNano()) / 1e9)
	for id, s := range b.Zones {
		zone := strconv.Itoa(id)
		m.temperature.WithLabelValues(zone, string(models.KeyAmbientTemp)).Set(s.AmbientTemp)
		m.temperature.WithLabelValues(zone, string(models.KeyPulpTemp1)).Set(s.PulpTemp1)
		m.temperature.WithLabelValues(zone, string(models.KeyPulpTemp2)).Set(s.PulpTemp2)
		m.setpoint.WithLabelValues(zone, string(models.KeySetpoint)).Set(s.Setpoint)
		m.setpoint.WithLabelValues(zone, string(models.KeySetpointPulp1)).Set(s.SetpointPulp1)
		m.setpoint.WithLabelValues(zone, string(models.KeySetpointPulp2)).Set(s.SetpointPulp2)
		m.running.WithLabelValues(zone).Set(boolValue(s.Running))
		m.defrost.WithLabelValues(zone).Set(boolValue(s.DefrostActive))
		m.valve.WithLabelValues(zone).Set(s.ValvePositionPct)
		m.coolingElapsed.WithLabelValues(zone).Set(s.CoolingElapsedSeconds)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
