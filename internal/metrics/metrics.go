// Package metrics records run outcomes as Prometheus series and pushes them
// to a Pushgateway at the end of the run.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

const namespace = "dcabot"

// Recorder owns a private registry so only dcabot series are pushed.
type Recorder struct {
	registry *prometheus.Registry

	outcomes    *prometheus.CounterVec
	orderUSD    *prometheus.GaugeVec
	multipliers *prometheus.GaugeVec
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pair_outcomes_total",
			Help:      "Pair outcomes by product and status (placed, skipped, failed).",
		}, []string{"product", "status"}),
		orderUSD: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "order_usd",
			Help:      "Effective USD amount of the last placed order per product.",
		}, []string{"product"}),
		multipliers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "multiplier",
			Help:      "Sizing multipliers of the last run per product.",
		}, []string{"product", "kind"}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run.",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveReport records every outcome of a finished run.
func (r *Recorder) ObserveReport(report domain.RunReport) {
	for _, o := range report.Outcomes {
		r.outcomes.WithLabelValues(o.ProductID, string(o.Status)).Inc()

		if sz := o.Sizing; sz != nil && sz.Zone != "" {
			r.multipliers.WithLabelValues(o.ProductID, "dynamic").Set(sz.Dynamic)
			r.multipliers.WithLabelValues(o.ProductID, "window").Set(sz.Window)
			r.multipliers.WithLabelValues(o.ProductID, "reserve").Set(sz.Reserve)
			r.multipliers.WithLabelValues(o.ProductID, "clamped").Set(sz.Multiplier)
		}
		if o.Status == domain.OutcomePlaced && o.Sizing != nil {
			r.orderUSD.WithLabelValues(o.ProductID).Set(o.Sizing.EffectiveUSD)
		}
	}
	r.duration.Set(report.Duration().Seconds())
	r.lastRun.Set(float64(report.FinishedAt.Unix()))
}

// Pusher sends the registry to a Pushgateway.
type Pusher struct {
	pusher *push.Pusher
}

// NewPusher creates a Pusher for gatewayURL grouping series under job.
func NewPusher(gatewayURL, job string, r *Recorder) *Pusher {
	return &Pusher{pusher: push.New(gatewayURL, job).Gatherer(r.registry)}
}

// Push replaces the job's series on the gateway.
func (p *Pusher) Push(ctx context.Context) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push: %w", err)
	}
	return nil
}
