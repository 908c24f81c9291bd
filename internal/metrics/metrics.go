// Package metrics exposes poll outcomes and HTTP traffic as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

const namespace = "usage_bar"

// Poll holds the poll metrics. Observe is a usagepoller.Handler.
type Poll struct {
	PollsTotal   *prometheus.CounterVec
	PollDuration *prometheus.HistogramVec
	UsagePercent *prometheus.GaugeVec
	LastSuccess  prometheus.Gauge
}

func NewPoll() *Poll {
	return &Poll{
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total number of usage polls by result and error kind",
			},
			[]string{"result", "kind"},
		),
		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_seconds",
				Help:      "Time spent invoking and parsing the CLI",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"result"},
		),
		UsagePercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "usage_percent",
				Help:      "Last known quota usage percentage",
			},
			[]string{"window"}, // "session" / "weekly"
		),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful poll",
		}),
	}
}

// Register adds the poll metrics to reg.
func (p *Poll) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{p.PollsTotal, p.PollDuration, p.UsagePercent, p.LastSuccess} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poll) Observe(ev usagepoller.Event) {
	if ev.Kind == usagepoller.EventFailed {
		p.PollsTotal.WithLabelValues("failed", string(ev.Err.Kind)).Inc()
		p.PollDuration.WithLabelValues("failed").Observe(ev.Duration.Seconds())
		return
	}
	p.PollsTotal.WithLabelValues("ok", "").Inc()
	p.PollDuration.WithLabelValues("ok").Observe(ev.Duration.Seconds())
	if ev.Record.Session.Known {
		p.UsagePercent.WithLabelValues("session").Set(ev.Record.Session.Value)
	}
	if ev.Record.Weekly.Known {
		p.UsagePercent.WithLabelValues("weekly").Set(ev.Record.Weekly.Value)
	}
	p.LastSuccess.Set(float64(ev.At.Unix()))
}
