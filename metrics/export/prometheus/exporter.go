// Package prometheus bridges the authcore in-process counters to a
// prometheus/client_golang collector.
package prometheus

import (
	"github.com/immolink/authcore"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the service counter table plus the audit drop count.
// Register it on any prometheus.Registerer and scrape as usual.
type Collector struct {
	svc     *authcore.Service
	descs   map[authcore.MetricID]*prometheus.Desc
	dropped *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector over svc.
func NewCollector(svc *authcore.Service) *Collector {
	descs := make(map[authcore.MetricID]*prometheus.Desc, len(authcore.CounterDefs))
	for _, def := range authcore.CounterDefs {
		descs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return &Collector{
		svc:   svc,
		descs: descs,
		dropped: prometheus.NewDesc(
			"authcore_audit_events_dropped_total",
			"Audit events dropped because the dispatch buffer was full.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range authcore.CounterDefs {
		ch <- c.descs[def.ID]
	}
	ch <- c.dropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.svc.MetricsSnapshot()
	for _, def := range authcore.CounterDefs {
		ch <- prometheus.MustNewConstMetric(
			c.descs[def.ID],
			prometheus.CounterValue,
			float64(snap.Counters[def.ID]),
		)
	}
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.svc.AuditDropped()))
}
