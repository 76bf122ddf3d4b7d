package pairing

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes Controller state as a custom prometheus.Collector,
// following the same Describe/Collect split as the retrieved corpus's
// TCPInfoCollector: descriptors are static, values are pulled from the
// controller on every scrape rather than pushed.
type Collector struct {
	controller *Controller

	discoveredNodes *prometheus.Desc
	nextTowerID     *prometheus.Desc
	bindingsTotal   *prometheus.Desc
	bindingSeconds  *prometheus.Desc
	controllerState *prometheus.Desc
}

// NewCollector wraps c for prometheus registration.
func NewCollector(c *Controller) *Collector {
	return &Collector{
		controller: c,
		discoveredNodes: prometheus.NewDesc(
			"hydropair_discovered_nodes",
			"Current number of entries in the discovery table.",
			nil, nil,
		),
		nextTowerID: prometheus.NewDesc(
			"hydropair_next_tower_id",
			"Next tower ID to be assigned to a bound node.",
			nil, nil,
		),
		bindingsTotal: prometheus.NewDesc(
			"hydropair_bindings_total",
			"Total concluded binding attempts, by result.",
			[]string{"result"}, nil,
		),
		bindingSeconds: prometheus.NewDesc(
			"hydropair_binding_duration_seconds",
			"Mean binding attempt duration, by result.",
			[]string{"result"}, nil,
		),
		controllerState: prometheus.NewDesc(
			"hydropair_controller_state",
			"Current controller state (0=operational, 1=discovery_active, 2=binding).",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.discoveredNodes
	ch <- c.nextTowerID
	ch <- c.bindingsTotal
	ch <- c.bindingSeconds
	ch <- c.controllerState
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.discoveredNodes, prometheus.GaugeValue, float64(c.controller.Table().Len()))
	ch <- prometheus.MustNewConstMetric(c.nextTowerID, prometheus.GaugeValue, float64(c.controller.identity.NextTowerID))
	ch <- prometheus.MustNewConstMetric(c.controllerState, prometheus.GaugeValue, float64(c.controller.State()))

	for r := ResultSuccess; r <= ResultInternalError; r++ {
		count, mean, _, _ := c.controller.Stats().Snapshot(r)
		ch <- prometheus.MustNewConstMetric(c.bindingsTotal, prometheus.CounterValue, float64(count), r.String())
		ch <- prometheus.MustNewConstMetric(c.bindingSeconds, prometheus.GaugeValue, mean.Seconds(), r.String())
	}
}
