// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "buddy"

// Collector exposes a Runtime's aggregated statistics, across every
// registered Context, as Prometheus metrics.
type Collector struct {
	rt *Runtime

	totalMemSpace   *prometheus.Desc
	stdUsedSpace    *prometheus.Desc
	nbStdPages      *prometheus.Desc
	nbStdUsed       *prometheus.Desc
	extraMemSpace   *prometheus.Desc
	nbExtraPages    *prometheus.Desc
	poolInUse       *prometheus.Desc
	poolHighWater   *prometheus.Desc
}

// NewCollector returns a prometheus.Collector reporting on rt.
func NewCollector(rt *Runtime) *Collector {
	return &Collector{
		rt: rt,
		totalMemSpace: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "total_mem_space_bytes"),
			"Total bytes allocated across all contexts, standard and extra.",
			nil, nil,
		),
		stdUsedSpace: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "std_used_space_bytes"),
			"Client-visible bytes currently reserved out of standard pages.",
			nil, nil,
		),
		nbStdPages: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "std_pages"),
			"Number of standard pages currently allocated.",
			nil, nil,
		),
		nbStdUsed: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "std_pages_in_use"),
			"Number of standard pages with at least one block in use.",
			nil, nil,
		),
		extraMemSpace: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "extra_mem_space_bytes"),
			"Bytes currently allocated as extra (oversized) blocks.",
			nil, nil,
		),
		nbExtraPages: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "extra_pages"),
			"Number of extra (oversized) blocks currently allocated.",
			nil, nil,
		),
		poolInUse: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "pool_entries_in_use"),
			"Entries currently checked out of an object pool.",
			[]string{"pool"}, nil,
		),
		poolHighWater: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "pool_entries_high_water"),
			"High-water mark of entries checked out of an object pool.",
			[]string{"pool"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalMemSpace
	ch <- c.stdUsedSpace
	ch <- c.nbStdPages
	ch <- c.nbStdUsed
	ch <- c.extraMemSpace
	ch <- c.nbExtraPages
	ch <- c.poolInUse
	ch <- c.poolHighWater
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var total Stats

	c.rt.mu.Lock()
	for ctx := c.rt.head; ctx != nil; ctx = ctx.next {
		total.TotalMemSpace += ctx.stats.TotalMemSpace
		total.StdUsedSpace += ctx.stats.StdUsedSpace
		total.NbStdPages += ctx.stats.NbStdPages
		total.NbStdUsed += ctx.stats.NbStdUsed
		total.ExtraMemSpace += ctx.stats.ExtraMemSpace
		total.NbExtraPages += ctx.stats.NbExtraPages
	}
	c.rt.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.totalMemSpace, prometheus.GaugeValue, float64(total.TotalMemSpace))
	ch <- prometheus.MustNewConstMetric(c.stdUsedSpace, prometheus.GaugeValue, float64(total.StdUsedSpace))
	ch <- prometheus.MustNewConstMetric(c.nbStdPages, prometheus.GaugeValue, float64(total.NbStdPages))
	ch <- prometheus.MustNewConstMetric(c.nbStdUsed, prometheus.GaugeValue, float64(total.NbStdUsed))
	ch <- prometheus.MustNewConstMetric(c.extraMemSpace, prometheus.GaugeValue, float64(total.ExtraMemSpace))
	ch <- prometheus.MustNewConstMetric(c.nbExtraPages, prometheus.GaugeValue, float64(total.NbExtraPages))

	for _, ps := range c.rt.PoolSummaries() {
		ch <- prometheus.MustNewConstMetric(c.poolInUse, prometheus.GaugeValue, float64(ps.InUse), ps.Name)
		ch <- prometheus.MustNewConstMetric(c.poolHighWater, prometheus.GaugeValue, float64(ps.HighWater), ps.Name)
	}
}
