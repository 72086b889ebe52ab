// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hashtable

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "hashtable"

// Collector exposes a Table's aggregated statistics as Prometheus
// metrics.
type Collector struct {
	t *Table

	entryCount    *prometheus.Desc
	opTotal       *prometheus.Desc
	bucketMin     *prometheus.Desc
	bucketMax     *prometheus.Desc
	bucketAvg     *prometheus.Desc
}

// NewCollector returns a prometheus.Collector reporting on t.
func NewCollector(t *Table) *Collector {
	return &Collector{
		t: t,
		entryCount: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "entries"),
			"Number of entries currently stored in the table.",
			nil, nil,
		),
		opTotal: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "operations_total"),
			"Count of table operations by kind and outcome.",
			[]string{"op", "outcome"}, nil,
		),
		bucketMin: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "bucket_population_min"),
			"Smallest bucket population across the table.",
			nil, nil,
		),
		bucketMax: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "bucket_population_max"),
			"Largest bucket population across the table.",
			nil, nil,
		),
		bucketAvg: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "bucket_population_avg"),
			"Average bucket population across the table.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entryCount
	ch <- c.opTotal
	ch <- c.bucketMin
	ch <- c.bucketMax
	ch <- c.bucketAvg
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.t.Stats()

	ch <- prometheus.MustNewConstMetric(c.entryCount, prometheus.GaugeValue, float64(s.EntryCount))
	ch <- prometheus.MustNewConstMetric(c.bucketMin, prometheus.GaugeValue, float64(s.MinBucketPopulation))
	ch <- prometheus.MustNewConstMetric(c.bucketMax, prometheus.GaugeValue, float64(s.MaxBucketPopulation))
	ch <- prometheus.MustNewConstMetric(c.bucketAvg, prometheus.GaugeValue, s.AvgBucketPopulation)

	for _, row := range []struct {
		op string
		s  OpStats
	}{
		{"set", s.Set}, {"get", s.Get}, {"del", s.Del}, {"test", s.Test},
	} {
		ch <- prometheus.MustNewConstMetric(c.opTotal, prometheus.CounterValue, float64(row.s.Success), row.op, "success")
		ch <- prometheus.MustNewConstMetric(c.opTotal, prometheus.CounterValue, float64(row.s.Failed), row.op, "failed")
		ch <- prometheus.MustNewConstMetric(c.opTotal, prometheus.CounterValue, float64(row.s.NotFound), row.op, "not_found")
	}
}
