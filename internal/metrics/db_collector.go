package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStats is a point-in-time snapshot of a database connection pool.
type PoolStats struct {
	Total        int32
	Idle         int32
	Acquired     int32
	Max          int32
	AcquireCount int64
	EmptyAcquire int64
	WaitSeconds  float64
}

// DBPoolStatFunc returns pool statistics without tying this package to a
// particular driver.
type DBPoolStatFunc func() PoolStats

type dbPoolCollector struct {
	statFunc DBPoolStatFunc

	total        *prometheus.Desc
	idle         *prometheus.Desc
	acquired     *prometheus.Desc
	max          *prometheus.Desc
	acquireCount *prometheus.Desc
	emptyAcquire *prometheus.Desc
	waitSeconds  *prometheus.Desc
}

// NewDBPoolCollector creates a collector exposing pool gauges and counters.
func NewDBPoolCollector(statFunc DBPoolStatFunc) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("orgbook_db_pool_"+name, help, nil, nil)
	}
	return &dbPoolCollector{
		statFunc:     statFunc,
		total:        desc("total_conns", "Total number of connections in the DB pool."),
		idle:         desc("idle_conns", "Number of idle connections in the DB pool."),
		acquired:     desc("acquired_conns", "Number of acquired connections in the DB pool."),
		max:          desc("max_conns", "Maximum size of the DB pool."),
		acquireCount: desc("acquires_total", "Cumulative successful connection acquires."),
		emptyAcquire: desc("empty_acquires_total", "Cumulative acquires that had to wait for a connection."),
		waitSeconds:  desc("acquire_wait_seconds_total", "Cumulative time spent waiting for a connection."),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.total, c.idle, c.acquired, c.max, c.acquireCount, c.emptyAcquire, c.waitSeconds} {
		ch <- d
	}
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statFunc()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}

	gauge(c.total, float64(s.Total))
	gauge(c.idle, float64(s.Idle))
	gauge(c.acquired, float64(s.Acquired))
	gauge(c.max, float64(s.Max))
	counter(c.acquireCount, float64(s.AcquireCount))
	counter(c.emptyAcquire, float64(s.EmptyAcquire))
	counter(c.waitSeconds, s.WaitSeconds)
}
