package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/xerrors"
)

// Collector 将注册表桥接到 Prometheus 官方客户端
//
// 每次 Collect 读取一次快照并转换为 const 指标，因此可以与
// client_golang 的其它采集器注册到同一个 prometheus.Registry，
// 由 promhttp 统一暴露。Describe 不产生任何描述，属于 unchecked collector。
//
//	promReg := prometheus.NewRegistry()
//	promReg.MustRegister(metrics.NewCollector(reg))
type Collector struct {
	reg    *Registry
	logger clog.Logger
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建 Collector
func NewCollector(reg *Registry, opts ...Option) *Collector {
	o := newOptions(opts...)
	return &Collector{reg: reg, logger: o.logger}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.reg.Snapshot()

	samples := snap.Samples
	claims := make(seriesClaims)
	for start := 0; start < len(samples); {
		end := start + 1
		for end < len(samples) && samples[end].Name == samples[start].Name {
			end++
		}
		c.collectFamily(ch, samples[start:end], claims)
		start = end
	}
}

func (c *Collector) collectFamily(ch chan<- prometheus.Metric, family []Sample, claims seriesClaims) {
	name, kind := family[0].Name, family[0].Kind
	if err := claims.check(name, kind); err != nil {
		for _, s := range family {
			c.dropped(s, err)
		}
		return
	}

	// 同名指标的 help 与类型必须一致，以组内第一个为准
	help := ""
	for _, s := range family {
		if s.Kind == kind && s.Help != "" {
			help = s.Help
			break
		}
	}

	collected := 0
	for _, s := range family {
		if s.Kind != kind {
			c.dropped(s, xerrors.Wrapf(ErrMetricKindConflict, "family %s is %s, entry is %s", name, kind, s.Kind))
			continue
		}
		m, err := toPrometheusMetric(s, help)
		if err != nil {
			c.dropped(s, err)
			continue
		}
		ch <- m
		collected++
	}
	if collected > 0 {
		claims.claim(name, kind)
	}
}

func (c *Collector) dropped(s Sample, err error) {
	c.logger.Warn("metric dropped by prometheus collector",
		clog.String("metric", s.Name),
		clog.ErrorWithCode(err, xerrors.GetCode(err)))
}

func toPrometheusMetric(s Sample, help string) (prometheus.Metric, error) {
	if err := validMetricName(s.Name); err != nil {
		return nil, err
	}
	if err := validSampleLabels(s); err != nil {
		return nil, err
	}

	names := make([]string, len(s.Labels))
	values := make([]string, len(s.Labels))
	for i, l := range s.Labels {
		names[i], values[i] = l.Key, l.Value
	}
	desc := prometheus.NewDesc(s.Name, help, names, nil)

	switch s.Kind {
	case KindCounter:
		return prometheus.NewConstMetric(desc, prometheus.CounterValue, float64(s.Count), values...)
	case KindGauge:
		return prometheus.NewConstMetric(desc, prometheus.GaugeValue, s.Value, values...)
	case KindHistogram:
		buckets := make(map[float64]uint64, len(s.Buckets))
		for _, b := range s.Buckets {
			if math.IsInf(b.UpperBound, 1) {
				continue
			}
			buckets[b.UpperBound] = b.Count
		}
		return prometheus.NewConstHistogram(desc, s.Count, s.Sum, buckets, values...)
	default:
		return nil, xerrors.Wrapf(ErrMetricKindConflict, "unknown kind %q", s.Kind)
	}
}
