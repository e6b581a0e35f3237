package metrics

import (
	"strings"

	"github.com/ceyewan/scopestat/xerrors"
)

// NameDelimiter 名称前缀与指标名之间的分隔符
const NameDelimiter = "_"

// Scope 带标签和名称前缀的指标获取入口
//
// Scope 本身是不可变的值：Labeled/Named 总是返回新的子 Scope，
// 父 Scope 不受影响。一个 Scope 可以在多个 goroutine 之间共享。
//
//	root := metrics.Root(reg)
//	api := root.Named("http").MustLabeled("route", "/x")
//	api.MustCounter("requests").Inc() // http_requests{route="/x"}
type Scope struct {
	reg    *Registry
	prefix string
	labels LabelSet
}

// Root 返回 reg 的根 Scope
func Root(reg *Registry) *Scope {
	return reg.Root()
}

// Registry 所属注册表
func (s *Scope) Registry() *Registry {
	return s.reg
}

// Prefix 名称前缀
func (s *Scope) Prefix() string {
	return s.prefix
}

// Labels 当前 Scope 解析后的标签集合
func (s *Scope) Labels() LabelSet {
	return s.labels
}

// Labeled 派生一个附加标签的子 Scope，同名键覆盖父 Scope 的值
func (s *Scope) Labeled(key, value string) (*Scope, error) {
	child, err := EmptyLabels().With(key, value)
	if err != nil {
		return nil, err
	}
	return &Scope{reg: s.reg, prefix: s.prefix, labels: MergeLabels(s.labels, child)}, nil
}

// MustLabeled 类似 Labeled，出错时 panic
func (s *Scope) MustLabeled(key, value string) *Scope {
	return xerrors.Must(s.Labeled(key, value))
}

// WithLabels 一次附加多个标签
func (s *Scope) WithLabels(labels ...Label) (*Scope, error) {
	child, err := NewLabelSet(labels...)
	if err != nil {
		return nil, err
	}
	return &Scope{reg: s.reg, prefix: s.prefix, labels: MergeLabels(s.labels, child)}, nil
}

// Named 派生一个追加名称段的子 Scope
//
// 前缀为空时直接使用 segment，否则以 "_" 连接；segment 为空时返回自身。
func (s *Scope) Named(segment string) *Scope {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return s
	}
	return &Scope{reg: s.reg, prefix: s.qualify(segment), labels: s.labels}
}

func (s *Scope) qualify(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + NameDelimiter + name
}

func (s *Scope) key(name string) (MetricKey, error) {
	if strings.TrimSpace(name) == "" {
		return MetricKey{}, xerrors.Wrap(ErrInvalidMetricName, "empty metric name")
	}
	return MetricKey{Name: s.qualify(name), Labels: s.labels}, nil
}

// Counter 获取或创建计数器
func (s *Scope) Counter(name string, opts ...MetricOption) (*Counter, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}
	return s.reg.counter(key, applyMetricOptions(metricOptions{}, opts))
}

// Gauge 获取或创建仪表盘
func (s *Scope) Gauge(name string, opts ...MetricOption) (*Gauge, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}
	return s.reg.gauge(key, applyMetricOptions(metricOptions{}, opts))
}

// Histogram 获取或创建直方图，buckets 为空时使用注册表的默认分桶
//
// 同一个键再次获取时分桶必须相同，否则返回 ErrMetricKindConflict。
func (s *Scope) Histogram(name string, buckets []float64, opts ...MetricOption) (*Histogram, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}
	return s.reg.histogram(key, buckets, applyMetricOptions(metricOptions{}, opts))
}

// Timer 获取或创建一个用于计时的直方图，默认单位为秒
func (s *Scope) Timer(name string, buckets []float64, opts ...MetricOption) (*Histogram, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}
	return s.reg.histogram(key, buckets, applyMetricOptions(metricOptions{unit: UnitSeconds}, opts))
}

// MustCounter 类似 Counter，出错时 panic，仅用于初始化阶段
func (s *Scope) MustCounter(name string, opts ...MetricOption) *Counter {
	return xerrors.Must(s.Counter(name, opts...))
}

// MustGauge 类似 Gauge，出错时 panic，仅用于初始化阶段
func (s *Scope) MustGauge(name string, opts ...MetricOption) *Gauge {
	return xerrors.Must(s.Gauge(name, opts...))
}

// MustHistogram 类似 Histogram，出错时 panic，仅用于初始化阶段
func (s *Scope) MustHistogram(name string, buckets []float64, opts ...MetricOption) *Histogram {
	return xerrors.Must(s.Histogram(name, buckets, opts...))
}

// MustTimer 类似 Timer，出错时 panic，仅用于初始化阶段
func (s *Scope) MustTimer(name string, buckets []float64, opts ...MetricOption) *Histogram {
	return xerrors.Must(s.Timer(name, buckets, opts...))
}
