package metrics

import (
	"time"

	"github.com/ceyewan/scopestat/clog"
)

// Option 配置 Registry、Reporter、Collector 与 Provider 的选项函数类型
type Option func(*options)

// options 内部选项结构
type options struct {
	logger         clog.Logger
	defaultBuckets []float64
	now            func() time.Time
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:         clog.Discard(),
		defaultBuckets: DefaultBuckets,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger 注入日志记录器
// 组件会自动为 logger 添加 "metrics" 命名空间
//
//	logger := clog.MustNew(&clog.Config{Level: "info"})
//	reg := metrics.NewRegistry(metrics.WithLogger(logger))
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}

// WithDefaultBuckets 设置 Histogram/Timer 未指定分桶时使用的默认分桶
func WithDefaultBuckets(buckets []float64) Option {
	return func(o *options) {
		if len(buckets) > 0 {
			o.defaultBuckets = buckets
		}
	}
}

// withClock 替换快照时间来源，仅供测试使用
func withClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// MetricOption 单个指标的可选元数据
type MetricOption func(*metricOptions)

type metricOptions struct {
	help string
	unit string
}

// WithHelp 设置指标说明，导出为 # HELP 行
//
// 同一个指标多次获取时，以第一次注册的说明为准。
func WithHelp(help string) MetricOption {
	return func(o *metricOptions) {
		o.help = help
	}
}

// WithUnit 设置指标单位
//
// 对 Timer 而言单位决定时长换算方式："s"（默认）、"ms"、"us"。
func WithUnit(unit string) MetricOption {
	return func(o *metricOptions) {
		o.unit = unit
	}
}

func applyMetricOptions(defaults metricOptions, opts []MetricOption) metricOptions {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}
