package metrics

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/xerrors"
)

// entry 注册表中的一条指标，kind 决定哪个字段有效
type entry struct {
	kind Kind
	key  MetricKey
	help string
	unit string

	counter   *Counter
	gauge     *Gauge
	histogram *Histogram
}

// Registry 进程内指标注册表
//
// 以规范化 MetricKey 为键去重：同一个键无论从哪条 Scope 路径获取，
// 都返回同一份存储。查找走读锁，只有首次注册时才获取写锁。
// 指标一旦注册不会被移除。
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	logger         clog.Logger
	defaultBuckets []float64
	now            func() time.Time
}

// NewRegistry 创建空注册表
func NewRegistry(opts ...Option) *Registry {
	o := newOptions(opts...)
	return &Registry{
		entries:        make(map[string]*entry),
		logger:         o.logger,
		defaultBuckets: o.defaultBuckets,
		now:            o.now,
	}
}

// Root 返回注册表的根 Scope：无标签、无名称前缀
func (r *Registry) Root() *Scope {
	return &Scope{reg: r}
}

// Len 已注册的指标数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) counter(key MetricKey, mo metricOptions) (*Counter, error) {
	e, err := r.getOrCreate(key, KindCounter, nil, mo)
	if err != nil {
		return nil, err
	}
	return e.counter, nil
}

func (r *Registry) gauge(key MetricKey, mo metricOptions) (*Gauge, error) {
	e, err := r.getOrCreate(key, KindGauge, nil, mo)
	if err != nil {
		return nil, err
	}
	return e.gauge, nil
}

func (r *Registry) histogram(key MetricKey, buckets []float64, mo metricOptions) (*Histogram, error) {
	if len(buckets) == 0 {
		buckets = r.defaultBuckets
	}
	bounds, err := validateBuckets(buckets)
	if err != nil {
		return nil, xerrors.Wrapf(err, "histogram %s", key)
	}
	e, err := r.getOrCreate(key, KindHistogram, bounds, mo)
	if err != nil {
		return nil, err
	}
	return e.histogram, nil
}

// getOrCreate 线性化的获取或创建
func (r *Registry) getOrCreate(key MetricKey, kind Kind, bounds []float64, mo metricOptions) (*entry, error) {
	id := key.ID()

	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if ok {
		return r.checkExisting(e, kind, bounds)
	}

	r.mu.Lock()
	if e, ok = r.entries[id]; ok {
		r.mu.Unlock()
		return r.checkExisting(e, kind, bounds)
	}

	e = &entry{kind: kind, key: key, help: mo.help, unit: mo.unit}
	switch kind {
	case KindCounter:
		e.counter = &Counter{key: key}
	case KindGauge:
		e.gauge = &Gauge{key: key}
	case KindHistogram:
		e.histogram = newHistogram(key, bounds, mo.unit)
	}
	r.entries[id] = e
	r.mu.Unlock()

	r.logger.Debug("metric registered",
		clog.String("metric", key.String()),
		clog.String("kind", string(kind)))
	return e, nil
}

func (r *Registry) checkExisting(e *entry, kind Kind, bounds []float64) (*entry, error) {
	if e.kind != kind {
		r.logger.Warn("metric kind conflict",
			clog.String("metric", e.key.String()),
			clog.String("registered", string(e.kind)),
			clog.String("requested", string(kind)))
		return nil, xerrors.Wrapf(ErrMetricKindConflict, "%s is registered as %s, requested %s", e.key, e.kind, kind)
	}
	if kind == KindHistogram && !slices.Equal(e.histogram.bounds, bounds) {
		r.logger.Warn("histogram bucket conflict", clog.String("metric", e.key.String()))
		return nil, xerrors.Wrapf(ErrMetricKindConflict, "%s is registered with buckets %v, requested %v", e.key, e.histogram.bounds, bounds)
	}
	return e, nil
}

// Snapshot 读取所有指标的当前值
//
// 只在枚举条目时持有读锁，每个指标的值通过它自己的原子变量或锁读取，
// 因此快照期间的并发更新不会被阻塞。结果按名称、再按排序后的标签内容排列。
func (r *Registry) Snapshot() Snapshot {
	ts := r.now()

	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	samples := make([]Sample, 0, len(entries))
	for _, e := range entries {
		samples = append(samples, e.sample())
	}
	slices.SortFunc(samples, func(a, b Sample) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return compareLabels(a.Labels, b.Labels)
	})
	return Snapshot{Timestamp: ts, Samples: samples}
}

func (e *entry) sample() Sample {
	s := Sample{
		Name:   e.key.Name,
		Labels: e.key.Labels.Labels(),
		Kind:   e.kind,
		Help:   e.help,
		Unit:   e.unit,
	}
	switch e.kind {
	case KindCounter:
		s.Count = e.counter.Value()
		s.Value = float64(s.Count)
	case KindGauge:
		s.Value = e.gauge.Value()
	case KindHistogram:
		s.Buckets, s.Sum, s.Count = e.histogram.snapshot()
	}
	return s
}
