package metrics

import (
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ceyewan/scopestat/xerrors"
)

// DefaultBuckets 默认延迟分桶（秒），与 Prometheus 客户端默认值相同
var DefaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Histogram 固定分桶的直方图
//
// 分桶上界在创建时确定，严格递增，末尾隐含一个 +Inf 桶。
// 观测值落入第一个上界 >= v 的桶。每次 Observe 在同一把锁内
// 更新桶计数、总和与总数，读取时看到的三者始终一致。
type Histogram struct {
	key    MetricKey
	bounds []float64
	unit   string

	mu     sync.Mutex
	counts []uint64 // 非累积，len(bounds)+1，最后一个为 +Inf 桶
	sum    float64
	count  uint64
}

func newHistogram(key MetricKey, bounds []float64, unit string) *Histogram {
	return &Histogram{
		key:    key,
		bounds: bounds,
		unit:   unit,
		counts: make([]uint64, len(bounds)+1),
	}
}

// Observe 记录一次观测，v 为负数或 NaN 时返回 ErrInvalidObservation 且状态不变
func (h *Histogram) Observe(v float64) error {
	if math.IsNaN(v) || v < 0 {
		return xerrors.Wrapf(ErrInvalidObservation, "histogram %s: value %v", h.key, v)
	}
	idx := sort.SearchFloat64s(h.bounds, v)

	h.mu.Lock()
	h.counts[idx]++
	h.sum += v
	h.count++
	h.mu.Unlock()
	return nil
}

// ObserveDuration 按直方图单位换算后记录时长
func (h *Histogram) ObserveDuration(d time.Duration) error {
	return h.Observe(durationIn(d, h.unit))
}

// Bounds 分桶上界副本，不含 +Inf
func (h *Histogram) Bounds() []float64 {
	return slices.Clone(h.bounds)
}

// Key 指标身份
func (h *Histogram) Key() MetricKey {
	return h.key
}

// Count 观测总数
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum 观测值总和
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// snapshot 返回累积桶计数、总和与总数的一致视图
func (h *Histogram) snapshot() (buckets []Bucket, sum float64, count uint64) {
	h.mu.Lock()
	counts := slices.Clone(h.counts)
	sum, count = h.sum, h.count
	h.mu.Unlock()

	buckets = make([]Bucket, len(counts))
	var cum uint64
	for i, c := range counts {
		cum += c
		bound := math.Inf(1)
		if i < len(h.bounds) {
			bound = h.bounds[i]
		}
		buckets[i] = Bucket{UpperBound: bound, Count: cum}
	}
	return buckets, sum, count
}

// validateBuckets 上界必须有限且严格递增，允许为空（只有 +Inf 桶）
func validateBuckets(bounds []float64) ([]float64, error) {
	out := slices.Clone(bounds)
	for i, b := range out {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, xerrors.Wrapf(ErrInvalidBuckets, "bucket %d is not finite: %v", i, b)
		}
		if i > 0 && b <= out[i-1] {
			return nil, xerrors.Wrapf(ErrInvalidBuckets, "buckets not strictly increasing at %d: %v <= %v", i, b, out[i-1])
		}
	}
	return out, nil
}

// LinearBuckets 生成 count 个线性分桶：start, start+width, ...
func LinearBuckets(start, width float64, count int) ([]float64, error) {
	if count < 1 {
		return nil, xerrors.Wrap(ErrInvalidBuckets, "linear buckets needs a positive count")
	}
	if width <= 0 {
		return nil, xerrors.Wrapf(ErrInvalidBuckets, "linear buckets width %v must be positive", width)
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = start + float64(i)*width
	}
	return out, nil
}

// ExponentialBuckets 生成 count 个指数分桶：start, start*factor, ...
func ExponentialBuckets(start, factor float64, count int) ([]float64, error) {
	if count < 1 {
		return nil, xerrors.Wrap(ErrInvalidBuckets, "exponential buckets needs a positive count")
	}
	if start <= 0 {
		return nil, xerrors.Wrapf(ErrInvalidBuckets, "exponential buckets start %v must be positive", start)
	}
	if factor <= 1 {
		return nil, xerrors.Wrapf(ErrInvalidBuckets, "exponential buckets factor %v must be greater than 1", factor)
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = start
		start *= factor
	}
	return out, nil
}
