package metrics

import (
	"sync/atomic"

	"github.com/ceyewan/scopestat/xerrors"
)

// Kind 指标类型，取值与 Prometheus TYPE 一致
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindHistogram Kind = "histogram"
)

// Counter 单调递增的计数器
//
// 所有方法都可以并发调用，并发更新不会丢失。
type Counter struct {
	key   MetricKey
	value atomic.Uint64
}

// Inc 加 1
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add 增加 delta，delta 为负数时返回 ErrInvalidDelta 且值不变
func (c *Counter) Add(delta int64) error {
	if delta < 0 {
		return xerrors.Wrapf(ErrInvalidDelta, "counter %s: delta %d", c.key, delta)
	}
	c.value.Add(uint64(delta))
	return nil
}

// Value 当前值
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Key 指标身份
func (c *Counter) Key() MetricKey {
	return c.key
}
