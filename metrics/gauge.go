package metrics

import (
	"math"
	"sync/atomic"
)

// Gauge 可任意设置的浮点数值，读到的是最后一次写入的结果
type Gauge struct {
	key  MetricKey
	bits atomic.Uint64
}

// Set 设置为 v
func (g *Gauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

// Add 增加 delta，delta 可以为负
func (g *Gauge) Add(delta float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Sub 减少 delta
func (g *Gauge) Sub(delta float64) {
	g.Add(-delta)
}

func (g *Gauge) Inc() { g.Add(1) }

func (g *Gauge) Dec() { g.Add(-1) }

// Value 当前值
func (g *Gauge) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Key 指标身份
func (g *Gauge) Key() MetricKey {
	return g.key
}
