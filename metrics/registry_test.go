package metrics

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/scopestat/xerrors"
)

// =============================================================================
// Scope 与去重
// =============================================================================

func TestScopeNamedAndLabeled(t *testing.T) {
	reg := NewRegistry()
	root := Root(reg)

	x := root.Named("http").MustLabeled("route", "/x").MustCounter("requests")
	y := root.Named("http").MustLabeled("route", "/y").MustCounter("requests")

	x.Inc()
	x.Inc()
	y.Inc()

	assert.Equal(t, "http_requests", x.Key().Name)
	assert.Equal(t, `http_requests{route="/x"}`, x.Key().String())
	assert.Equal(t, `http_requests{route="/y"}`, y.Key().String())
	assert.Equal(t, uint64(2), x.Value())
	assert.Equal(t, uint64(1), y.Value())
	assert.Equal(t, 2, reg.Len())
}

func TestScopeSameKeySharesStorage(t *testing.T) {
	reg := NewRegistry()
	root := reg.Root()

	a := root.MustLabeled("a", "1").MustLabeled("b", "2").MustCounter("hits")
	b := root.MustLabeled("b", "2").MustLabeled("a", "1").MustCounter("hits")
	c, err := root.WithLabels(L("b", "x"), L("a", "1"))
	require.NoError(t, err)
	d := c.MustLabeled("b", "2").MustCounter("hits")

	assert.Same(t, a, b)
	assert.Same(t, a, d)

	a.Inc()
	b.Inc()
	assert.Equal(t, uint64(2), d.Value())
	assert.Equal(t, 1, reg.Len())
}

func TestScopeImmutable(t *testing.T) {
	root := NewRegistry().Root()
	parent := root.Named("svc").MustLabeled("env", "dev")
	child := parent.Named("db").MustLabeled("env", "prod")

	assert.Equal(t, "svc", parent.Prefix())
	assert.Equal(t, "svc_db", child.Prefix())
	v, _ := parent.Labels().Get("env")
	assert.Equal(t, "dev", v)
	v, _ = child.Labels().Get("env")
	assert.Equal(t, "prod", v)

	assert.Same(t, parent, parent.Named(""))
	assert.Equal(t, "", root.Prefix())
}

func TestScopeErrors(t *testing.T) {
	root := NewRegistry().Root()

	t.Run("非法标签", func(t *testing.T) {
		_, err := root.Labeled("", "v")
		assert.ErrorIs(t, err, ErrInvalidLabel)
		assert.Panics(t, func() { root.MustLabeled("", "v") })
	})

	t.Run("空指标名", func(t *testing.T) {
		_, err := root.Counter("  ")
		assert.ErrorIs(t, err, ErrInvalidMetricName)
	})

	t.Run("counter 之后请求 gauge", func(t *testing.T) {
		scope := root.Named("kind")
		_, err := scope.Counter("x")
		require.NoError(t, err)

		_, err = scope.Gauge("x")
		assert.ErrorIs(t, err, ErrMetricKindConflict)
		assert.ErrorIs(t, err, xerrors.ErrConflict)
		assert.Equal(t, "METRIC_KIND_CONFLICT", xerrors.GetCode(err))

		_, err = scope.Histogram("x", nil)
		assert.ErrorIs(t, err, ErrMetricKindConflict)
	})

	t.Run("直方图分桶不同", func(t *testing.T) {
		_, err := root.Histogram("latency", []float64{1, 2})
		require.NoError(t, err)
		_, err = root.Histogram("latency", []float64{1, 2, 3})
		assert.ErrorIs(t, err, ErrMetricKindConflict)
		_, err = root.Histogram("latency", []float64{1, 2})
		assert.NoError(t, err)
	})

	t.Run("非法分桶", func(t *testing.T) {
		_, err := root.Histogram("bad", []float64{1, 1})
		assert.ErrorIs(t, err, ErrInvalidBuckets)
		_, err = root.Histogram("bad", []float64{1, math.Inf(1)})
		assert.ErrorIs(t, err, ErrInvalidBuckets)
		_, err = root.Histogram("bad", []float64{math.NaN()})
		assert.ErrorIs(t, err, ErrInvalidBuckets)
	})
}

func TestRegistryDefaultBuckets(t *testing.T) {
	reg := NewRegistry(WithDefaultBuckets([]float64{1, 2, 3}))
	h := reg.Root().MustHistogram("h", nil)
	assert.Equal(t, []float64{1, 2, 3}, h.Bounds())

	timer := reg.Root().MustTimer("t", nil)
	assert.Equal(t, []float64{1, 2, 3}, timer.Bounds())
	assert.Equal(t, UnitSeconds, timer.unit)

	plain := NewRegistry().Root().MustHistogram("h", nil)
	assert.Equal(t, DefaultBuckets, plain.Bounds())
}

// =============================================================================
// 并发
// =============================================================================

func TestCounterConcurrentIncrements(t *testing.T) {
	const workers, perWorker = 16, 1000
	reg := NewRegistry()

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			// 每个 goroutine 独立走一遍获取路径，验证并发 get-or-create
			c, err := reg.Root().Named("jobs").Counter("done")
			if err != nil {
				return err
			}
			for j := 0; j < perWorker; j++ {
				c.Inc()
			}
			return c.Add(0)
		})
	}
	require.NoError(t, g.Wait())

	c := reg.Root().Named("jobs").MustCounter("done")
	assert.Equal(t, uint64(workers*perWorker), c.Value())
	assert.Equal(t, 1, reg.Len())
}

func TestConcurrentGetOrCreateReturnsSameHandle(t *testing.T) {
	reg := NewRegistry()
	const n = 32

	handles := make([]*Gauge, n)
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			h, err := reg.Root().MustLabeled("pool", "db").Gauge("in_use")
			handles[i] = h
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

func TestGaugeConcurrentAdd(t *testing.T) {
	g := NewRegistry().Root().MustGauge("inflight")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				g.Inc()
				g.Add(0.5)
				g.Sub(0.5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, float64(4000), g.Value())

	g.Set(3.25)
	assert.Equal(t, 3.25, g.Value())
	g.Dec()
	assert.Equal(t, 2.25, g.Value())
}

func TestHistogramConcurrentSnapshotConsistency(t *testing.T) {
	reg := NewRegistry()
	h := reg.Root().MustHistogram("latency", []float64{1, 5, 10})

	ctx, cancel := context.WithCancel(context.Background())
	var writers errgroup.Group
	for i := 0; i < 4; i++ {
		writers.Go(func() error {
			for j := 0; j < 2000; j++ {
				if err := h.Observe(float64(j % 12)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for ctx.Err() == nil {
			s, ok := reg.Snapshot().Find("latency")
			if !ok {
				continue
			}
			// 每次读取都满足累积不变量
			for i := 1; i < len(s.Buckets); i++ {
				if s.Buckets[i].Count < s.Buckets[i-1].Count {
					t.Errorf("buckets not cumulative: %v", s.Buckets)
				}
			}
			if last := s.Buckets[len(s.Buckets)-1]; last.Count != s.Count {
				t.Errorf("+Inf bucket %d != count %d", last.Count, s.Count)
			}
		}
	}()

	require.NoError(t, writers.Wait())
	cancel()
	<-readerDone

	assert.Equal(t, uint64(8000), h.Count())
}

// =============================================================================
// Counter / Gauge
// =============================================================================

func TestCounterAdd(t *testing.T) {
	c := NewRegistry().Root().MustCounter("bytes")

	require.NoError(t, c.Add(10))
	c.Inc()
	assert.Equal(t, uint64(11), c.Value())

	err := c.Add(-1)
	assert.ErrorIs(t, err, ErrInvalidDelta)
	assert.Equal(t, uint64(11), c.Value(), "拒绝的更新不改变值")
}

// =============================================================================
// Snapshot
// =============================================================================

func TestRegistrySnapshotOrdering(t *testing.T) {
	reg := NewRegistry()
	root := reg.Root()
	root.MustLabeled("route", "/y").MustCounter("b")
	root.MustLabeled("route", "/x").MustCounter("b")
	root.MustGauge("a").Set(1)
	root.MustHistogram("c", []float64{1})

	snap := reg.Snapshot()
	require.Len(t, snap.Samples, 4)
	assert.Equal(t, "a", snap.Samples[0].Name)
	assert.Equal(t, []Label{L("route", "/x")}, snap.Samples[1].Labels)
	assert.Equal(t, []Label{L("route", "/y")}, snap.Samples[2].Labels)
	assert.Equal(t, KindHistogram, snap.Samples[3].Kind)
	assert.False(t, snap.Timestamp.IsZero())

	_, ok := snap.Find("b", L("route", "/x"))
	assert.True(t, ok)
	_, ok = snap.Find("b", L("route", "/z"))
	assert.False(t, ok)
}

func TestRegistryHelpFirstRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	reg.Root().MustCounter("jobs", WithHelp("first"))
	reg.Root().MustCounter("jobs", WithHelp("second"))

	s, ok := reg.Snapshot().Find("jobs")
	require.True(t, ok)
	assert.Equal(t, "first", s.Help)
}
