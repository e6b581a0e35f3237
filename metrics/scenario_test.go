package metrics_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/scopestat/metrics"
	"github.com/ceyewan/scopestat/testkit"
)

// TestScenarioHTTPRoutes 两个路由各自计数，导出为两个独立实例
func TestScenarioHTTPRoutes(t *testing.T) {
	kit := testkit.NewKit(t)
	http := kit.Root.Named("http")

	x := http.MustLabeled("route", "/x").MustCounter("requests")
	y := http.MustLabeled("route", "/y").MustCounter("requests")
	for i := 0; i < 3; i++ {
		x.Inc()
	}
	y.Inc()

	text := metrics.Render(kit.Registry)
	assert.Contains(t, text, "http_requests{route=\"/x\"} 3\n")
	assert.Contains(t, text, "http_requests{route=\"/y\"} 1\n")
	assert.Equal(t, 1, strings.Count(text, "# TYPE http_requests counter"))
}

// TestScenarioConcurrentWorkers 并发 worker 通过计时任务上报，取消的任务不计入
func TestScenarioConcurrentWorkers(t *testing.T) {
	kit := testkit.NewKit(t)
	jobs := kit.Root.Named("worker").MustLabeled("queue", testkit.NewID())

	done := jobs.MustCounter("jobs_done")
	latency := jobs.MustTimer("job_seconds", []float64{0.01, 0.1, 1}, metrics.WithUnit(metrics.UnitSeconds))

	const completed, cancelled = 20, 5

	g, ctx := errgroup.WithContext(kit.Ctx)
	for i := 0; i < completed; i++ {
		g.Go(func() error {
			task := metrics.Go(ctx, latency, func(ctx context.Context) (int, error) {
				time.Sleep(time.Millisecond)
				done.Inc()
				return i, nil
			})
			_, err := task.Wait(ctx)
			return err
		})
	}
	for i := 0; i < cancelled; i++ {
		g.Go(func() error {
			task := metrics.Go(ctx, latency, func(ctx context.Context) (int, error) {
				<-ctx.Done()
				return 0, ctx.Err()
			})
			task.Cancel()
			<-task.Done()
			if task.State() != metrics.TimerCancelled {
				return fmt.Errorf("task state = %s, want cancelled", task.State())
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, uint64(completed), done.Value())
	assert.Equal(t, uint64(completed), latency.Count())

	snap := kit.Registry.Snapshot()
	s, ok := snap.Find("worker_job_seconds", jobs.Labels().Labels()...)
	require.True(t, ok)
	assert.Equal(t, uint64(completed), s.Buckets[len(s.Buckets)-1].Count)
}

// =============================================================================
// Benchmark
// =============================================================================

func BenchmarkCounterInc(b *testing.B) {
	c := metrics.NewRegistry().Root().MustCounter("bench_total")
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Inc()
		}
	})
}

func BenchmarkHistogramObserve(b *testing.B) {
	h := metrics.NewRegistry().Root().MustHistogram("bench_seconds", nil)
	b.RunParallel(func(pb *testing.PB) {
		v := 0.0
		for pb.Next() {
			_ = h.Observe(v)
			v += 0.001
		}
	})
}

func BenchmarkScopeLookup(b *testing.B) {
	root := metrics.NewRegistry().Root().Named("http")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = root.MustLabeled("route", "/x").MustCounter("requests")
	}
}

func BenchmarkRender(b *testing.B) {
	reg := metrics.NewRegistry()
	for i := 0; i < 100; i++ {
		reg.Root().MustLabeled("id", fmt.Sprint(i)).MustCounter("items").Inc()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = metrics.Render(reg)
	}
}
