package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectOTel(t *testing.T, reg *Registry) map[string]metricdata.Metrics {
	t.Helper()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader(sdkmetric.WithProducer(NewProducer(reg)))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != InstrumentationName {
			continue
		}
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestProducer(t *testing.T) {
	reg := NewRegistry()
	root := reg.Root()

	root.MustLabeled("route", "/x").MustCounter("requests", WithHelp("Total requests.")).Inc()
	require.NoError(t, root.MustLabeled("route", "/y").MustCounter("requests").Add(4))
	root.MustGauge("temperature").Set(21.5)
	h := root.MustTimer("latency", []float64{10, 50, 100})
	for _, v := range []float64{5, 15, 60} {
		require.NoError(t, h.Observe(v))
	}

	byName := collectOTel(t, reg)
	require.Len(t, byName, 3)

	t.Run("counter -> 单调累积 Sum", func(t *testing.T) {
		m := byName["requests"]
		assert.Equal(t, "Total requests.", m.Description)
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		assert.True(t, sum.IsMonotonic)
		assert.Equal(t, metricdata.CumulativeTemporality, sum.Temporality)
		require.Len(t, sum.DataPoints, 2)

		values := make(map[string]int64)
		for _, dp := range sum.DataPoints {
			route, _ := dp.Attributes.Value(attribute.Key("route"))
			values[route.AsString()] = dp.Value
			assert.False(t, dp.StartTime.After(dp.Time))
		}
		assert.Equal(t, map[string]int64{"/x": 1, "/y": 4}, values)
	})

	t.Run("gauge", func(t *testing.T) {
		g, ok := byName["temperature"].Data.(metricdata.Gauge[float64])
		require.True(t, ok)
		require.Len(t, g.DataPoints, 1)
		assert.Equal(t, 21.5, g.DataPoints[0].Value)
	})

	t.Run("histogram 桶计数为非累积", func(t *testing.T) {
		m := byName["latency"]
		assert.Equal(t, UnitSeconds, m.Unit)
		hist, ok := m.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)

		dp := hist.DataPoints[0]
		assert.Equal(t, []float64{10, 50, 100}, dp.Bounds)
		assert.Equal(t, []uint64{1, 1, 1, 0}, dp.BucketCounts)
		assert.Equal(t, uint64(3), dp.Count)
		assert.Equal(t, float64(80), dp.Sum)
	})
}

func TestProducerEmptyAndCancelled(t *testing.T) {
	p := NewProducer(NewRegistry())

	out, err := p.Produce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Produce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
