package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// InstrumentationName OpenTelemetry 桥接使用的 instrumentation scope 名称
const InstrumentationName = "github.com/ceyewan/scopestat/metrics"

// Producer 将注册表桥接为 OpenTelemetry SDK 的外部指标来源
//
// 通过 sdkmetric.WithProducer 挂到任意 Reader 上，即可由 OTel 的
// exporter 推送或拉取。映射关系：
//   - counter -> 单调、累积的 Sum[int64]
//   - gauge -> Gauge[float64]
//   - histogram -> 累积的 Histogram[float64]，BucketCounts 为非累积计数
//
//	reader := sdkmetric.NewManualReader(sdkmetric.WithProducer(metrics.NewProducer(reg)))
type Producer struct {
	reg   *Registry
	start time.Time
}

var _ sdkmetric.Producer = (*Producer)(nil)

// NewProducer 创建 Producer，累积指标的起始时间为创建时刻
func NewProducer(reg *Registry) *Producer {
	return &Producer{reg: reg, start: time.Now()}
}

// Produce 实现 sdkmetric.Producer
func (p *Producer) Produce(ctx context.Context) ([]metricdata.ScopeMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := p.reg.Snapshot()

	var out []metricdata.Metrics
	index := make(map[string]int)
	kinds := make(map[string]Kind)
	for _, s := range snap.Samples {
		if k, ok := kinds[s.Name]; ok && k != s.Kind {
			continue
		}
		i, ok := index[s.Name]
		if !ok {
			kinds[s.Name] = s.Kind
			index[s.Name] = len(out)
			i = len(out)
			out = append(out, newOTelMetric(s))
		}
		p.appendPoint(&out[i], s, snap.Timestamp)
	}

	if len(out) == 0 {
		return nil, nil
	}
	return []metricdata.ScopeMetrics{{
		Scope:   instrumentation.Scope{Name: InstrumentationName},
		Metrics: out,
	}}, nil
}

func newOTelMetric(s Sample) metricdata.Metrics {
	m := metricdata.Metrics{Name: s.Name, Description: s.Help, Unit: s.Unit}
	switch s.Kind {
	case KindCounter:
		m.Data = metricdata.Sum[int64]{Temporality: metricdata.CumulativeTemporality, IsMonotonic: true}
	case KindGauge:
		m.Data = metricdata.Gauge[float64]{}
	case KindHistogram:
		m.Data = metricdata.Histogram[float64]{Temporality: metricdata.CumulativeTemporality}
	}
	return m
}

func (p *Producer) appendPoint(m *metricdata.Metrics, s Sample, ts time.Time) {
	attrs := toAttributes(s.Labels)
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		data.DataPoints = append(data.DataPoints, metricdata.DataPoint[int64]{
			Attributes: attrs, StartTime: p.start, Time: ts, Value: int64(s.Count),
		})
		m.Data = data
	case metricdata.Gauge[float64]:
		data.DataPoints = append(data.DataPoints, metricdata.DataPoint[float64]{
			Attributes: attrs, Time: ts, Value: s.Value,
		})
		m.Data = data
	case metricdata.Histogram[float64]:
		bounds := make([]float64, 0, len(s.Buckets))
		counts := make([]uint64, len(s.Buckets))
		var prev uint64
		for i, b := range s.Buckets {
			if i < len(s.Buckets)-1 {
				bounds = append(bounds, b.UpperBound)
			}
			counts[i] = b.Count - prev
			prev = b.Count
		}
		data.DataPoints = append(data.DataPoints, metricdata.HistogramDataPoint[float64]{
			Attributes:   attrs,
			StartTime:    p.start,
			Time:         ts,
			Count:        s.Count,
			Sum:          s.Sum,
			Bounds:       bounds,
			BucketCounts: counts,
		})
		m.Data = data
	}
}

func toAttributes(labels []Label) attribute.Set {
	if len(labels) == 0 {
		return *attribute.EmptySet()
	}
	kvs := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		kvs[i] = attribute.String(l.Key, l.Value)
	}
	return attribute.NewSet(kvs...)
}
