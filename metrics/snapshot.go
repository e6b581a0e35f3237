package metrics

import "time"

// Snapshot 注册表在某一时刻的只读视图
type Snapshot struct {
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Samples   []Sample  `json:"samples" msgpack:"samples"`
}

// Sample 一个指标实例的值
//
//   - counter: Count 为计数值，Value 为其浮点表示
//   - gauge: Value 为当前值
//   - histogram: Buckets 为累积计数（最后一个桶为 +Inf），Sum、Count 为总和与总数
type Sample struct {
	Name    string   `json:"name" msgpack:"name"`
	Labels  []Label  `json:"labels,omitempty" msgpack:"labels,omitempty"`
	Kind    Kind     `json:"kind" msgpack:"kind"`
	Help    string   `json:"help,omitempty" msgpack:"help,omitempty"`
	Unit    string   `json:"unit,omitempty" msgpack:"unit,omitempty"`
	Count   uint64   `json:"count,omitempty" msgpack:"count,omitempty"`
	Value   float64  `json:"value" msgpack:"value"`
	Sum     float64  `json:"sum,omitempty" msgpack:"sum,omitempty"`
	Buckets []Bucket `json:"buckets,omitempty" msgpack:"buckets,omitempty"`
}

// Bucket 直方图的一个累积桶
type Bucket struct {
	UpperBound float64 `json:"le" msgpack:"le"`
	Count      uint64  `json:"count" msgpack:"count"`
}

// Find 按名称和标签内容查找样本
func (s Snapshot) Find(name string, labels ...Label) (Sample, bool) {
	want, err := NewLabelSet(labels...)
	if err != nil {
		return Sample{}, false
	}
	for _, sample := range s.Samples {
		if sample.Name != name {
			continue
		}
		got, err := NewLabelSet(sample.Labels...)
		if err == nil && got.Equal(want) {
			return sample, true
		}
	}
	return Sample{}, false
}
